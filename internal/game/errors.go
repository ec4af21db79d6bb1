package game

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("party not found")
	ErrUnauthorized = errors.New("not allowed")
	ErrCapacity     = errors.New("party is full")
	ErrConflict     = errors.New("conflict")
	ErrInvalidPhase = errors.New("invalid phase for action")
	ErrInvalidInput = errors.New("invalid input")

	ErrNoOpenParties      = fmt.Errorf("%w: no open parties", ErrNotFound)
	ErrNoProblemAvailable = fmt.Errorf("%w: no problem available", ErrNotFound)
	ErrAlreadyActive      = fmt.Errorf("%w: user already active", ErrConflict)
	ErrUsernameTaken      = fmt.Errorf("%w: username taken", ErrConflict)
)
