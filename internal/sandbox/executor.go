package sandbox

import (
    "context"
    "errors"
    "time"
)

// ErrTimeout is returned when the hard wall-clock limit killed the run.
var ErrTimeout = errors.New("sandbox timeout")

type Output struct {
    Stdout string
    Stderr string
    ExitOK bool
}

type Executor interface {
    Execute(ctx context.Context, source string, stdin string, timeout time.Duration) (Output, error)
}

type Config struct {
    Backend        string
    Command        string
    PistonURL      string
    PistonLanguage string
    PistonVersion  string
    Judge0URL      string
    Judge0Key      string
    Judge0Language int
}
