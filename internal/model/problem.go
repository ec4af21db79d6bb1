package model

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("not found")

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// AllDifficulties is the default tier set used by matchmaking.
var AllDifficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty accepts any casing of the three tier names.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, true
	case "medium":
		return DifficultyMedium, true
	case "hard":
		return DifficultyHard, true
	}
	return "", false
}

type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type Problem struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	FunctionSignature string     `json:"function_signature"`
	Difficulty        Difficulty `json:"difficulty"`
	TestCases         []TestCase `json:"test_cases"`
	AnyOrder          bool       `json:"any_order"`
	Reports           int        `json:"reports"`
	TimeBudgetMillis  int        `json:"time_budget_ms,omitempty"` // 0 means judge default
}

// Public keeps only the first test case, with its output, as the visible
// example. The remaining cases stay hidden from clients.
func (p Problem) Public() Problem {
	out := p
	out.TestCases = nil
	if len(p.TestCases) > 0 {
		out.TestCases = []TestCase{{Input: p.TestCases[0].Input, Output: p.TestCases[0].Output}}
	}
	return out
}
