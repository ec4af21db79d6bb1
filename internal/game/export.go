package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RoundExport is a copy of a finished round taken under the party lock.
type RoundExport struct {
	Code        string
	Problem     string
	Difficulty  string
	Round       int
	TotalRounds int
	Reason      string
	GameOver    bool
	Players     []string
	Board       []LeaderboardEntry
	FinishedAt  time.Time
}

// exportSnapshot copies the round results. Caller holds p.mu.
func (p *Party) exportSnapshot(reason string, gameOver bool) *RoundExport {
	e := &RoundExport{
		Code:        p.Code,
		Round:       p.CurrentRound,
		TotalRounds: p.Settings.TotalRounds,
		Reason:      reason,
		GameOver:    gameOver,
		Players:     p.usernames(),
		Board:       p.leaderboard().Leaderboard,
		FinishedAt:  time.Now(),
	}
	if p.Problem != nil {
		e.Problem = p.Problem.Name
		e.Difficulty = string(p.Problem.Difficulty)
	}
	return e
}

// ExportRound appends one finished round to a text file
func ExportRound(e RoundExport, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder

	// Header for new files and for the first round of a game
	if !fileExists || e.Round == 1 {
		if fileExists {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("LeetDuel Results - Party %s\n", e.Code))
		sb.WriteString(fmt.Sprintf("Started: %s\n", e.FinishedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")

		sb.WriteString("Players:\n")
		for _, name := range e.Players {
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Round %d/%d: \"%s\" (%s)\n", e.Round, e.TotalRounds, e.Problem, e.Difficulty))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	sb.WriteString(e.Reason + "\n")

	if len(e.Board) > 0 {
		sb.WriteString("\nScores after this round:\n")
		for _, entry := range e.Board {
			line := fmt.Sprintf("- %s: %.2f points (+%.2f)", entry.Username, entry.Score, entry.RoundScore)
			if entry.FinishOrder > 0 {
				line += fmt.Sprintf(", finished #%d", entry.FinishOrder)
			}
			sb.WriteString(line + "\n")
		}
	}
	sb.WriteString("\n")

	if e.GameOver {
		sb.WriteString(fmt.Sprintf("Game ended at %s\n", e.FinishedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(strings.Repeat("=", 50) + "\n")
	}

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
