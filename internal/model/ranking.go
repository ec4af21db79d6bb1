package model

import "context"

type RankRecord struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	Username    string  `json:"username"`
	Email       string  `json:"email,omitempty"`
	TotalScore  float64 `json:"total_score"`
	GamesPlayed int     `json:"games_played"`
	GamesWon    int     `json:"games_won"`
}

// ProblemRepository is the read side of the problem catalogue plus the report counter.
type ProblemRepository interface {
	FetchRandom(ctx context.Context, difficulties []Difficulty) (*Problem, error)
	FetchByID(ctx context.Context, id int) (*Problem, error)
	IncrementReportCount(ctx context.Context, name string) error
}

// RankingStore keeps the cross-game ladder.
type RankingStore interface {
	UpsertScore(ctx context.Context, userID, username, email string, delta float64, won bool) (RankRecord, error)
	TopN(ctx context.Context, n int) ([]RankRecord, error)
	// RankOf returns the 1-based ladder position, false when the user has no record.
	RankOf(ctx context.Context, userID string) (int, bool, error)
	Get(ctx context.Context, userID string) (*RankRecord, error)
}
