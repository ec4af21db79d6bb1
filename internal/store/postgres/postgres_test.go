package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

// openTestStore needs a disposable database in TEST_DATABASE_URL.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("should be able to connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("should be able to migrate: %v", err)
	}
	return s
}

func TestProblemRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	name := "Two Sum " + uuid.NewString()
	id, err := s.InsertProblem(ctx, model.Problem{
		Name:              name,
		Difficulty:        model.DifficultyEasy,
		FunctionSignature: "def twoSum(nums, target):",
		TestCases:         []model.TestCase{{Input: "([2,7,11,15], 9)", Output: "[0, 1]"}},
		AnyOrder:          true,
	})
	if err != nil {
		t.Fatalf("should be able to insert: %v", err)
	}
	p, err := s.FetchByID(ctx, id)
	if err != nil {
		t.Fatalf("should be able to fetch: %v", err)
	}
	if p.Name != name || !p.AnyOrder || len(p.TestCases) != 1 || p.TestCases[0].Output != "[0, 1]" {
		t.Fatalf("unexpected problem %+v", p)
	}
	if _, err := s.FetchRandom(ctx, []model.Difficulty{model.DifficultyEasy}); err != nil {
		t.Fatalf("should be able to fetch random: %v", err)
	}
	if err := s.IncrementReportCount(ctx, name); err != nil {
		t.Fatalf("should be able to report: %v", err)
	}
	if err := s.IncrementReportCount(ctx, "missing "+uuid.NewString()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FetchByID(ctx, -1); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRankingUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	uid := uuid.NewString()
	if _, err := s.UpsertScore(ctx, uid, "alice", "a@example.com", 40, true); err != nil {
		t.Fatalf("should be able to upsert: %v", err)
	}
	r, err := s.UpsertScore(ctx, uid, "alice", "", 10, false)
	if err != nil {
		t.Fatalf("should be able to upsert: %v", err)
	}
	if r.TotalScore != 50 || r.GamesPlayed != 2 || r.GamesWon != 1 || r.Email != "a@example.com" || r.Rank < 1 {
		t.Fatalf("unexpected record %+v", r)
	}
	if _, ok, err := s.RankOf(ctx, uuid.NewString()); err != nil || ok {
		t.Fatalf("unknown user should have no rank, got %v %v", ok, err)
	}
	if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	top, err := s.TopN(ctx, 5)
	if err != nil || len(top) == 0 {
		t.Fatalf("should be able to list top, got %v %v", top, err)
	}
}
