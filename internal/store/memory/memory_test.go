package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

func TestProblemsFilterByDifficulty(t *testing.T) {
	s := NewProblems([]model.Problem{
		{Name: "Two Sum", Difficulty: model.DifficultyEasy},
		{Name: "LRU Cache", Difficulty: model.DifficultyMedium},
	})
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		p, err := s.FetchRandom(ctx, []model.Difficulty{model.DifficultyMedium})
		if err != nil {
			t.Fatalf("should be able to fetch: %v", err)
		}
		if p.Name != "LRU Cache" {
			t.Fatalf("expected medium problem, got %s", p.Name)
		}
	}
	if _, err := s.FetchRandom(ctx, []model.Difficulty{model.DifficultyHard}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	p, err := s.FetchByID(ctx, 1)
	if err != nil || p.Name != "Two Sum" {
		t.Fatalf("ids should be assigned in order, got %+v %v", p, err)
	}
	if err := s.IncrementReportCount(ctx, "Two Sum"); err != nil {
		t.Fatalf("should be able to report: %v", err)
	}
	if p, _ := s.FetchByID(ctx, 1); p.Reports != 1 {
		t.Fatalf("expected one report, got %d", p.Reports)
	}
	if err := s.IncrementReportCount(ctx, "Nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.json")
	body := `[{"name":"Two Sum","difficulty":"Easy","function_signature":"def twoSum(nums, target):",
		"test_cases":[{"input":"([2,7,11,15], 9)","output":"[0, 1]"}],"any_order":true}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadProblems(path)
	if err != nil {
		t.Fatalf("should be able to load problems: %v", err)
	}
	p, err := s.FetchRandom(context.Background(), model.AllDifficulties)
	if err != nil {
		t.Fatalf("should be able to fetch: %v", err)
	}
	if !p.AnyOrder || len(p.TestCases) != 1 || p.TestCases[0].Output != "[0, 1]" {
		t.Fatalf("unexpected problem %+v", p)
	}
	if _, err := LoadProblems(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRankings(t *testing.T) {
	s := NewRankings()
	ctx := context.Background()
	if _, err := s.UpsertScore(ctx, "u1", "alice", "a@example.com", 50, true); err != nil {
		t.Fatalf("should be able to upsert: %v", err)
	}
	if _, err := s.UpsertScore(ctx, "u2", "bob", "", 80, false); err != nil {
		t.Fatalf("should be able to upsert: %v", err)
	}
	rec, err := s.UpsertScore(ctx, "u1", "alice", "", 40, false)
	if err != nil {
		t.Fatalf("should be able to upsert: %v", err)
	}
	if rec.TotalScore != 90 || rec.GamesPlayed != 2 || rec.GamesWon != 1 || rec.Rank != 1 || rec.Email != "a@example.com" {
		t.Fatalf("unexpected record %+v", rec)
	}

	top, _ := s.TopN(ctx, 1)
	if len(top) != 1 || top[0].UserID != "u1" {
		t.Fatalf("unexpected top %+v", top)
	}
	rank, ok, _ := s.RankOf(ctx, "u2")
	if !ok || rank != 2 {
		t.Fatalf("expected rank 2, got %d %v", rank, ok)
	}
	if _, ok, _ := s.RankOf(ctx, "ghost"); ok {
		t.Fatal("unknown user should have no rank")
	}
	if _, err := s.Get(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
