// Package memory holds the in-process problem catalogue and ladder used when no
// database is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

type Problems struct {
	mu       sync.Mutex
	problems []model.Problem
	rnd      *rand.Rand
}

func NewProblems(problems []model.Problem) *Problems {
	ps := make([]model.Problem, len(problems))
	copy(ps, problems)
	for i := range ps {
		if ps[i].ID == 0 {
			ps[i].ID = i + 1
		}
	}
	return &Problems{problems: ps, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// LoadProblems reads a JSON array of problems.
func LoadProblems(path string) (*Problems, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problems: %w", err)
	}
	var ps []model.Problem
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("decode problems %s: %w", path, err)
	}
	return NewProblems(ps), nil
}

func (s *Problems) FetchRandom(ctx context.Context, difficulties []model.Difficulty) (*model.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pool []int
	for i, p := range s.problems {
		for _, d := range difficulties {
			if p.Difficulty == d {
				pool = append(pool, i)
				break
			}
		}
	}
	if len(pool) == 0 {
		return nil, model.ErrNotFound
	}
	p := s.problems[pool[s.rnd.Intn(len(pool))]]
	return &p, nil
}

func (s *Problems) FetchByID(ctx context.Context, id int) (*model.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.problems {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Problems) IncrementReportCount(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.problems {
		if s.problems[i].Name == name {
			s.problems[i].Reports++
			return nil
		}
	}
	return model.ErrNotFound
}

// All returns a copy of the catalogue.
func (s *Problems) All() []model.Problem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Problem, len(s.problems))
	copy(out, s.problems)
	return out
}

func (s *Problems) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.problems)
}

type Rankings struct {
	mu      sync.RWMutex
	records map[string]*model.RankRecord
}

func NewRankings() *Rankings {
	return &Rankings{records: make(map[string]*model.RankRecord)}
}

func (s *Rankings) UpsertScore(ctx context.Context, userID, username, email string, delta float64, won bool) (model.RankRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[userID]
	if r == nil {
		r = &model.RankRecord{UserID: userID}
		s.records[userID] = r
	}
	r.Username = username
	if email != "" {
		r.Email = email
	}
	r.TotalScore += delta
	r.GamesPlayed++
	if won {
		r.GamesWon++
	}
	out := *r
	out.Rank = s.rankLocked(userID)
	return out, nil
}

// sorted orders by score, ties by username then user id. Caller holds s.mu.
func (s *Rankings) sorted() []model.RankRecord {
	out := make([]model.RankRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (s *Rankings) rankLocked(userID string) int {
	for _, r := range s.sorted() {
		if r.UserID == userID {
			return r.Rank
		}
	}
	return 0
}

func (s *Rankings) TopN(ctx context.Context, n int) ([]model.RankRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sorted()
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (s *Rankings) RankOf(ctx context.Context, userID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.records[userID] == nil {
		return 0, false, nil
	}
	return s.rankLocked(userID), true, nil
}

func (s *Rankings) Get(ctx context.Context, userID string) (*model.RankRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.records[userID]
	if r == nil {
		return nil, model.ErrNotFound
	}
	out := *r
	out.Rank = s.rankLocked(userID)
	return &out, nil
}
