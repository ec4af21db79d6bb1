// Package postgres stores problems and the ranking ladder in PostgreSQL
// through database/sql and the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS problems (
	problem_id          SERIAL PRIMARY KEY,
	problem_name        TEXT NOT NULL UNIQUE,
	problem_description TEXT NOT NULL DEFAULT '',
	problem_difficulty  TEXT NOT NULL,
	function_signature  TEXT NOT NULL,
	test_cases          JSONB NOT NULL DEFAULT '[]',
	any_order           BOOLEAN NOT NULL DEFAULT FALSE,
	time_budget_ms      INTEGER NOT NULL DEFAULT 0,
	reports             INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS rankings (
	uid          TEXT PRIMARY KEY,
	username     TEXT NOT NULL,
	email        TEXT NOT NULL DEFAULT '',
	total_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	games_played INTEGER NOT NULL DEFAULT 0,
	games_won    INTEGER NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS rankings_total_score_idx ON rankings (total_score DESC);
`

const problemColumns = `problem_id, problem_name, problem_description, problem_difficulty,
	function_signature, test_cases, any_order, time_budget_ms, reports`

const rankColumns = `uid, username, email, total_score, games_played, games_won`

// Store implements model.ProblemRepository and model.RankingStore.
type Store struct {
	db *sql.DB
}

// Open connects and verifies the database is reachable.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProblem(row scanner) (*model.Problem, error) {
	var (
		p     model.Problem
		diff  string
		cases []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &diff, &p.FunctionSignature,
		&cases, &p.AnyOrder, &p.TimeBudgetMillis, &p.Reports)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Difficulty = model.Difficulty(diff)
	if err := json.Unmarshal(cases, &p.TestCases); err != nil {
		return nil, fmt.Errorf("problem %d test cases: %w", p.ID, err)
	}
	return &p, nil
}

func (s *Store) FetchRandom(ctx context.Context, difficulties []model.Difficulty) (*model.Problem, error) {
	names := make([]string, len(difficulties))
	for i, d := range difficulties {
		names[i] = string(d)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+problemColumns+` FROM problems
		 WHERE problem_difficulty = ANY($1)
		 ORDER BY random() LIMIT 1`, names)
	return scanProblem(row)
}

func (s *Store) FetchByID(ctx context.Context, id int) (*model.Problem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+problemColumns+` FROM problems WHERE problem_id = $1`, id)
	return scanProblem(row)
}

func (s *Store) IncrementReportCount(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE problems SET reports = reports + 1 WHERE problem_name = $1`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// InsertProblem adds a problem, or replaces the one with the same name.
func (s *Store) InsertProblem(ctx context.Context, p model.Problem) (int, error) {
	cases, err := json.Marshal(p.TestCases)
	if err != nil {
		return 0, err
	}
	var id int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO problems (problem_name, problem_description, problem_difficulty,
			function_signature, test_cases, any_order, time_budget_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (problem_name) DO UPDATE SET
			problem_description = EXCLUDED.problem_description,
			problem_difficulty  = EXCLUDED.problem_difficulty,
			function_signature  = EXCLUDED.function_signature,
			test_cases          = EXCLUDED.test_cases,
			any_order           = EXCLUDED.any_order,
			time_budget_ms      = EXCLUDED.time_budget_ms
		RETURNING problem_id`,
		p.Name, p.Description, string(p.Difficulty), p.FunctionSignature,
		string(cases), p.AnyOrder, p.TimeBudgetMillis,
	).Scan(&id)
	return id, err
}

func scanRank(row scanner, r *model.RankRecord) error {
	return row.Scan(&r.UserID, &r.Username, &r.Email, &r.TotalScore, &r.GamesPlayed, &r.GamesWon)
}

func (s *Store) UpsertScore(ctx context.Context, userID, username, email string, delta float64, won bool) (model.RankRecord, error) {
	wins := 0
	if won {
		wins = 1
	}
	var r model.RankRecord
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO rankings (uid, username, email, total_score, games_played, games_won)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (uid) DO UPDATE SET
			username     = EXCLUDED.username,
			email        = COALESCE(NULLIF(EXCLUDED.email, ''), rankings.email),
			total_score  = rankings.total_score + EXCLUDED.total_score,
			games_played = rankings.games_played + 1,
			games_won    = rankings.games_won + EXCLUDED.games_won,
			updated_at   = NOW()
		RETURNING `+rankColumns,
		userID, username, email, delta, wins)
	if err := scanRank(row, &r); err != nil {
		return model.RankRecord{}, fmt.Errorf("upsert ranking %s: %w", userID, err)
	}
	rank, _, err := s.RankOf(ctx, userID)
	if err != nil {
		return model.RankRecord{}, err
	}
	r.Rank = rank
	return r, nil
}

func (s *Store) TopN(ctx context.Context, n int) ([]model.RankRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rankColumns+` FROM rankings
		 ORDER BY total_score DESC, username, uid LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RankRecord
	for rows.Next() {
		var r model.RankRecord
		if err := scanRank(rows, &r); err != nil {
			return nil, err
		}
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// RankOf counts the users strictly ahead, so tied users share a rank.
func (s *Store) RankOf(ctx context.Context, userID string) (int, bool, error) {
	var rank int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM rankings o WHERE o.total_score > r.total_score) + 1
		FROM rankings r WHERE r.uid = $1`, userID).Scan(&rank)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

func (s *Store) Get(ctx context.Context, userID string) (*model.RankRecord, error) {
	var r model.RankRecord
	row := s.db.QueryRowContext(ctx, `SELECT `+rankColumns+` FROM rankings WHERE uid = $1`, userID)
	if err := scanRank(row, &r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	rank, _, err := s.RankOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.Rank = rank
	return &r, nil
}
