// Package redisrank keeps the ranking ladder in a Redis sorted set with one
// hash of profile fields per user.
package redisrank

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

const defaultPrefix = "leetduel:"

type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client) *Store {
	return &Store{client: client, prefix: defaultPrefix}
}

// Open dials Redis and checks the connection.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ladderKey() string         { return s.prefix + "ladder" }
func (s *Store) userKey(uid string) string { return s.prefix + "user:" + uid }

func (s *Store) UpsertScore(ctx context.Context, userID, username, email string, delta float64, won bool) (model.RankRecord, error) {
	userKey := s.userKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, s.ladderKey(), delta, userID)
		pipe.HSet(ctx, userKey, "username", username)
		if email != "" {
			pipe.HSet(ctx, userKey, "email", email)
		}
		pipe.HIncrBy(ctx, userKey, "games_played", 1)
		if won {
			pipe.HIncrBy(ctx, userKey, "games_won", 1)
		}
		return nil
	})
	if err != nil {
		return model.RankRecord{}, fmt.Errorf("upsert ranking %s: %w", userID, err)
	}
	r, err := s.Get(ctx, userID)
	if err != nil {
		return model.RankRecord{}, err
	}
	return *r, nil
}

func (s *Store) TopN(ctx context.Context, n int) ([]model.RankRecord, error) {
	if n <= 0 {
		return []model.RankRecord{}, nil
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, s.ladderKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.RankRecord, 0, len(zs))
	for i, z := range zs {
		uid, _ := z.Member.(string)
		r := model.RankRecord{Rank: i + 1, UserID: uid, TotalScore: z.Score}
		if err := s.loadProfile(ctx, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) RankOf(ctx context.Context, userID string) (int, bool, error) {
	rank, err := s.client.ZRevRank(ctx, s.ladderKey(), userID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int(rank) + 1, true, nil
}

func (s *Store) Get(ctx context.Context, userID string) (*model.RankRecord, error) {
	score, err := s.client.ZScore(ctx, s.ladderKey(), userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r := &model.RankRecord{UserID: userID, TotalScore: score}
	if err := s.loadProfile(ctx, r); err != nil {
		return nil, err
	}
	rank, _, err := s.RankOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.Rank = rank
	return r, nil
}

func (s *Store) loadProfile(ctx context.Context, r *model.RankRecord) error {
	fields, err := s.client.HGetAll(ctx, s.userKey(r.UserID)).Result()
	if err != nil {
		return err
	}
	r.Username = fields["username"]
	r.Email = fields["email"]
	r.GamesPlayed, _ = strconv.Atoi(fields["games_played"])
	r.GamesWon, _ = strconv.Atoi(fields["games_won"])
	return nil
}
