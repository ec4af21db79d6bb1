package game

import (
	"sync"
	"time"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
)

// RoundSettings are chosen by the host at start and reused by skip and restart.
type RoundSettings struct {
	Difficulties     []model.Difficulty `json:"difficulties"`
	TimeLimitMinutes int                `json:"time_limit"`
	TotalRounds      int                `json:"total_rounds"`
}

type Player struct {
	ConnID   string    `json:"-"`
	Username string    `json:"username"`
	UserID   string    `json:"-"`
	Email    string    `json:"-"`
	JoinSeq  int       `json:"-"`
	JoinedAt time.Time `json:"joinedAt"`

	Passed       bool    `json:"passed"`
	FinishOrder  int     `json:"finish_order,omitempty"` // 0 until the first full pass of the round
	CurrentScore float64 `json:"current_score"`
	TotalScore   float64 `json:"total_score"`

	Code    string `json:"-"`
	Console string `json:"-"`

	spectating string // connID of the player being watched
}

// Party is one room. All fields are guarded by mu; the manager never hands a
// *Party to callers outside the package.
type Party struct {
	Code      string
	Host      string
	CreatedAt time.Time
	Duel      bool

	Players map[string]*Player // connID -> Player
	Problem *model.Problem
	Status  Status

	Settings     RoundSettings
	RoundEnd     time.Time
	CurrentRound int
	FinishCount  int

	Generation uint64
	RoundID    string

	finalized uint64 // generation already finalized
	joinSeq   int
	timer     *time.Timer
	closed    bool

	mu sync.Mutex
}

func (p *Party) playerByName(username string) *Player {
	for _, pl := range p.Players {
		if pl.Username == username {
			return pl
		}
	}
	return nil
}

func (p *Party) usernames() []string {
	out := make([]string, 0, len(p.Players))
	for _, pl := range p.sortedPlayers() {
		out = append(out, pl.Username)
	}
	return out
}

// GameStarted is sent to the room on every round start and to late joiners.
type GameStarted struct {
	Problem     model.Problem `json:"problem"`
	PartyCode   string        `json:"party_code"`
	RoundID     string        `json:"round_id"`
	TimeLimit   int           `json:"time_limit"`
	EndTime     int64         `json:"end_time"` // unix millis
	Round       int           `json:"round"`
	TotalRounds int           `json:"total_rounds"`
}

type LeaderboardEntry struct {
	Username    string  `json:"username"`
	Score       float64 `json:"score"`
	RoundScore  float64 `json:"round_score"`
	FinishOrder int     `json:"finish_order,omitempty"`
}

type Leaderboard struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Rounds      int                `json:"rounds"`
	TotalRounds int                `json:"total_rounds"`
}

// PartySummary is the lobby view of a joinable party.
type PartySummary struct {
	Code      string    `json:"party_code"`
	Players   []string  `json:"players"`
	Status    Status    `json:"status"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
	Bold     bool   `json:"bold"`
	Color    string `json:"color"`
}
