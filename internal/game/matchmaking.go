package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

const duelTimeLimit = 15 // minutes

type queueEntry struct {
	ConnID     string
	UserID     string
	Username   string
	Email      string
	EnqueuedAt time.Time
}

// matchQueue holds waiting players and the set of active users (queued or in a
// party). Both live under one mutex so pairing and registration never diverge.
type matchQueue struct {
	mu     sync.Mutex
	queue  []queueEntry
	active map[string]int // userID -> registrations
}

func newMatchQueue() *matchQueue {
	return &matchQueue{active: make(map[string]int)}
}

func (q *matchQueue) acquire(userID string) {
	if userID == "" {
		return
	}
	q.mu.Lock()
	q.active[userID]++
	q.mu.Unlock()
}

func (q *matchQueue) release(userID string) {
	q.mu.Lock()
	q.releaseLocked(userID)
	q.mu.Unlock()
}

func (q *matchQueue) releaseLocked(userID string) {
	if q.active[userID] <= 1 {
		delete(q.active, userID)
		return
	}
	q.active[userID]--
}

// enqueue adds e and pops the two earliest entries once two are waiting.
func (q *matchQueue) enqueue(e queueEntry) (pair []queueEntry, position int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active[e.UserID] > 0 {
		return nil, 0, ErrAlreadyActive
	}
	q.active[e.UserID]++
	q.queue = append(q.queue, e)
	position = len(q.queue)
	if len(q.queue) >= 2 {
		pair = []queueEntry{q.queue[0], q.queue[1]}
		q.queue = append([]queueEntry(nil), q.queue[2:]...)
	}
	return pair, position, nil
}

func (q *matchQueue) cancel(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.queue {
		if e.ConnID == connID {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			q.releaseLocked(e.UserID)
			return true
		}
	}
	return false
}

// cancelUser drops every waiting entry for userID, whichever connection queued it.
func (q *matchQueue) cancelUser(userID string) bool {
	if userID == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.queue[:0]
	found := false
	for _, e := range q.queue {
		if e.UserID == userID {
			q.releaseLocked(e.UserID)
			found = true
			continue
		}
		kept = append(kept, e)
	}
	q.queue = kept
	return found
}

// claim checks that a popped pair holds nothing but its queue registrations.
// A user that also joined a party elsewhere is released from the queue; the
// other is put back at the head. Caller holds m.mu.
func (q *matchQueue) claim(a, b queueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	staleA, staleB := q.active[a.UserID] > 1, q.active[b.UserID] > 1
	if !staleA && !staleB {
		return true
	}
	var back []queueEntry
	for _, s := range []struct {
		e     queueEntry
		stale bool
	}{{a, staleA}, {b, staleB}} {
		if s.stale {
			q.releaseLocked(s.e.UserID)
		} else {
			back = append(back, s.e)
		}
	}
	q.queue = append(back, q.queue...)
	return false
}

func (q *matchQueue) isActive(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active[userID] > 0
}

func (q *matchQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Enqueue puts a user into matchmaking. When a second user is waiting both are
// placed in a new duel party and the round starts immediately.
func (m *Manager) Enqueue(ctx context.Context, connID, userID, username, email string) error {
	userID = strings.TrimSpace(userID)
	username = strings.TrimSpace(username)
	if userID == "" || username == "" {
		return ErrInvalidInput
	}
	if m.CodeOf(connID) != "" {
		return ErrAlreadyActive
	}
	e := queueEntry{ConnID: connID, UserID: userID, Username: username, Email: email, EnqueuedAt: time.Now().UTC()}
	pair, pos, err := m.queue.enqueue(e)
	if err != nil {
		return err
	}
	m.bc.EmitToPlayer(connID, EventQueueJoined, map[string]any{"position": pos})
	log.Info().Str("userId", userID).Int("position", pos).Msg("join_queue")
	if pair == nil {
		return nil
	}
	return m.startDuel(ctx, pair[0], pair[1])
}

// LeaveQueue removes a waiting entry.
func (m *Manager) LeaveQueue(connID string) error {
	if !m.queue.cancel(connID) {
		return ErrNotFound
	}
	log.Info().Str("sid", connID).Msg("leave_queue")
	return nil
}

func (m *Manager) startDuel(ctx context.Context, a, b queueEntry) error {
	m.mu.Lock()
	if m.byConn[a.ConnID] != "" || m.byConn[b.ConnID] != "" || a.ConnID == b.ConnID {
		m.mu.Unlock()
		m.queue.release(a.UserID)
		m.queue.release(b.UserID)
		return ErrAlreadyActive
	}
	if !m.queue.claim(a, b) {
		m.mu.Unlock()
		log.Warn().Str("a", a.UserID).Str("b", b.UserID).Msg("pairing dropped, user joined a party")
		return nil
	}
	p := m.newPartyLocked(a.ConnID, true)
	p.mu.Lock()
	p.Settings = RoundSettings{Difficulties: model.AllDifficulties, TimeLimitMinutes: duelTimeLimit, TotalRounds: 1}
	m.addPlayerLocked(p, a.ConnID, a.Username, a.UserID, a.Email)
	m.addPlayerLocked(p, b.ConnID, b.Username, b.UserID, b.Email)
	rs := roundStart{gen: p.Generation, settings: p.Settings, newGame: true, advance: true}
	code := p.Code
	p.mu.Unlock()
	m.mu.Unlock()

	m.bc.JoinRoom(a.ConnID, code)
	m.bc.JoinRoom(b.ConnID, code)

	if err := m.startRound(ctx, p, rs); err != nil {
		m.mu.Lock()
		p.mu.Lock()
		var players []*Player
		if !p.closed {
			players = m.closeLocked(p)
		}
		p.mu.Unlock()
		m.mu.Unlock()
		if players != nil {
			m.announceClosed(code, "Matchmaking failed.", players)
		}
		log.Error().Err(err).Str("code", code).Msg("duel start failed")
		return err
	}
	for _, pair := range [][2]queueEntry{{a, b}, {b, a}} {
		m.bc.EmitToPlayer(pair[0].ConnID, EventMatchFound, map[string]any{
			"party_code": code,
			"username":   pair[0].Username,
			"opponent":   pair[1].Username,
		})
	}
	log.Info().Str("code", code).Str("a", a.Username).Str("b", b.Username).Msg("match_found")
	return nil
}
