package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

type Options struct {
	Problems    model.ProblemRepository
	Rankings    model.RankingStore
	Judge       Judge
	Broadcaster Broadcaster

	Capacity         int
	DefaultTimeLimit int // minutes
	WinScore         float64
	GraceDelay       time.Duration
	ExportFile       string // empty disables the round export
}

// Manager is the single in-memory authority for parties and the matchmaking
// queue. Lock order is m.mu before Party.mu or the queue lock; the queue lock
// is never held while taking another.
type Manager struct {
	mu      sync.RWMutex
	parties map[string]*Party
	byConn  map[string]string // connID -> party code

	opts  Options
	bc    Broadcaster
	queue *matchQueue

	// minute is the unit of RoundSettings.TimeLimitMinutes.
	minute time.Duration
}

func NewManager(opts Options) *Manager {
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.DefaultTimeLimit <= 0 {
		opts.DefaultTimeLimit = 15
	}
	if opts.WinScore <= 0 {
		opts.WinScore = 100
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = 5 * time.Second
	}
	bc := opts.Broadcaster
	if bc == nil {
		bc = nopBroadcaster{}
	}
	return &Manager{
		parties: make(map[string]*Party),
		byConn:  make(map[string]string),
		opts:    opts,
		bc:      bc,
		queue:   newMatchQueue(),
		minute:  time.Minute,
	}
}

func (m *Manager) get(code string) (*Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.parties[code]
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *Manager) partyOf(connID string) (*Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.parties[m.byConn[connID]]
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// CodeOf returns the party code of a connection, or "".
func (m *Manager) CodeOf(connID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byConn[connID]
}

func (m *Manager) newPartyLocked(host string, duel bool) *Party {
	code := randomCode(6)
	for m.parties[code] != nil {
		code = randomCode(6)
	}
	p := &Party{
		Code:      code,
		Host:      host,
		CreatedAt: time.Now().UTC(),
		Duel:      duel,
		Players:   make(map[string]*Player),
		Status:    StatusWaiting,
		Settings: RoundSettings{
			Difficulties:     model.AllDifficulties,
			TimeLimitMinutes: m.opts.DefaultTimeLimit,
			TotalRounds:      1,
		},
	}
	m.parties[code] = p
	return p
}

// addPlayerLocked admits a player. Caller holds m.mu and p.mu.
func (m *Manager) addPlayerLocked(p *Party, connID, username, userID, email string) *Player {
	p.joinSeq++
	pl := &Player{
		ConnID:   connID,
		Username: username,
		UserID:   userID,
		Email:    email,
		JoinSeq:  p.joinSeq,
		JoinedAt: time.Now().UTC(),
	}
	p.Players[connID] = pl
	m.byConn[connID] = p.Code
	return pl
}

func (m *Manager) CreateParty(connID, username, userID, email string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidInput
	}
	m.queue.cancel(connID)
	m.queue.cancelUser(userID)

	m.mu.Lock()
	if m.byConn[connID] != "" {
		m.mu.Unlock()
		return "", ErrConflict
	}
	p := m.newPartyLocked(connID, false)
	p.mu.Lock()
	m.addPlayerLocked(p, connID, username, userID, email)
	p.mu.Unlock()
	m.queue.acquire(userID)
	m.mu.Unlock()

	m.bc.JoinRoom(connID, p.Code)
	m.bc.EmitToPlayer(connID, EventPartyCreated, map[string]any{"username": username, "party_code": p.Code})
	log.Info().Str("code", p.Code).Str("username", username).Msg("create_party")
	return p.Code, nil
}

// JoinParty adds a player to the given party, or to a random open party when
// code is empty. Joining a running round admits the player with a blank buffer.
func (m *Manager) JoinParty(connID, code, username, userID, email string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidInput
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	m.queue.cancel(connID)
	m.queue.cancelUser(userID)

	m.mu.Lock()
	if m.byConn[connID] != "" {
		m.mu.Unlock()
		return "", ErrConflict
	}
	var p *Party
	if code == "" {
		open := m.openPartiesLocked()
		if len(open) == 0 {
			m.mu.Unlock()
			return "", ErrNoOpenParties
		}
		p = open[rand.Intn(len(open))]
	} else if p = m.parties[code]; p == nil {
		m.mu.Unlock()
		return "", ErrNotFound
	}

	p.mu.Lock()
	if len(p.Players) >= m.opts.Capacity {
		p.mu.Unlock()
		m.mu.Unlock()
		return "", ErrCapacity
	}
	if p.playerByName(username) != nil {
		p.mu.Unlock()
		m.mu.Unlock()
		return "", ErrUsernameTaken
	}
	m.addPlayerLocked(p, connID, username, userID, email)
	players := p.usernames()
	var started *GameStarted
	if p.Status == StatusInProgress {
		started = p.gameStarted()
	}
	code = p.Code
	p.mu.Unlock()
	m.queue.acquire(userID)
	m.mu.Unlock()

	m.bc.JoinRoom(connID, code)
	m.bc.EmitToRoom(code, EventPlayerJoined, map[string]any{"username": username, "players": players})
	if started != nil {
		m.bc.EmitToPlayer(connID, EventGameStarted, started)
	}
	log.Info().Str("code", code).Str("username", username).Bool("midRound", started != nil).Msg("join_party")
	return code, nil
}

// openPartiesLocked lists parties a random join may pick. Caller holds m.mu.
func (m *Manager) openPartiesLocked() []*Party {
	var open []*Party
	for _, p := range m.parties {
		p.mu.Lock()
		if !p.closed && !p.Duel && len(p.Players) < m.opts.Capacity {
			open = append(open, p)
		}
		p.mu.Unlock()
	}
	return open
}

// OpenParties is the lobby listing.
func (m *Manager) OpenParties() []PartySummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PartySummary, 0, len(m.parties))
	for _, p := range m.parties {
		p.mu.Lock()
		if !p.Duel && len(p.Players) < m.opts.Capacity {
			out = append(out, PartySummary{
				Code:      p.Code,
				Players:   p.usernames(),
				Status:    p.Status,
				Capacity:  m.opts.Capacity,
				CreatedAt: p.CreatedAt,
			})
		}
		p.mu.Unlock()
	}
	return out
}

func (m *Manager) PartyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parties)
}

// Leave removes a player on request.
func (m *Manager) Leave(connID string) error {
	if m.CodeOf(connID) == "" {
		return ErrNotFound
	}
	m.remove(connID, "left the party")
	return nil
}

// Disconnect drops a connection from the queue and from its party, if any.
func (m *Manager) Disconnect(connID string) {
	m.queue.cancel(connID)
	if m.CodeOf(connID) != "" {
		m.remove(connID, "disconnected")
	}
}

type rankingUpdate struct {
	userID, username, email string
	delta                   float64
	won                     bool
}

// remove takes a player out of their party. While a round is running a
// departure ends the game: a single remaining player wins by default.
func (m *Manager) remove(connID, why string) {
	m.mu.Lock()
	code := m.byConn[connID]
	p := m.parties[code]
	if p == nil {
		delete(m.byConn, connID)
		m.mu.Unlock()
		return
	}
	p.mu.Lock()
	leaver := p.Players[connID]
	delete(m.byConn, connID)
	if leaver == nil {
		p.mu.Unlock()
		m.mu.Unlock()
		return
	}
	delete(p.Players, connID)

	var (
		reason   string
		winner   string
		closed   []*Player
		updates  []rankingUpdate
		watching []string
		players  []string
	)
	for _, pl := range p.Players {
		if pl.spectating == connID {
			watching = append(watching, pl.ConnID)
			pl.spectating = ""
		}
	}
	switch {
	case len(p.Players) == 0:
		reason = "Party is empty."
		closed = m.closeLocked(p)
	case p.Status == StatusInProgress:
		reason = leaver.Username + " left. Game over."
		if len(p.Players) == 1 {
			for _, pl := range p.Players {
				pl.TotalScore += m.opts.WinScore
				winner = pl.Username
				updates = append(updates, rankingUpdate{pl.UserID, pl.Username, pl.Email, m.opts.WinScore, true})
			}
			reason = leaver.Username + " left. " + winner + " wins!"
			updates = append(updates, rankingUpdate{leaver.UserID, leaver.Username, leaver.Email, 0, false})
		}
		closed = m.closeLocked(p)
	case connID == p.Host:
		reason = "Host left the party."
		closed = m.closeLocked(p)
	default:
		players = p.usernames()
	}
	p.mu.Unlock()
	m.mu.Unlock()

	m.queue.release(leaver.UserID)
	m.bc.LeaveRoom(connID, code)
	if leaver.spectating != "" {
		m.bc.LeaveRoom(connID, spectateRoom(leaver.spectating))
	}
	for _, w := range watching {
		m.bc.LeaveRoom(w, spectateRoom(connID))
	}
	log.Info().Str("code", code).Str("username", leaver.Username).Str("why", why).Bool("closed", closed != nil).Msg("leave_party")

	if reason == "" {
		m.bc.EmitToRoom(code, EventPlayerLeft, map[string]any{"username": leaver.Username, "players": players})
		m.bc.EmitToRoom(code, EventPlayerSubmit, Message{Message: leaver.Username + " has left the party.", Color: "red"})
		return
	}
	m.persist(updates)
	m.announceClosed(code, reason, closed)
}

// closeLocked tears a party down and returns its remaining players. Caller
// holds m.mu and p.mu.
func (m *Manager) closeLocked(p *Party) []*Player {
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	delete(m.parties, p.Code)
	left := make([]*Player, 0, len(p.Players))
	for connID, pl := range p.Players {
		delete(m.byConn, connID)
		left = append(left, pl)
	}
	return left
}

func (m *Manager) announceClosed(code, reason string, players []*Player) {
	m.bc.EmitToRoom(code, EventGameOverMessage, map[string]any{"message": reason})
	m.bc.EmitToRoom(code, EventPartyClosed, map[string]any{"party_code": code, "reason": reason})
	for _, pl := range players {
		m.queue.release(pl.UserID)
		m.bc.LeaveRoom(pl.ConnID, code)
		if pl.spectating != "" {
			m.bc.LeaveRoom(pl.ConnID, spectateRoom(pl.spectating))
		}
	}
	log.Info().Str("code", code).Str("reason", reason).Msg("party closed")
}

// closeAfter tears down a party once the grace delay has passed, unless a new
// round started in the meantime.
func (m *Manager) closeAfter(code string, gen uint64, reason string) {
	time.AfterFunc(m.opts.GraceDelay, func() {
		m.mu.Lock()
		p := m.parties[code]
		if p == nil {
			m.mu.Unlock()
			return
		}
		p.mu.Lock()
		if p.closed || p.Generation != gen || p.Status != StatusWaiting {
			p.mu.Unlock()
			m.mu.Unlock()
			return
		}
		players := m.closeLocked(p)
		p.mu.Unlock()
		m.mu.Unlock()
		m.announceClosed(code, reason, players)
	})
}

// persist writes ranking deltas. Players without a user id are skipped.
func (m *Manager) persist(updates []rankingUpdate) {
	if m.opts.Rankings == nil {
		return
	}
	for _, u := range updates {
		if u.userID == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, err := m.opts.Rankings.UpsertScore(ctx, u.userID, u.username, u.email, u.delta, u.won)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("userId", u.userID).Msg("ranking update failed")
			continue
		}
		log.Debug().Str("userId", u.userID).Float64("total", rec.TotalScore).Msg("ranking updated")
	}
}

// Chat relays a room message from a member.
func (m *Manager) Chat(connID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrInvalidInput
	}
	p, err := m.partyOf(connID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	pl := p.Players[connID]
	code := p.Code
	p.mu.Unlock()
	if pl == nil {
		return ErrNotFound
	}
	m.bc.EmitToRoom(code, EventMessage, Message{Message: message, Username: pl.Username, Color: "black"})
	return nil
}

// TimeLeft reports the remaining seconds of the running round.
func (m *Manager) TimeLeft(connID string) (float64, error) {
	p, err := m.partyOf(connID)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	if p.Status != StatusInProgress {
		p.mu.Unlock()
		return 0, ErrInvalidPhase
	}
	left := time.Until(p.RoundEnd).Seconds()
	p.mu.Unlock()
	if left < 0 {
		left = 0
	}
	m.bc.EmitToPlayer(connID, EventTimeLeft, map[string]any{"time_left": left})
	return left, nil
}

// ReportProblem flags the current problem in the repository.
func (m *Manager) ReportProblem(ctx context.Context, connID string) error {
	p, err := m.partyOf(connID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.Problem == nil || p.Players[connID] == nil {
		p.mu.Unlock()
		return ErrInvalidPhase
	}
	name := p.Problem.Name
	p.mu.Unlock()
	if m.opts.Problems == nil {
		return nil
	}
	if err := m.opts.Problems.IncrementReportCount(ctx, name); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	m.bc.EmitToPlayer(connID, EventPlayerSubmit, Message{Message: "Problem reported. Thank you!", Color: "green"})
	log.Info().Str("problem", name).Msg("report_problem")
	return nil
}

// CodeUpdate stores the editor buffer and mirrors it to spectators.
func (m *Manager) CodeUpdate(connID, code, console string) error {
	p, err := m.partyOf(connID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	pl := p.Players[connID]
	if pl == nil {
		p.mu.Unlock()
		return ErrNotFound
	}
	pl.Code = code
	if console != "" {
		pl.Console = console
	}
	payload := map[string]any{"username": pl.Username, "code": pl.Code, "console": pl.Console}
	p.mu.Unlock()
	m.bc.EmitToRoom(spectateRoom(connID), EventCodeUpdated, payload)
	return nil
}

// Spectate subscribes connID to another member's editor. An empty target stops
// spectating.
func (m *Manager) Spectate(connID, target string) error {
	p, err := m.partyOf(connID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	pl := p.Players[connID]
	if pl == nil {
		p.mu.Unlock()
		return ErrNotFound
	}
	prev := pl.spectating
	var payload map[string]any
	if target == "" {
		pl.spectating = ""
	} else {
		t := p.playerByName(target)
		if t == nil || t.ConnID == connID {
			p.mu.Unlock()
			return ErrNotFound
		}
		pl.spectating = t.ConnID
		payload = map[string]any{"username": t.Username, "code": t.Code, "console": t.Console}
	}
	next := pl.spectating
	p.mu.Unlock()

	if prev != "" && prev != next {
		m.bc.LeaveRoom(connID, spectateRoom(prev))
	}
	if next != "" {
		m.bc.JoinRoom(connID, spectateRoom(next))
		m.bc.EmitToPlayer(connID, EventCodeUpdated, payload)
	}
	return nil
}

// Close stops every round timer. Used at shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.parties {
		p.mu.Lock()
		if p.timer != nil {
			p.timer.Stop()
		}
		p.mu.Unlock()
	}
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
