package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

// roundStart is everything startRound needs, captured under the party lock by
// the caller.
type roundStart struct {
	gen      uint64 // generation the caller observed; a mismatch means someone else moved on
	settings RoundSettings
	newGame  bool // reset totals and the round counter
	advance  bool // count as the next round instead of replacing the current problem
}

func (m *Manager) normalize(s RoundSettings) RoundSettings {
	seen := map[model.Difficulty]bool{}
	var tiers []model.Difficulty
	for _, d := range s.Difficulties {
		if parsed, ok := model.ParseDifficulty(string(d)); ok && !seen[parsed] {
			seen[parsed] = true
			tiers = append(tiers, parsed)
		}
	}
	s.Difficulties = tiers
	if s.TimeLimitMinutes <= 0 {
		s.TimeLimitMinutes = m.opts.DefaultTimeLimit
	}
	if s.TotalRounds <= 0 {
		s.TotalRounds = 1
	}
	return s
}

// StartGame is the host starting the next round, or a new game once the last
// round is over.
func (m *Manager) StartGame(ctx context.Context, connID string, s RoundSettings) error {
	p, err := m.partyOf(connID)
	if err != nil {
		return err
	}
	s = m.normalize(s)
	if len(s.Difficulties) == 0 {
		return ErrNoProblemAvailable
	}
	p.mu.Lock()
	if p.Host != connID {
		p.mu.Unlock()
		return ErrUnauthorized
	}
	if p.Status != StatusWaiting {
		p.mu.Unlock()
		return ErrInvalidPhase
	}
	// decided on the settings of the game that just ended
	newGame := p.CurrentRound == 0 || p.CurrentRound >= p.Settings.TotalRounds
	p.Settings = s
	rs := roundStart{gen: p.Generation, settings: s, newGame: newGame, advance: true}
	p.mu.Unlock()
	return m.startRound(ctx, p, rs)
}

// SkipProblem replaces the running problem with a fresh one. The replaced
// round is never finalized.
func (m *Manager) SkipProblem(ctx context.Context, connID string) error {
	p, err := m.partyOf(connID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.Host != connID {
		p.mu.Unlock()
		return ErrUnauthorized
	}
	if p.Status != StatusInProgress {
		p.mu.Unlock()
		return ErrInvalidPhase
	}
	p.abandonRoundLocked()
	rs := roundStart{gen: p.Generation, settings: p.Settings}
	code := p.Code
	p.mu.Unlock()

	m.bc.EmitToRoom(code, EventPlayerSubmit, Message{Message: "Host skipped the problem.", Bold: true, Color: "blue"})
	log.Info().Str("code", code).Msg("skip_problem")
	return m.startRound(ctx, p, rs)
}

// RestartGame discards totals and starts again from round one.
func (m *Manager) RestartGame(ctx context.Context, connID string) error {
	p, err := m.partyOf(connID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.Host != connID {
		p.mu.Unlock()
		return ErrUnauthorized
	}
	p.abandonRoundLocked()
	rs := roundStart{gen: p.Generation, settings: p.Settings, newGame: true, advance: true}
	code := p.Code
	p.mu.Unlock()

	m.bc.EmitToRoom(code, EventPlayerSubmit, Message{Message: "Host restarted the game.", Bold: true, Color: "blue"})
	log.Info().Str("code", code).Msg("restart_game")
	return m.startRound(ctx, p, rs)
}

// abandonRoundLocked stops the current round without scoring it.
func (p *Party) abandonRoundLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.finalized = p.Generation
	p.Status = StatusWaiting
	p.Problem = nil
}

func (m *Manager) startRound(ctx context.Context, p *Party, rs roundStart) error {
	if m.opts.Problems == nil {
		return ErrNoProblemAvailable
	}
	prob, err := m.opts.Problems.FetchRandom(ctx, rs.settings.Difficulties)
	if errors.Is(err, model.ErrNotFound) || (err == nil && prob == nil) {
		return ErrNoProblemAvailable
	}
	if err != nil {
		return fmt.Errorf("fetch problem: %w", err)
	}

	p.mu.Lock()
	if p.closed || p.Generation != rs.gen || p.Status != StatusWaiting {
		p.mu.Unlock()
		return ErrInvalidPhase
	}
	if rs.newGame {
		p.CurrentRound = 0
		for _, pl := range p.Players {
			pl.TotalScore = 0
		}
	}
	if rs.advance || p.CurrentRound == 0 {
		p.CurrentRound++
	}
	p.Generation++
	gen := p.Generation
	code := p.Code
	p.RoundID = uuid.NewString()
	p.Problem = prob
	p.Status = StatusInProgress
	p.FinishCount = 0
	for _, pl := range p.Players {
		pl.Passed = false
		pl.FinishOrder = 0
		pl.CurrentScore = 0
		pl.Code = ""
		pl.Console = ""
	}
	limit := time.Duration(p.Settings.TimeLimitMinutes) * m.minute
	p.RoundEnd = time.Now().Add(limit)
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(limit, func() { m.expireRound(code, gen) })
	started := p.gameStarted()
	p.mu.Unlock()

	m.bc.EmitToRoom(code, EventGameStarted, started)
	log.Info().Str("code", code).Str("problem", prob.Name).Int("round", started.Round).Uint64("gen", gen).Msg("start_game")
	return nil
}

// gameStarted builds the round announcement. Caller holds p.mu.
func (p *Party) gameStarted() *GameStarted {
	return &GameStarted{
		Problem:     p.Problem.Public(),
		PartyCode:   p.Code,
		RoundID:     p.RoundID,
		TimeLimit:   p.Settings.TimeLimitMinutes,
		EndTime:     p.RoundEnd.UnixMilli(),
		Round:       p.CurrentRound,
		TotalRounds: p.Settings.TotalRounds,
	}
}

func (m *Manager) expireRound(code string, gen uint64) {
	if m.FinishRound(code, gen, "Time's up!") {
		log.Info().Str("code", code).Uint64("gen", gen).Msg("round timed out")
	}
}

// FinishRound scores round gen of the party exactly once. Later or stale calls
// return false without side effects.
func (m *Manager) FinishRound(code string, gen uint64, reason string) bool {
	p, err := m.get(code)
	if err != nil {
		return false
	}
	p.mu.Lock()
	if p.closed || p.Status != StatusInProgress || p.Generation != gen || p.finalized == gen {
		p.mu.Unlock()
		return false
	}
	p.finalized = gen
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	for _, pl := range p.Players {
		pl.TotalScore += pl.CurrentScore
	}
	p.Status = StatusWaiting
	board := p.leaderboard()
	gameOver := p.CurrentRound >= p.Settings.TotalRounds

	var updates []rankingUpdate
	if gameOver && len(board.Leaderboard) > 0 {
		top := board.Leaderboard[0]
		for _, pl := range p.sortedPlayers() {
			won := len(p.Players) > 1 && pl.Username == top.Username && top.Score > 0
			updates = append(updates, rankingUpdate{pl.UserID, pl.Username, pl.Email, pl.TotalScore, won})
		}
	}
	var export *RoundExport
	if m.opts.ExportFile != "" {
		export = p.exportSnapshot(reason, gameOver)
	}
	duel := p.Duel
	p.mu.Unlock()

	m.bc.EmitToRoom(code, EventGameOverMessage, map[string]any{"message": reason})
	m.bc.EmitToRoom(code, EventLeaderboard, board)
	if gameOver {
		m.bc.EmitToRoom(code, EventGameOver, map[string]any{"party_code": code})
	}
	log.Info().Str("code", code).Uint64("gen", gen).Bool("gameOver", gameOver).Str("reason", reason).Msg("round finished")

	m.persist(updates)
	if export != nil {
		if err := ExportRound(*export, m.opts.ExportFile); err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to export round results")
		} else {
			log.Info().Str("code", code).Str("file", m.opts.ExportFile).Msg("exported round results")
		}
	}
	if duel && gameOver {
		m.closeAfter(code, gen, "Duel finished.")
	}
	return true
}
