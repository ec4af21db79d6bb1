package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nimnim111/LeetDuel-Online/internal/judge"
)

type outcome struct {
	stale  bool // round moved on or player left while judging
	finish bool // first full pass for this player
	rank   int
	score  float64
}

// SubmitCode judges a player's code against the running problem. The judge
// runs without any lock held; the result only counts if the same round is
// still open when it returns.
func (m *Manager) SubmitCode(ctx context.Context, connID, code string) (judge.Result, error) {
	if m.opts.Judge == nil {
		return judge.Result{}, ErrInvalidPhase
	}
	p, err := m.partyOf(connID)
	if err != nil {
		return judge.Result{}, err
	}
	p.mu.Lock()
	pl := p.Players[connID]
	if pl == nil {
		p.mu.Unlock()
		return judge.Result{}, ErrNotFound
	}
	if p.Status != StatusInProgress || p.Problem == nil {
		p.mu.Unlock()
		return judge.Result{}, ErrInvalidPhase
	}
	problem := *p.Problem
	gen := p.Generation
	partyCode := p.Code
	username := pl.Username
	pl.Code = code
	p.mu.Unlock()

	res := m.opts.Judge.Submit(ctx, problem, code)
	out := p.record(connID, gen, res)

	m.bc.EmitToPlayer(connID, EventCodeSubmitted, map[string]any{"message": res.Summary(), "result": res})
	if out.stale || res.Status == judge.StatusRateLimited {
		log.Debug().Str("code", partyCode).Str("username", username).Bool("stale", out.stale).Str("status", string(res.Status)).Msg("submission not scored")
		return res, nil
	}

	roomMsg := Message{Message: username + " encountered an error.", Color: "red"}
	if res.Message == "" {
		roomMsg = Message{
			Message: fmt.Sprintf("%s passed %d/%d test cases in %dms.", username, res.PassedCount, res.TotalCount, res.ElapsedMillis),
			Color:   "black",
		}
		if res.Accepted {
			roomMsg.Bold, roomMsg.Color = true, "green"
		}
	}
	m.bc.EmitToRoom(partyCode, EventPlayerSubmit, roomMsg)
	log.Info().Str("code", partyCode).Str("username", username).Str("status", string(res.Status)).Int("rank", out.rank).Float64("score", out.score).Msg("submit_code")

	if out.finish {
		m.FinishRound(partyCode, gen, username+" passed all test cases!")
	}
	return res, nil
}

// record applies a judged result to the player's round state. Finish ranks
// come from FinishCount under p.mu, so concurrent passes never share a rank.
func (p *Party) record(connID string, gen uint64, res judge.Result) outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl := p.Players[connID]
	if p.closed || pl == nil || p.Generation != gen || p.finalized == gen || p.Status != StatusInProgress {
		return outcome{stale: true}
	}
	if res.Status == judge.StatusRateLimited {
		return outcome{}
	}
	if res.Message != "" {
		pl.Console = res.Message
		return outcome{}
	}
	pl.Console = res.Console

	var out outcome
	if res.Accepted && pl.FinishOrder == 0 {
		p.FinishCount++
		pl.FinishOrder = p.FinishCount
		pl.Passed = true
		out.finish = true
	}
	out.rank = pl.FinishOrder
	if out.rank == 0 {
		out.rank = p.FinishCount + 1
	}
	out.score = Score(res.PassedCount, res.TotalCount, res.ElapsedMillis, out.rank)
	if out.score > pl.CurrentScore {
		pl.CurrentScore = out.score
	}
	return out
}
