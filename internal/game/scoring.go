package game

import (
	"math"
	"sort"
)

// Score rewards correctness, damps wall time logarithmically and divides by
// finish rank.
func Score(passed, total, elapsedMillis, finishRank int) float64 {
	if total <= 0 || passed <= 0 {
		return 0
	}
	if finishRank < 1 {
		finishRank = 1
	}
	elapsed := math.Max(2, float64(elapsedMillis))
	return 100 * float64(passed) / (math.Log10(elapsed) * float64(finishRank) * float64(total))
}

// sortedPlayers orders by join sequence. Caller holds p.mu.
func (p *Party) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(p.Players))
	for _, pl := range p.Players {
		out = append(out, pl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinSeq < out[j].JoinSeq })
	return out
}

// leaderboard sorts by total score, ties broken by join order. Caller holds p.mu.
func (p *Party) leaderboard() Leaderboard {
	players := p.sortedPlayers()
	sort.SliceStable(players, func(i, j int) bool { return players[i].TotalScore > players[j].TotalScore })
	entries := make([]LeaderboardEntry, len(players))
	for i, pl := range players {
		entries[i] = LeaderboardEntry{
			Username:    pl.Username,
			Score:       pl.TotalScore,
			RoundScore:  pl.CurrentScore,
			FinishOrder: pl.FinishOrder,
		}
	}
	return Leaderboard{Leaderboard: entries, Rounds: p.CurrentRound, TotalRounds: p.Settings.TotalRounds}
}
