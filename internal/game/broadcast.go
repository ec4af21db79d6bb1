package game

import (
	"context"

	"github.com/nimnim111/LeetDuel-Online/internal/judge"
	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

// Broadcaster delivers events to connections and rooms. Room names are party
// codes or spectateRoom(connID).
type Broadcaster interface {
	EmitToPlayer(connID, event string, payload any)
	EmitToRoom(room, event string, payload any)
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)
}

type Judge interface {
	Submit(ctx context.Context, problem model.Problem, code string) judge.Result
}

func spectateRoom(connID string) string { return "spectate:" + connID }

type nopBroadcaster struct{}

func (nopBroadcaster) EmitToPlayer(string, string, any) {}
func (nopBroadcaster) EmitToRoom(string, string, any)   {}
func (nopBroadcaster) JoinRoom(string, string)          {}
func (nopBroadcaster) LeaveRoom(string, string)         {}

// Outbound event names.
const (
	EventPartyCreated    = "party_created"
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventGameStarted     = "game_started"
	EventCodeSubmitted   = "code_submitted"
	EventPlayerSubmit    = "player_submit"
	EventGameOverMessage = "game_over_message"
	EventGameOver        = "game_over"
	EventLeaderboard     = "leaderboard"
	EventMessage         = "message_received"
	EventTimeLeft        = "time_left"
	EventCodeUpdated     = "code_updated"
	EventQueueJoined     = "queue_joined"
	EventMatchFound      = "match_found"
	EventPartyClosed     = "party_closed"
)
