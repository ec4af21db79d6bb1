package ws

import (
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/nimnim111/LeetDuel-Online/internal/game"
    "github.com/nimnim111/LeetDuel-Online/internal/model"
)

func TestErrCode(t *testing.T) {
    cases := []struct {
        err  error
        want string
    }{
        {game.ErrNoOpenParties, "no_open_parties"},
        {game.ErrNoProblemAvailable, "no_problem"},
        {game.ErrNotFound, "not_found"},
        {game.ErrUnauthorized, "unauthorized"},
        {game.ErrCapacity, "capacity"},
        {game.ErrAlreadyActive, "already_active"},
        {game.ErrUsernameTaken, "username_taken"},
        {game.ErrConflict, "conflict"},
        {game.ErrInvalidPhase, "invalid_phase"},
        {game.ErrInvalidInput, "bad_request"},
        {fmt.Errorf("start: %w", game.ErrCapacity), "capacity"},
        {errors.New("boom"), "internal"},
    }
    for _, c := range cases {
        if got := errCode(c.err); got != c.want {
            t.Fatalf("errCode(%v) = %s, want %s", c.err, got, c.want)
        }
    }
}

func TestStartPayloadSettings(t *testing.T) {
    s := startPayload{Difficulties: []string{"easy", "HARD", "bogus"}, TimeLimit: 5, TotalRounds: 3}.settings()
    if len(s.Difficulties) != 2 || s.Difficulties[0] != model.DifficultyEasy || s.Difficulties[1] != model.DifficultyHard {
        t.Fatalf("unexpected difficulties %v", s.Difficulties)
    }
    if s.TimeLimitMinutes != 5 || s.TotalRounds != 3 {
        t.Fatalf("unexpected settings %+v", s)
    }
}

func TestBroadcasterIgnoresUnknownConnections(t *testing.T) {
    srv := New()
    srv.EmitToPlayer("nobody", game.EventTimeLeft, map[string]any{"time_left": 1})
    srv.JoinRoom("nobody", "ROOM01")
    srv.LeaveRoom("nobody", "ROOM01")
    if srv.conn("nobody") != nil {
        t.Fatal("unknown connection should not be tracked")
    }
}

func TestSubmissionsRunInArrivalOrder(t *testing.T) {
    srv := New()
    var (
        mu    sync.Mutex
        order []int
    )
    done := make(chan struct{})
    for i := 0; i < 3; i++ {
        i := i
        ok := srv.serial("a", func() {
            if i == 0 {
                time.Sleep(20 * time.Millisecond)
            }
            mu.Lock()
            order = append(order, i)
            mu.Unlock()
            if i == 2 {
                close(done)
            }
        })
        if !ok {
            t.Fatalf("should be able to queue submission %d", i)
        }
    }
    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatal("timed out waiting for submissions")
    }
    mu.Lock()
    defer mu.Unlock()
    if fmt.Sprint(order) != "[0 1 2]" {
        t.Fatalf("submissions should be judged in order, got %v", order)
    }
}

func TestSubmissionLaneIsBoundedAndClosedOnDisconnect(t *testing.T) {
    srv := New()
    block := make(chan struct{})
    started := make(chan struct{})
    if !srv.serial("a", func() { close(started); <-block }) {
        t.Fatal("should be able to queue a submission")
    }
    <-started
    for i := 0; i < laneDepth; i++ {
        if !srv.serial("a", func() {}) {
            t.Fatalf("lane should hold %d pending submissions", laneDepth)
        }
    }
    if srv.serial("a", func() {}) {
        t.Fatal("full lane should reject")
    }
    if !srv.serial("b", func() {}) {
        t.Fatal("other connections should have their own lane")
    }
    close(block)

    srv.untrack("a")
    srv.mu.RLock()
    _, ok := srv.lanes["a"]
    srv.mu.RUnlock()
    if ok {
        t.Fatal("disconnect should drop the lane")
    }
}
