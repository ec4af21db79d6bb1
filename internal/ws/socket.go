package ws

import (
    "context"
    "errors"
    "net/http"
    "sync"
    "time"

    "github.com/gin-gonic/gin"
    socketio "github.com/googollee/go-socket.io"
    "github.com/rs/zerolog/log"

    "github.com/nimnim111/LeetDuel-Online/internal/game"
    "github.com/nimnim111/LeetDuel-Online/internal/model"
)

// Server bridges Socket.IO connections to the game manager and implements
// game.Broadcaster on top of the Socket.IO rooms.
type Server struct {
    GM    *game.Manager
    io    *socketio.Server
    mu    sync.RWMutex
    conns map[string]socketio.Conn // socketID -> Conn
    // per connection submission lanes, drained in arrival order
    lanes map[string]chan func()

    // bounds blocking handlers such as start_game
    requestTimeout time.Duration
    // bounds a whole submission, judge queueing included
    submitTimeout time.Duration
}

func New() *Server {
    return &Server{
        io:             socketio.NewServer(nil),
        conns:          make(map[string]socketio.Conn),
        lanes:          make(map[string]chan func()),
        requestTimeout: 10 * time.Second,
        submitTimeout:  time.Minute,
    }
}

type identity struct {
    Username string `json:"username"`
    UserID   string `json:"uid"`
    Email    string `json:"email"`
}

type joinPayload struct {
    identity
    PartyCode string `json:"party_code"`
}

type startPayload struct {
    Difficulties []string `json:"difficulties"`
    TimeLimit    int      `json:"time_limit"`
    TotalRounds  int      `json:"total_rounds"`
}

func (p startPayload) settings() game.RoundSettings {
    s := game.RoundSettings{TimeLimitMinutes: p.TimeLimit, TotalRounds: p.TotalRounds}
    for _, d := range p.Difficulties {
        if parsed, ok := model.ParseDifficulty(d); ok {
            s.Difficulties = append(s.Difficulties, parsed)
        }
    }
    return s
}

// Mount registers the event handlers and attaches Socket.IO to the Gin engine.
func (srv *Server) Mount(r *gin.Engine, gm *game.Manager) *socketio.Server {
    srv.GM = gm
    io := srv.io

    io.OnConnect("/", func(s socketio.Conn) error {
        srv.track(s)
        log.Info().Str("sid", s.ID()).Msg("socket connected")
        return nil
    })

    io.OnEvent("/", "create_party", func(s socketio.Conn, payload identity) map[string]any {
        code, err := srv.GM.CreateParty(s.ID(), payload.Username, payload.UserID, payload.Email)
        if err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"party_code": code}
    })

    io.OnEvent("/", "join_party", func(s socketio.Conn, payload joinPayload) map[string]any {
        code, err := srv.GM.JoinParty(s.ID(), payload.PartyCode, payload.Username, payload.UserID, payload.Email)
        if err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"party_code": code}
    })

    io.OnEvent("/", "start_game", func(s socketio.Conn, payload startPayload) map[string]any {
        ctx, cancel := context.WithTimeout(context.Background(), srv.requestTimeout)
        defer cancel()
        if err := srv.GM.StartGame(ctx, s.ID(), payload.settings()); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    // The verdict arrives as code_submitted; judging must not hold up this
    // connection's other events, but one connection's submissions are judged
    // in the order they were sent.
    io.OnEvent("/", "submit_code", func(s socketio.Conn, payload struct {
        Code string `json:"code"`
    }) map[string]any {
        queued := srv.serial(s.ID(), func() {
            ctx, cancel := context.WithTimeout(context.Background(), srv.submitTimeout)
            defer cancel()
            if _, err := srv.GM.SubmitCode(ctx, s.ID(), payload.Code); err != nil {
                srv.err(s, err)
            }
        })
        if !queued {
            s.Emit("error", map[string]any{"code": "busy", "message": "Too many pending submissions."})
            return map[string]any{"error": "Too many pending submissions.", "code": "busy"}
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "leave_party", func(s socketio.Conn) map[string]any {
        if err := srv.GM.Leave(s.ID()); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "skip_problem", func(s socketio.Conn) map[string]any {
        ctx, cancel := context.WithTimeout(context.Background(), srv.requestTimeout)
        defer cancel()
        if err := srv.GM.SkipProblem(ctx, s.ID()); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "restart_game", func(s socketio.Conn) map[string]any {
        ctx, cancel := context.WithTimeout(context.Background(), srv.requestTimeout)
        defer cancel()
        if err := srv.GM.RestartGame(ctx, s.ID()); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "chat_message", func(s socketio.Conn, payload struct {
        Message string `json:"message"`
    }) map[string]any {
        if err := srv.GM.Chat(s.ID(), payload.Message); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "code_update", func(s socketio.Conn, payload struct {
        Code    string `json:"code"`
        Console string `json:"console"`
    }) {
        // high frequency; a stale party is not worth an error event
        _ = srv.GM.CodeUpdate(s.ID(), payload.Code, payload.Console)
    })

    io.OnEvent("/", "spectate_player", func(s socketio.Conn, payload struct {
        Username string `json:"username"`
    }) map[string]any {
        if err := srv.GM.Spectate(s.ID(), payload.Username); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "time_left", func(s socketio.Conn) map[string]any {
        left, err := srv.GM.TimeLeft(s.ID())
        if err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"time_left": left}
    })

    io.OnEvent("/", "report_problem", func(s socketio.Conn) map[string]any {
        ctx, cancel := context.WithTimeout(context.Background(), srv.requestTimeout)
        defer cancel()
        if err := srv.GM.ReportProblem(ctx, s.ID()); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "join_queue", func(s socketio.Conn, payload identity) map[string]any {
        ctx, cancel := context.WithTimeout(context.Background(), srv.requestTimeout)
        defer cancel()
        if err := srv.GM.Enqueue(ctx, s.ID(), payload.UserID, payload.Username, payload.Email); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "leave_queue", func(s socketio.Conn) map[string]any {
        if err := srv.GM.LeaveQueue(s.ID()); err != nil {
            return srv.err(s, err)
        }
        return map[string]any{"ok": true}
    })

    io.OnError("/", func(s socketio.Conn, e error) {
        if s == nil {
            log.Error().Err(e).Msg("socket error")
            return
        }
        log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
    })
    io.OnDisconnect("/", func(s socketio.Conn, reason string) {
        srv.untrack(s.ID())
        srv.GM.Disconnect(s.ID())
        log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
    })

    go func() {
        if err := io.Serve(); err != nil {
            log.Error().Err(err).Msg("socket.io serve")
        }
    }()

    r.GET("/socket.io/*any", gin.WrapH(io))
    r.POST("/socket.io/*any", gin.WrapH(io))

    // Basic CORS preflight for Socket.IO POST
    r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
        c.Header("Access-Control-Allow-Origin", "*")
        c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
        c.Header("Access-Control-Allow-Headers", "Content-Type")
        c.Status(http.StatusNoContent)
    })

    return io
}

func (srv *Server) track(c socketio.Conn) {
    srv.mu.Lock()
    srv.conns[c.ID()] = c
    srv.mu.Unlock()
}

func (srv *Server) untrack(id string) {
    srv.mu.Lock()
    delete(srv.conns, id)
    if lane := srv.lanes[id]; lane != nil {
        close(lane)
        delete(srv.lanes, id)
    }
    srv.mu.Unlock()
}

const laneDepth = 4

// serial runs job on the connection's lane after every job queued before it.
// It reports false when the lane is full.
func (srv *Server) serial(id string, job func()) bool {
    srv.mu.Lock()
    defer srv.mu.Unlock()
    lane := srv.lanes[id]
    if lane == nil {
        lane = make(chan func(), laneDepth)
        srv.lanes[id] = lane
        go func() {
            for job := range lane {
                job()
            }
        }()
    }
    select {
    case lane <- job:
        return true
    default:
        return false
    }
}

func (srv *Server) conn(id string) socketio.Conn {
    srv.mu.RLock()
    defer srv.mu.RUnlock()
    return srv.conns[id]
}

func (srv *Server) EmitToPlayer(connID, event string, payload any) {
    if c := srv.conn(connID); c != nil {
        c.Emit(event, payload)
    }
}

func (srv *Server) EmitToRoom(room, event string, payload any) {
    srv.io.BroadcastToRoom("/", room, event, payload)
}

func (srv *Server) JoinRoom(connID, room string) {
    if c := srv.conn(connID); c != nil {
        c.Join(room)
    }
}

func (srv *Server) LeaveRoom(connID, room string) {
    if c := srv.conn(connID); c != nil {
        c.Leave(room)
    }
}

// errCode maps manager errors to the stable codes clients switch on.
// Wrapped sentinels are checked before their bases.
func errCode(err error) string {
    switch {
    case errors.Is(err, game.ErrNoOpenParties):
        return "no_open_parties"
    case errors.Is(err, game.ErrNoProblemAvailable):
        return "no_problem"
    case errors.Is(err, game.ErrNotFound):
        return "not_found"
    case errors.Is(err, game.ErrUnauthorized):
        return "unauthorized"
    case errors.Is(err, game.ErrCapacity):
        return "capacity"
    case errors.Is(err, game.ErrAlreadyActive):
        return "already_active"
    case errors.Is(err, game.ErrUsernameTaken):
        return "username_taken"
    case errors.Is(err, game.ErrConflict):
        return "conflict"
    case errors.Is(err, game.ErrInvalidPhase):
        return "invalid_phase"
    case errors.Is(err, game.ErrInvalidInput):
        return "bad_request"
    }
    return "internal"
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
    code := errCode(err)
    message := err.Error()
    if code == "internal" {
        log.Error().Str("sid", s.ID()).Err(err).Msg("handler failed")
        message = "Something went wrong."
    }
    s.Emit("error", map[string]any{"code": code, "message": message})
    return map[string]any{"error": message, "code": code}
}
