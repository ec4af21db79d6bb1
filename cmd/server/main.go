package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "io"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
    zerologlog "github.com/rs/zerolog/log"

    "github.com/nimnim111/LeetDuel-Online/internal/api"
    "github.com/nimnim111/LeetDuel-Online/internal/config"
    "github.com/nimnim111/LeetDuel-Online/internal/game"
    "github.com/nimnim111/LeetDuel-Online/internal/judge"
    "github.com/nimnim111/LeetDuel-Online/internal/model"
    "github.com/nimnim111/LeetDuel-Online/internal/sandbox"
    "github.com/nimnim111/LeetDuel-Online/internal/sandbox/docker"
    "github.com/nimnim111/LeetDuel-Online/internal/sandbox/judge0"
    "github.com/nimnim111/LeetDuel-Online/internal/sandbox/piston"
    "github.com/nimnim111/LeetDuel-Online/internal/store/memory"
    "github.com/nimnim111/LeetDuel-Online/internal/store/postgres"
    "github.com/nimnim111/LeetDuel-Online/internal/store/redisrank"
    "github.com/nimnim111/LeetDuel-Online/internal/ws"
)

const version = "v1.0.0-dev"

func main() {
    var (
        showHelp    = flag.Bool("help", false, "Show help message")
        showVersion = flag.Bool("version", false, "Show version information")
        portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
        seed        = flag.Bool("seed", false, "Load PROBLEMS_FILE into the database and exit")
    )
    flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
    flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
    flag.Parse()

    if *showHelp {
        fmt.Printf(`LeetDuel - Real-time competitive coding server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)
  --seed          Load PROBLEMS_FILE into DATABASE_URL and exit

Environment Variables:
  PORT                Port to listen on (default: 8080)
  LOG_LEVEL           debug, info, warn or error (default: info)
  DATABASE_URL        PostgreSQL DSN for problems and rankings (optional)
  REDIS_ADDR          Redis address for the ranking ladder (optional)
  RANKING_BACKEND     postgres, redis or memory
  PROBLEMS_FILE       Problem catalogue when no database is set (default: problems.json)
  SANDBOX_BACKEND     docker, piston or judge0 (default: docker)
  SANDBOX_COMMAND     Command line the source is appended to (docker backend)
  PISTON_URL          Piston API base URL
  JUDGE0_URL          Judge0 API base URL
  SANDBOX_TIMEOUT     Hard wall-clock limit per run (default: 10s)
  JUDGE_TIME_BUDGET   Soft limit on measured run time (default: 2s)
  PARTY_CAPACITY      Players per party (default: 10)
  EXPORT_ENABLED      Export round results to file (default: false)
  EXPORT_FILE         Path to export round results (default: ./leetduel-results.txt)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
        return
    }

    if *showVersion {
        fmt.Printf("LeetDuel %s\n", version)
        return
    }

    cfg := config.Load()
    if *portFlag != "" {
        cfg.Port = *portFlag
    }

    // zerolog setup (human-friendly console)
    zerolog.TimeFieldFormat = time.RFC3339
    cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
    zerologlog.Logger = zerologlog.Output(cw)
    if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
        zerolog.SetGlobalLevel(lvl)
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if *seed {
        if err := seedProblems(ctx, cfg); err != nil {
            zerologlog.Fatal().Err(err).Msg("seed failed")
        }
        return
    }

    problems, rankings, closers, err := openStores(ctx, cfg)
    if err != nil {
        zerologlog.Fatal().Err(err).Msg("store setup failed")
    }
    defer func() {
        for _, c := range closers {
            c.Close()
        }
    }()

    exec, err := openSandbox(cfg.Sandbox)
    if err != nil {
        zerologlog.Fatal().Err(err).Msg("sandbox setup failed")
    }
    jd := judge.New(exec, judge.Config{
        HardTimeout: cfg.SandboxTimeout,
        TimeBudget:  cfg.JudgeTimeBudget,
        Rate:        cfg.JudgeRate,
        Burst:       cfg.JudgeBurst,
        Concurrency: cfg.JudgeConcurrency,
    })

    // Gin setup with custom logger (skip /socket.io noise)
    gin.SetMode(gin.ReleaseMode)
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        start := time.Now()
        c.Next()
        path := c.Request.URL.Path
        if strings.HasPrefix(path, "/socket.io") {
            return
        }
        status := c.Writer.Status()
        dur := time.Since(start)
        zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
    })

    // Socket server + game manager
    sock := ws.New()
    opts := game.Options{
        Problems:         problems,
        Rankings:         rankings,
        Judge:            jd,
        Broadcaster:      sock,
        Capacity:         cfg.PartyCapacity,
        DefaultTimeLimit: cfg.DefaultTimeLimit,
        WinScore:         cfg.WinScore,
        GraceDelay:       cfg.GraceDelay,
    }
    if cfg.ExportEnabled {
        opts.ExportFile = cfg.ExportFile
    }
    gm := game.NewManager(opts)
    defer gm.Close()
    sio := sock.Mount(r, gm)
    defer sio.Close()

    (&api.Handler{Rankings: rankings, Lobby: gm}).Register(r)

    srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        srv.Shutdown(shutdownCtx)
    }()

    zerologlog.Info().
        Str("port", cfg.Port).
        Str("rankings", cfg.RankingBackend).
        Str("sandbox", cfg.Sandbox.Backend).
        Msg("listening")
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        zerologlog.Fatal().Err(err).Msg("server stopped")
    }
}

// openStores picks the problem repository and ranking store. Postgres serves
// problems whenever DATABASE_URL is set; rankings follow RANKING_BACKEND.
func openStores(ctx context.Context, cfg config.Config) (model.ProblemRepository, model.RankingStore, []io.Closer, error) {
    var (
        problems model.ProblemRepository
        rankings model.RankingStore
        closers  []io.Closer
        pg       *postgres.Store
    )
    if cfg.DatabaseURL != "" {
        s, err := postgres.Open(ctx, cfg.DatabaseURL)
        if err != nil {
            return nil, nil, nil, err
        }
        if err := s.Migrate(ctx); err != nil {
            s.Close()
            return nil, nil, nil, err
        }
        pg = s
        problems = s
        closers = append(closers, s)
    } else {
        s, err := memory.LoadProblems(cfg.ProblemsFile)
        if err != nil {
            return nil, nil, nil, err
        }
        zerologlog.Info().Int("count", s.Len()).Str("file", cfg.ProblemsFile).Msg("problems loaded")
        problems = s
    }

    switch cfg.RankingBackend {
    case "postgres":
        if pg == nil {
            return nil, nil, nil, errors.New("RANKING_BACKEND=postgres requires DATABASE_URL")
        }
        rankings = pg
    case "redis":
        s, err := redisrank.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
        if err != nil {
            return nil, nil, nil, err
        }
        rankings = s
        closers = append(closers, s)
    case "memory":
        rankings = memory.NewRankings()
    default:
        return nil, nil, nil, fmt.Errorf("unknown ranking backend %q", cfg.RankingBackend)
    }
    return problems, rankings, closers, nil
}

func openSandbox(cfg sandbox.Config) (sandbox.Executor, error) {
    switch cfg.Backend {
    case "docker":
        e, err := docker.New(cfg.Command)
        if err != nil {
            return nil, err
        }
        return e, nil
    case "piston":
        return piston.New(cfg.PistonURL, cfg.PistonLanguage, cfg.PistonVersion), nil
    case "judge0":
        return judge0.New(cfg.Judge0URL, cfg.Judge0Key, cfg.Judge0Language), nil
    }
    return nil, fmt.Errorf("unknown sandbox backend %q", cfg.Backend)
}

func seedProblems(ctx context.Context, cfg config.Config) error {
    if cfg.DatabaseURL == "" {
        return errors.New("--seed requires DATABASE_URL")
    }
    catalogue, err := memory.LoadProblems(cfg.ProblemsFile)
    if err != nil {
        return err
    }
    s, err := postgres.Open(ctx, cfg.DatabaseURL)
    if err != nil {
        return err
    }
    defer s.Close()
    if err := s.Migrate(ctx); err != nil {
        return err
    }
    for _, p := range catalogue.All() {
        id, err := s.InsertProblem(ctx, p)
        if err != nil {
            return fmt.Errorf("insert %q: %w", p.Name, err)
        }
        zerologlog.Info().Int("id", id).Str("name", p.Name).Msg("problem seeded")
    }
    return nil
}
