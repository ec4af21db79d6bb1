package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nimnim111/LeetDuel-Online/internal/sandbox"
)

type Config struct {
	Port     string
	LogLevel string

	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RankingBackend string // postgres | redis | memory
	ProblemsFile   string

	Sandbox        sandbox.Config
	SandboxTimeout time.Duration

	JudgeTimeBudget  time.Duration
	JudgeRate        float64
	JudgeBurst       int
	JudgeConcurrency int

	PartyCapacity    int
	DefaultTimeLimit int // minutes
	WinScore         float64
	GraceDelay       time.Duration

	ExportEnabled bool
	ExportFile    string
}

// Load reads .env.local and .env when present, then the environment.
// Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load(existing(".env.local", ".env")...)
	return FromEnv()
}

func existing(files ...string) []string {
	var out []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))

	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisAddr = os.Getenv("REDIS_ADDR")
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.RedisDB = getenvInt("REDIS_DB", 0)
	c.RankingBackend = strings.ToLower(os.Getenv("RANKING_BACKEND"))
	if c.RankingBackend == "" {
		c.RankingBackend = "memory"
		if c.DatabaseURL != "" {
			c.RankingBackend = "postgres"
		}
	}
	c.ProblemsFile = getenv("PROBLEMS_FILE", "problems.json")

	c.Sandbox = sandbox.Config{
		Backend:        strings.ToLower(getenv("SANDBOX_BACKEND", "docker")),
		Command:        os.Getenv("SANDBOX_COMMAND"),
		PistonURL:      getenv("PISTON_URL", "http://localhost:2000"),
		PistonLanguage: getenv("PISTON_LANGUAGE", "python"),
		PistonVersion:  getenv("PISTON_VERSION", "3.10.0"),
		Judge0URL:      getenv("JUDGE0_URL", "https://ce.judge0.com"),
		Judge0Key:      os.Getenv("JUDGE0_KEY"),
		Judge0Language: getenvInt("JUDGE0_LANGUAGE", 100),
	}
	c.SandboxTimeout = getenvDuration("SANDBOX_TIMEOUT", 10*time.Second)

	c.JudgeTimeBudget = getenvDuration("JUDGE_TIME_BUDGET", 2*time.Second)
	c.JudgeRate = getenvFloat("JUDGE_RATE", 2)
	c.JudgeBurst = getenvInt("JUDGE_BURST", 5)
	c.JudgeConcurrency = getenvInt("JUDGE_CONCURRENCY", 4)

	c.PartyCapacity = getenvInt("PARTY_CAPACITY", 10)
	c.DefaultTimeLimit = getenvInt("DEFAULT_TIME_LIMIT", 15)
	c.WinScore = getenvFloat("WIN_SCORE", 100)
	c.GraceDelay = getenvDuration("GRACE_DELAY", 5*time.Second)

	c.ExportEnabled = getenvBool("EXPORT_ENABLED", false)
	c.ExportFile = getenv("EXPORT_FILE", "./leetduel-results.txt")
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return v
	}
	return def
}

// getenvDuration accepts Go durations ("2s") or plain seconds ("2").
func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

func getenvBool(k string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(k)); err == nil {
		return v
	}
	return def
}
