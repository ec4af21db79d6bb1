package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
	"github.com/nimnim111/LeetDuel-Online/internal/sandbox"
)

type Status string

const (
	StatusAccepted          Status = "Accepted"
	StatusWrongAnswer       Status = "Wrong Answer"
	StatusExecutionError    Status = "Execution Error"
	StatusTimeLimitExceeded Status = "Time Limit Exceeded"
	StatusRateLimited       Status = "Rate Limited"
)

const (
	MessageRateLimited       = "Rate limit exceeded. Please wait before submitting again."
	MessageTimeLimitExceeded = "Time Limit Exceeded"
	MessageMalformedOutput   = "Execution Error: no result produced"
	MessageNoTestCases       = "Execution Error: problem has no test cases"
)

type FailureDetail struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Result is the outcome of judging one submission. Message is set only for
// execution, time limit and rate limit failures, in which case the counts are zero.
type Result struct {
	Status        Status         `json:"status"`
	Accepted      bool           `json:"accepted"`
	Message       string         `json:"message,omitempty"`
	ElapsedMillis int            `json:"elapsed_ms"`
	PassedCount   int            `json:"passed"`
	TotalCount    int            `json:"total"`
	FirstFailure  *FailureDetail `json:"first_failure,omitempty"`
	Console       string         `json:"console,omitempty"`
}

type Config struct {
	HardTimeout time.Duration
	TimeBudget  time.Duration
	Rate        float64 // executions per second
	Burst       int
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		HardTimeout: 10 * time.Second,
		TimeBudget:  2 * time.Second,
		Rate:        2,
		Burst:       5,
		Concurrency: 4,
	}
}

// Judge runs submissions through a sandbox executor. Calls are admitted by a
// token bucket and at most Concurrency executions run at once.
type Judge struct {
	exec    sandbox.Executor
	cfg     Config
	limiter *rate.Limiter
	slots   chan struct{}
}

func New(exec sandbox.Executor, cfg Config) *Judge {
	def := DefaultConfig()
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = def.HardTimeout
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = def.TimeBudget
	}
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Judge{
		exec:    exec,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		slots:   make(chan struct{}, cfg.Concurrency),
	}
}

func (j *Judge) Submit(ctx context.Context, problem model.Problem, code string) Result {
	if len(problem.TestCases) == 0 {
		log.Error().Str("problem", problem.Name).Msg("problem has no test cases")
		return failure(StatusExecutionError, MessageNoTestCases)
	}
	if !j.limiter.Allow() {
		log.Warn().Str("problem", problem.Name).Msg("judge rate limited")
		return failure(StatusRateLimited, MessageRateLimited)
	}

	h, err := buildHarness(problem, code)
	if err != nil {
		log.Error().Err(err).Str("problem", problem.Name).Msg("build harness")
		return failure(StatusExecutionError, "Execution Error: "+err.Error())
	}
	stdin, err := buildStdin(problem.TestCases)
	if err != nil {
		log.Error().Err(err).Str("problem", problem.Name).Msg("encode test cases")
		return failure(StatusExecutionError, "Execution Error: "+err.Error())
	}

	select {
	case j.slots <- struct{}{}:
	case <-ctx.Done():
		return failure(StatusExecutionError, "Execution Error: "+ctx.Err().Error())
	}
	start := time.Now()
	out, err := j.exec.Execute(ctx, h.Source, stdin, j.cfg.HardTimeout)
	<-j.slots
	log.Debug().Str("problem", problem.Name).Dur("dur", time.Since(start)).Msg("sandbox run")

	if errors.Is(err, sandbox.ErrTimeout) {
		return failure(StatusTimeLimitExceeded, MessageTimeLimitExceeded)
	}
	if err != nil {
		log.Error().Err(err).Str("problem", problem.Name).Msg("sandbox execute")
		return failure(StatusExecutionError, "Execution Error: "+err.Error())
	}
	if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
		return failure(StatusExecutionError, stderr)
	}

	r, ok := parseRun(out.Stdout, h)
	if !ok || len(r.results) != len(problem.TestCases) {
		log.Warn().Str("problem", problem.Name).Int("results", len(r.results)).Int("cases", len(problem.TestCases)).Msg("malformed sandbox output")
		return failure(StatusExecutionError, MessageMalformedOutput)
	}

	budget := j.cfg.TimeBudget
	if problem.TimeBudgetMillis > 0 {
		budget = time.Duration(problem.TimeBudgetMillis) * time.Millisecond
	}
	if time.Duration(r.elapsed)*time.Millisecond > budget {
		res := failure(StatusTimeLimitExceeded, MessageTimeLimitExceeded)
		res.ElapsedMillis = r.elapsed
		return res
	}

	res := Result{
		ElapsedMillis: r.elapsed,
		TotalCount:    len(problem.TestCases),
		Console:       strings.Join(r.console, "\n"),
	}
	for i, tc := range problem.TestCases {
		if outputsMatch(r.results[i], tc.Output, problem.AnyOrder) {
			res.PassedCount++
			continue
		}
		if res.FirstFailure == nil {
			res.FirstFailure = &FailureDetail{Input: tc.Input, Expected: tc.Output, Actual: r.results[i]}
		}
	}
	res.Accepted = res.PassedCount == res.TotalCount
	res.Status = StatusWrongAnswer
	if res.Accepted {
		res.Status = StatusAccepted
	}
	return res
}

func failure(status Status, message string) Result {
	return Result{Status: status, Message: message}
}

// Summary is the one-line form shown to the submitter.
func (r Result) Summary() string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("%s: %d/%d test cases passed in %dms", r.Status, r.PassedCount, r.TotalCount, r.ElapsedMillis)
}
