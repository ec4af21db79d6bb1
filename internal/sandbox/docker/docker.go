package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/nimnim111/LeetDuel-Online/internal/sandbox"
)

const DefaultCommand = "docker run -i --rm --network=none --memory=100m --cpu-shares=50 code-runner python3 -c"

// Executor runs the source as the final argument of a configured command line.
// Stdin is piped to the child and the process is killed when the timeout elapses.
type Executor struct {
	argv []string
}

func New(command string) (*Executor, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse sandbox command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty sandbox command")
	}
	return &Executor{argv: argv}, nil
}

func (e *Executor) Execute(ctx context.Context, source string, stdin string, timeout time.Duration) (sandbox.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, e.argv[1:]...), source)
	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	out := sandbox.Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		return out, sandbox.ErrTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, nil
		}
		return out, err
	}
	out.ExitOK = true
	return out, nil
}
