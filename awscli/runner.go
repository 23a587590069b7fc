package awscli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one invocation when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Runner executes a command and returns its stdout. Implementations
// classify failures into the package's error taxonomy.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) ([]byte, error) {
	return f(ctx, cmd)
}

// ExecRunner runs commands as real subprocesses. The child inherits the
// parent environment so AWS_* variables and SSO caches keep working.
type ExecRunner struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewExecRunner builds a runner with the given per-invocation timeout.
// A zero timeout falls back to DefaultTimeout.
func NewExecRunner(timeout time.Duration, logger zerolog.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{timeout: timeout, logger: logger}
}

// Run executes cmd synchronously, waits for exit and returns captured
// stdout. The full command line is logged before the process starts so
// every external call is visible in the log.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := cmd.Argv()
	r.logger.Debug().
		Strs("argv", argv).
		Dur("timeout", r.timeout).
		Msg("running external tool")

	proc := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	start := time.Now()
	err := proc.Run()
	if err != nil {
		return nil, r.classify(ctx, cmd, err, stderr.String())
	}

	r.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("stdout_bytes", stdout.Len()).
		Msg("external tool finished")
	return stdout.Bytes(), nil
}

// classify maps a raw exec failure onto the package error taxonomy.
// Deadline wins over exit status: a killed process also reports a
// non-zero exit, and "timed out" is the truth the operator needs.
func (r *ExecRunner) classify(ctx context.Context, cmd Command, err error, stderrText string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s: %s", ErrTimedOut, r.timeout, cmd.String())
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrToolNotFound, cmd.Tool)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Cmd:    cmd.String(),
			Code:   exitErr.ExitCode(),
			Stderr: strings.TrimSpace(stderrText),
		}
	}
	return fmt.Errorf("failed to run %s: %w", cmd.Tool, err)
}

// Gate wraps a Runner so at most one invocation is in flight. A second
// call while one is running fails fast with ErrBusy instead of queueing.
type Gate struct {
	runner Runner
	busy   atomic.Bool
}

// NewGate wraps runner with single-flight admission.
func NewGate(runner Runner) *Gate {
	return &Gate{runner: runner}
}

// Run executes cmd if the gate is free, otherwise returns ErrBusy.
func (g *Gate) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s rejected", ErrBusy, cmd.String())
	}
	defer g.busy.Store(false)
	return g.runner.Run(ctx, cmd)
}

// Busy reports whether an invocation is currently in flight. The answer
// can be stale by the time the caller acts on it; Run is the gate.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
