package awscli

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes callers branch on.
var (
	// ErrToolNotFound means the external binary is not installed or not
	// on PATH. The wrapped message carries the tool name.
	ErrToolNotFound = errors.New("external tool not found")

	// ErrTimedOut means the invocation exceeded its deadline and the
	// process was killed.
	ErrTimedOut = errors.New("external tool timed out")

	// ErrBusy means another invocation is already in flight and the new
	// one was rejected, not queued.
	ErrBusy = errors.New("another command is already running")
)

// ExitError reports a tool that started, ran and exited non-zero. Stderr
// is preserved so the operator sees what the tool itself complained about.
type ExitError struct {
	Cmd    string // rendered command line, for context
	Code   int    // process exit code
	Stderr string // trimmed stderr capture
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Cmd, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Cmd, e.Code, e.Stderr)
}
