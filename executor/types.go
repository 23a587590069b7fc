package executor

import (
	"context"
	"time"

	"github.com/yairfalse/karja/types"
)

// Status tracks the outcome of one instance action
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// InstanceResult is the outcome of one action on one instance.
type InstanceResult struct {
	InstanceID    string       `json:"instance_id"`
	Action        types.Action `json:"action"`
	Status        Status       `json:"status"`
	PreviousState string       `json:"previous_state,omitempty"`
	CurrentState  string       `json:"current_state,omitempty"`
	Error         string       `json:"error,omitempty"`
	SkipReason    string       `json:"skip_reason,omitempty"`
}

// Result aggregates one bulk dispatch. The tool is called once for the
// whole batch; outcomes are tracked per instance because the API can
// act on some ids and not others.
type Result struct {
	Action         types.Action     `json:"action"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	Duration       time.Duration    `json:"duration"`
	TotalTargets   int              `json:"total_targets"`
	SucceededCount int              `json:"succeeded_count"`
	FailedCount    int              `json:"failed_count"`
	SkippedCount   int              `json:"skipped_count"`
	Results        []InstanceResult `json:"results"`
	PartialFailure bool             `json:"partial_failure"`
}

// OverallStatus condenses the result for logs and metrics.
func (r *Result) OverallStatus() string {
	switch {
	case r.FailedCount == 0 && r.SucceededCount > 0:
		return string(StatusSuccess)
	case r.FailedCount > 0 && r.SucceededCount > 0:
		return "partial"
	case r.FailedCount > 0:
		return string(StatusFailed)
	default:
		return string(StatusSkipped)
	}
}

// Options configure dispatch behavior.
type Options struct {
	DryRun           bool `json:"dry_run"`
	SkipConfirmation bool `json:"skip_confirmation"`
}

// ConfirmationRequest asks the operator to approve one batch.
type ConfirmationRequest struct {
	Action    types.Action `json:"action"`
	Instances []string     `json:"instances"`
	Reasons   []string     `json:"reasons,omitempty"`
	DefaultNo bool         `json:"default_no"`
}

// Confirmer handles operator confirmation for dangerous dispatches.
// The TUI shows a modal, the CLI prompts on the terminal.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmationRequest) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, req ConfirmationRequest) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, req ConfirmationRequest) (bool, error) {
	return f(ctx, req)
}
