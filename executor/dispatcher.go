// Package executor dispatches bulk instance actions: policy check,
// confirmation, one batched tool invocation, then per-instance result
// accounting and journaling. Inspect is read-only and goes straight
// through the inventory service instead.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/karja/guard"
	"github.com/yairfalse/karja/inventory"
	"github.com/yairfalse/karja/journal"
	"github.com/yairfalse/karja/telemetry"
	"github.com/yairfalse/karja/types"
)

// Dispatcher runs mutating actions against batches of instances.
type Dispatcher struct {
	service   *inventory.Service
	guard     *guard.Guard
	journal   *journal.Journal
	confirmer Confirmer
	options   Options
	logger    zerolog.Logger
}

// NewDispatcher wires a dispatcher. guard and journal may be nil: no
// guard means every action is allowed, no journal means no audit trail.
func NewDispatcher(
	service *inventory.Service,
	g *guard.Guard,
	j *journal.Journal,
	confirmer Confirmer,
	options Options,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		service:   service,
		guard:     g,
		journal:   j,
		confirmer: confirmer,
		options:   options,
		logger:    logger,
	}
}

// Dispatch runs one action against the given instances. The tool is
// invoked once for all eligible ids; the error return is reserved for
// dispatch-level problems (bad action, confirmation machinery), while
// per-instance failures land in the result.
func (d *Dispatcher) Dispatch(ctx context.Context, action types.Action, instances []types.Instance) (*Result, error) {
	if !action.Mutating() {
		return nil, fmt.Errorf("action %s is not dispatchable", action)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%s needs at least one target instance", action)
	}

	result := &Result{
		Action:       action,
		StartTime:    time.Now(),
		TotalTargets: len(instances),
		Results:      make([]InstanceResult, 0, len(instances)),
	}

	eligible, err := d.applyGuard(ctx, action, instances, result)
	if err != nil {
		return nil, err
	}

	approved, err := d.confirmIfNeeded(ctx, action, eligible)
	if err != nil {
		return nil, err
	}
	if !approved {
		for _, inst := range eligible {
			result.Results = append(result.Results, InstanceResult{
				InstanceID: inst.InstanceID,
				Action:     action,
				Status:     StatusSkipped,
				SkipReason: "user declined confirmation",
			})
		}
	} else {
		d.execute(ctx, action, eligible, result)
	}

	d.finish(ctx, result)
	return result, nil
}

// applyGuard checks every target against policy. Denied instances go
// straight into the result as skipped; instances needing approval stay
// eligible but force a confirmation below.
func (d *Dispatcher) applyGuard(ctx context.Context, action types.Action, instances []types.Instance, result *Result) ([]guardedInstance, error) {
	span := trace.SpanFromContext(ctx)
	eligible := make([]guardedInstance, 0, len(instances))

	for _, inst := range instances {
		if d.guard == nil {
			eligible = append(eligible, guardedInstance{Instance: inst})
			continue
		}

		verdict, err := d.guard.Check(ctx, action, inst)
		if err != nil {
			return nil, fmt.Errorf("policy check failed: %w", err)
		}
		if verdict.Denied() {
			telemetry.RecordGuardDenialEvent(span, string(action), inst.InstanceID, verdict.Reason)
			result.Results = append(result.Results, InstanceResult{
				InstanceID: inst.InstanceID,
				Action:     action,
				Status:     StatusSkipped,
				SkipReason: fmt.Sprintf("blocked by policy: %s", verdict.Reason),
			})
			continue
		}
		eligible = append(eligible, guardedInstance{Instance: inst, Verdict: verdict})
	}
	return eligible, nil
}

type guardedInstance struct {
	Instance types.Instance
	Verdict  guard.Verdict
}

// confirmIfNeeded asks the operator once per batch. Destructive
// actions always ask; policy can escalate any action to asking.
func (d *Dispatcher) confirmIfNeeded(ctx context.Context, action types.Action, eligible []guardedInstance) (bool, error) {
	if len(eligible) == 0 {
		return true, nil
	}

	needed := action.Destructive()
	var reasons []string
	for _, g := range eligible {
		if g.Verdict.NeedsApproval() {
			needed = true
			reasons = append(reasons, fmt.Sprintf("%s: %s", g.Instance.InstanceID, g.Verdict.Reason))
		}
	}
	if !needed || d.options.SkipConfirmation {
		return true, nil
	}
	if d.confirmer == nil {
		return false, fmt.Errorf("confirmation required but no confirmer configured")
	}

	ids := make([]string, len(eligible))
	for i, g := range eligible {
		ids[i] = g.Instance.InstanceID
	}
	return d.confirmer.Confirm(ctx, ConfirmationRequest{
		Action:    action,
		Instances: ids,
		Reasons:   reasons,
		DefaultNo: action.Destructive(),
	})
}

// execute makes the single batched tool call and matches the reported
// state changes back to the ids that were asked for.
func (d *Dispatcher) execute(ctx context.Context, action types.Action, eligible []guardedInstance, result *Result) {
	if len(eligible) == 0 {
		return
	}

	ids := make([]string, len(eligible))
	for i, g := range eligible {
		ids[i] = g.Instance.InstanceID
	}

	if d.options.DryRun {
		d.logger.Info().
			Str("action", string(action)).
			Strs("instance_ids", ids).
			Msg("dry run, not invoking tool")
		for _, id := range ids {
			result.Results = append(result.Results, InstanceResult{
				InstanceID: id,
				Action:     action,
				Status:     StatusSkipped,
				SkipReason: "dry run",
			})
		}
		return
	}

	changes, err := d.service.ChangeState(ctx, action, ids)
	if err != nil {
		// The whole invocation failed, so no instance got anywhere.
		for _, id := range ids {
			result.Results = append(result.Results, InstanceResult{
				InstanceID: id,
				Action:     action,
				Status:     StatusFailed,
				Error:      err.Error(),
			})
		}
		return
	}

	byID := make(map[string]types.StateChange, len(changes))
	for _, change := range changes {
		byID[change.InstanceID] = change
	}

	for _, id := range ids {
		change, ok := byID[id]
		if !ok {
			// The API acted on the batch but never mentioned this id.
			result.Results = append(result.Results, InstanceResult{
				InstanceID: id,
				Action:     action,
				Status:     StatusFailed,
				Error:      "no state change returned",
			})
			continue
		}
		result.Results = append(result.Results, InstanceResult{
			InstanceID:    id,
			Action:        action,
			Status:        StatusSuccess,
			PreviousState: change.PreviousState,
			CurrentState:  change.CurrentState,
		})
	}
}

// finish counts outcomes, journals them and emits telemetry.
func (d *Dispatcher) finish(ctx context.Context, result *Result) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	span := trace.SpanFromContext(ctx)
	for _, r := range result.Results {
		switch r.Status {
		case StatusSuccess:
			result.SucceededCount++
		case StatusFailed:
			result.FailedCount++
		case StatusSkipped:
			result.SkippedCount++
		}
		telemetry.RecordActionExecutedEvent(span, string(r.Action), r.InstanceID, string(r.Status), r.Error)
	}
	result.PartialFailure = result.FailedCount > 0 && result.FailedCount < result.TotalTargets

	d.journalResult(ctx, result)
	telemetry.RecordAction(ctx, string(result.Action), result.OverallStatus())

	d.logger.Info().
		Str("action", string(result.Action)).
		Int("targets", result.TotalTargets).
		Int("succeeded", result.SucceededCount).
		Int("failed", result.FailedCount).
		Int("skipped", result.SkippedCount).
		Dur("duration", result.Duration).
		Msg("action dispatched")
}

// journalResult persists the outcome. Journal trouble is warned about,
// never allowed to fail an action that already ran.
func (d *Dispatcher) journalResult(ctx context.Context, result *Result) {
	if d.journal == nil {
		return
	}

	profile := d.service.Profile()
	region := d.service.Region()
	records := make([]journal.Record, 0, len(result.Results))
	for _, r := range result.Results {
		record := journal.Record{
			Action:     r.Action,
			InstanceID: r.InstanceID,
			Profile:    profile,
			Region:     region,
			Status:     string(r.Status),
			Error:      r.Error,
		}
		switch r.Status {
		case StatusSuccess:
			record.Detail = fmt.Sprintf("%s -> %s", r.PreviousState, r.CurrentState)
		case StatusSkipped:
			record.Detail = r.SkipReason
		}
		records = append(records, record)
	}

	if _, err := d.journal.AppendBatch(records); err != nil {
		d.logger.Warn().Err(err).Msg("failed to journal action result")
		return
	}
	telemetry.RecordJournalWrite(ctx)
}
