package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instruments, created by InitOTEL. Nil until then, so the
// Record helpers below guard before touching them; the TUI and one-shot
// commands never call InitOTEL and must stay metric-free.
var (
	RefreshDuration   metric.Float64Histogram
	InstancesObserved metric.Int64Gauge
	InstancesByState  metric.Int64Gauge
	ActionsTotal      metric.Int64Counter
	RefreshFailures   metric.Int64Counter
	JournalWrites     metric.Int64Counter
)

// lifecycleStates is the fixed set of EC2 instance states. Every state
// is written on each refresh so a state that empties reports zero
// instead of holding its stale last value.
var lifecycleStates = []string{
	"pending", "running", "shutting-down", "stopped", "stopping", "terminated",
}

// initMetrics initializes all metric instruments
func initMetrics() error {
	if err := initCounters(); err != nil {
		return err
	}
	return initObservations()
}

// initCounters initializes counter metrics
func initCounters() error {
	var err error

	ActionsTotal, err = Meter.Int64Counter("karja.actions.total",
		metric.WithDescription("Instance actions dispatched, by action and status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create actions counter: %w", err)
	}

	RefreshFailures, err = Meter.Int64Counter("karja.refresh.failures.total",
		metric.WithDescription("Inventory refreshes that failed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh failures counter: %w", err)
	}

	JournalWrites, err = Meter.Int64Counter("karja.journal.writes.total",
		metric.WithDescription("Action journal records written"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create journal writes counter: %w", err)
	}

	return nil
}

// initObservations initializes histogram and gauge metrics
func initObservations() error {
	var err error

	RefreshDuration, err = Meter.Float64Histogram("karja.refresh.duration.seconds",
		metric.WithDescription("Duration of inventory refreshes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh duration histogram: %w", err)
	}

	InstancesObserved, err = Meter.Int64Gauge("karja.instances.observed",
		metric.WithDescription("Instances seen in the latest refresh"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create instances gauge: %w", err)
	}

	InstancesByState, err = Meter.Int64Gauge("karja.instances.by_state",
		metric.WithDescription("Instances per lifecycle state in the latest refresh"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create state gauge: %w", err)
	}

	return nil
}

// RecordRefresh records one completed refresh.
func RecordRefresh(ctx context.Context, count int, seconds float64) {
	if RefreshDuration != nil {
		RefreshDuration.Record(ctx, seconds)
	}
	if InstancesObserved != nil {
		InstancesObserved.Record(ctx, int64(count))
	}
}

// RecordFleetStates records per-state instance counts from one refresh.
func RecordFleetStates(ctx context.Context, counts map[string]int) {
	if InstancesByState == nil {
		return
	}
	for _, state := range lifecycleStates {
		InstancesByState.Record(ctx, int64(counts[state]), metric.WithAttributes(
			attribute.String("state", state),
		))
	}
}

// RecordRefreshFailure records one failed refresh.
func RecordRefreshFailure(ctx context.Context) {
	if RefreshFailures != nil {
		RefreshFailures.Add(ctx, 1)
	}
}

// RecordAction records one dispatched action with its overall status.
func RecordAction(ctx context.Context, action, status string) {
	if ActionsTotal != nil {
		ActionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("status", status),
		))
	}
}

// RecordJournalWrite records one journal append.
func RecordJournalWrite(ctx context.Context) {
	if JournalWrites != nil {
		JournalWrites.Add(ctx, 1)
	}
}
