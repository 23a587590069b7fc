package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordRefreshCompletedEvent emits a structured span event for one
// inventory refresh
func RecordRefreshCompletedEvent(
	span trace.Span,
	profile string,
	region string,
	instancesObserved int64,
	durationSeconds float64,
) {
	if span == nil {
		return
	}

	span.AddEvent("inventory.refresh.completed", trace.WithAttributes(
		attribute.String("event.type", "inventory.refresh.completed"),
		attribute.String("profile", profile),
		attribute.String("region", region),
		attribute.Int64("instances.observed", instancesObserved),
		attribute.Float64("duration.seconds", durationSeconds),
	))
}

// RecordActionExecutedEvent emits a structured span event for one
// per-instance action outcome
func RecordActionExecutedEvent(
	span trace.Span,
	action string,
	instanceID string,
	status string,
	errorMsg string,
) {
	if span == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("event.type", "instance.action.executed"),
		attribute.String("action.type", action),
		attribute.String("instance.id", instanceID),
		attribute.String("status", status),
	}
	if errorMsg != "" {
		attrs = append(attrs, attribute.String("error", errorMsg))
	}

	span.AddEvent("instance.action.executed", trace.WithAttributes(attrs...))
}

// RecordGuardDenialEvent emits a structured span event when policy
// blocks an action
func RecordGuardDenialEvent(
	span trace.Span,
	action string,
	instanceID string,
	reason string,
) {
	if span == nil {
		return
	}

	span.AddEvent("instance.action.denied", trace.WithAttributes(
		attribute.String("event.type", "instance.action.denied"),
		attribute.String("action.type", action),
		attribute.String("instance.id", instanceID),
		attribute.String("reason", reason),
	))
}
