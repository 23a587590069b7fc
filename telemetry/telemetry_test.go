package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo("karja-test", &buf)

	logger.Info().Str("instance_id", "i-1").Msg("refreshed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "karja-test" {
		t.Errorf("service = %v, want karja-test", entry["service"])
	}
	if entry["instance_id"] != "i-1" {
		t.Errorf("instance_id = %v, want i-1", entry["instance_id"])
	}
	if entry["message"] != "refreshed" {
		t.Errorf("message = %v, want refreshed", entry["message"])
	}
}

func TestLogger_NoTraceWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo("karja-test", &buf)

	// No active span in the context, so the hook must not invent ids.
	logger.WithContext(context.Background()).Info().Msg("plain")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log carries trace_id without a span: %s", buf.String())
	}
}

func TestInitOTEL_PrometheusOnly(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	ctx := context.Background()
	shutdown, err := InitOTEL(ctx, Config{
		ServiceName:    "karja-test",
		ServiceVersion: "test",
		Environment:    "test",
	})
	if err != nil {
		t.Fatalf("InitOTEL() error = %v", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			t.Errorf("shutdown error = %v", err)
		}
	}()

	if PrometheusRegistry == nil {
		t.Fatal("PrometheusRegistry not created")
	}
	if RefreshDuration == nil || InstancesObserved == nil || InstancesByState == nil || ActionsTotal == nil {
		t.Fatal("metric instruments not initialized")
	}

	RecordRefresh(ctx, 12, 0.8)
	RecordFleetStates(ctx, map[string]int{"running": 10, "stopped": 2})
	RecordAction(ctx, "stop", "success")
	RecordJournalWrite(ctx)
	RecordRefreshFailure(ctx)

	families, err := PrometheusRegistry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if strings.Contains(mf.GetName(), "karja_actions_total") {
			found = true
		}
	}
	if !found {
		names := make([]string, 0, len(families))
		for _, mf := range families {
			names = append(names, mf.GetName())
		}
		t.Errorf("karja_actions_total not exported, got %v", names)
	}
}

func TestRecordHelpers_SafeBeforeInit(t *testing.T) {
	// One-shot commands never call InitOTEL; recording must be a no-op,
	// not a panic.
	RefreshDuration = nil
	InstancesObserved = nil
	InstancesByState = nil
	ActionsTotal = nil
	RefreshFailures = nil
	JournalWrites = nil

	ctx := context.Background()
	RecordRefresh(ctx, 3, 0.1)
	RecordFleetStates(ctx, map[string]int{"running": 1})
	RecordRefreshFailure(ctx)
	RecordAction(ctx, "start", "failed")
	RecordJournalWrite(ctx)
}
