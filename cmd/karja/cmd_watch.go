package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/inventory"
	"github.com/yairfalse/karja/telemetry"
	"github.com/yairfalse/karja/types"
)

var (
	watchInterval time.Duration
	watchMetrics  string
	watchOTLP     string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the inventory on an interval and export metrics",
	Long: `Run headless: refresh the inventory on an interval and expose
Prometheus metrics about fleet size, state mix and refresh health.
Useful for dashboards without keeping a terminal open.`,
	Example: `  karja watch                          # Refresh every 5m, metrics on :9090
  karja watch --interval 1m --metrics :9191
  karja watch --otlp-endpoint collector:4317`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "Refresh interval")
	watchCmd.Flags().StringVar(&watchMetrics, "metrics", ":9090", "Metrics server address")
	watchCmd.Flags().StringVar(&watchOTLP, "otlp-endpoint", "", "OTLP collector endpoint (optional)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := cmd.Context()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "karja",
		ServiceVersion: version,
		OTELEndpoint:   watchOTLP,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	svc := buildService(cfg, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", handleHealthz)
	server := &http.Server{
		Addr:              watchMetrics,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var group run.Group

	group.Add(func() error {
		logger.Info().Str("addr", watchMetrics).Msg("starting metrics server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	loopCtx, cancelLoop := context.WithCancel(ctx)
	group.Add(func() error {
		return watchLoop(loopCtx, svc, logger)
	}, func(error) {
		cancelLoop()
	})

	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	logger.Info().
		Dur("interval", watchInterval).
		Str("profile", cfg.Profile).
		Str("region", cfg.Region).
		Msg("karja watch starting")

	err = group.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

func watchLoop(ctx context.Context, svc *inventory.Service, logger zerolog.Logger) error {
	refreshOnce(ctx, svc, logger)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			refreshOnce(ctx, svc, logger)
		case <-ctx.Done():
			return nil
		}
	}
}

func refreshOnce(ctx context.Context, svc *inventory.Service, logger zerolog.Logger) {
	ctx, span := telemetry.Tracer.Start(ctx, "refresh")
	defer span.End()

	start := time.Now()
	instances, err := svc.Refresh(ctx)
	seconds := time.Since(start).Seconds()
	if err != nil {
		telemetry.RecordRefreshFailure(ctx)
		logger.Error().Err(err).Msg("refresh failed")
		return
	}

	byState := types.CountByState(instances)
	telemetry.RecordRefresh(ctx, len(instances), seconds)
	telemetry.RecordFleetStates(ctx, byState)
	telemetry.RecordRefreshCompletedEvent(span, svc.Profile(), svc.Region(), int64(len(instances)), seconds)

	logger.Info().
		Int("instances", len(instances)).
		Float64("duration_seconds", seconds).
		Interface("by_state", byState).
		Msg("inventory refreshed")
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
