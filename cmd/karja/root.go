package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yairfalse/karja/awscli"
	"github.com/yairfalse/karja/config"
	"github.com/yairfalse/karja/executor"
	"github.com/yairfalse/karja/guard"
	"github.com/yairfalse/karja/inventory"
	"github.com/yairfalse/karja/journal"
	"github.com/yairfalse/karja/profiles"
	"github.com/yairfalse/karja/telemetry"
	"github.com/yairfalse/karja/tui"
)

var (
	version = "0.1.0"

	flagConfig    string
	flagProfile   string
	flagRegion    string
	flagTool      string
	flagDataDir   string
	flagPolicyDir string
	flagTimeout   time.Duration
	flagDebug     bool

	rootCmd = &cobra.Command{
		Use:   "karja",
		Short: "EC2 Fleet Companion",
		Long: `Karja - EC2 Fleet Companion

Karja drives the AWS CLI for you: browse your EC2 fleet in a table,
mark instances and start, stop or terminate them in bulk. Policies
guard the blessed ones and a journal remembers every action.

Run karja with no arguments to open the interactive table.`,
		Version: version,
		RunE:    runTUI,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Karja {{.Version}} - EC2 Fleet Companion
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ~/.config/karja/karja.yaml)")
	pf.StringVarP(&flagProfile, "profile", "p", "", "AWS profile to pass to the tool")
	pf.StringVarP(&flagRegion, "region", "r", "", "AWS region to pass to the tool")
	pf.StringVar(&flagTool, "tool", "", "External tool binary (default aws)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory for the action journal")
	pf.StringVar(&flagPolicyDir, "policy-dir", "", "Directory with additional rego policies")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Timeout per tool invocation")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so log lines go to a file instead.
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "karja.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 - path comes from local config
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := newLoggerTo(logFile)

	g, err := buildGuard(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	svc := buildService(cfg, logger)
	store := profiles.NewStore(logger)
	warnUnknownProfile(store, cfg.Profile, logger)

	if !cfg.NoColor {
		tui.ApplyTheme()
	}
	app := tui.NewApp(svc, g, j, store, executor.Options{}, logger)
	return app.Run()
}

// loadConfig merges the config file with command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagProfile != "" {
		cfg.Profile = flagProfile
	}
	if flagRegion != "" {
		cfg.Region = flagRegion
	}
	if flagTool != "" {
		cfg.Tool = flagTool
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagPolicyDir != "" {
		cfg.PolicyDir = flagPolicyDir
	}
	if flagTimeout > 0 {
		cfg.Timeout = flagTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() zerolog.Logger {
	return newLoggerTo(zerolog.ConsoleWriter{Out: os.Stderr})
}

func newLoggerTo(w io.Writer) zerolog.Logger {
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return telemetry.NewLoggerTo("karja", w).Logger
}

// warnUnknownProfile flags a likely typo early. The profile is still
// passed through, since the external tool is the authority on what
// exists.
func warnUnknownProfile(store *profiles.Store, name string, logger zerolog.Logger) {
	if name == "" {
		return
	}
	if known, err := store.Exists(name); err == nil && !known {
		logger.Warn().Str("profile", name).Msg("profile not found in shared config files")
	}
}

// buildService wires the runner stack: exec runner behind the
// single-flight gate, then the inventory service on top.
func buildService(cfg *config.Config, logger zerolog.Logger) *inventory.Service {
	runner := awscli.NewExecRunner(cfg.Timeout, logger)
	svc := inventory.NewService(awscli.NewGate(runner), cfg.Tool, logger)
	svc.SetProfile(cfg.Profile)
	svc.SetRegion(cfg.Region)
	return svc
}

func buildGuard(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*guard.Guard, error) {
	g := guard.NewGuard(logger)
	if err := g.LoadDefaults(ctx); err != nil {
		return nil, err
	}
	if cfg.PolicyDir != "" {
		if err := g.LoadDir(ctx, cfg.PolicyDir); err != nil {
			return nil, err
		}
	}
	return g, nil
}
