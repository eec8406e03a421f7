package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/audit"
	"github.com/basket/tasktrack/internal/config"
	otelPkg "github.com/basket/tasktrack/internal/otel"
	"github.com/basket/tasktrack/internal/persistence"
	"github.com/basket/tasktrack/internal/shared"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/telemetry"
	"github.com/basket/tasktrack/internal/tracker"
)

type globalOptions struct {
	home    string
	verbose bool
	noColor bool
}

func (o *globalOptions) homeDir() string {
	if o.home != "" {
		return o.home
	}
	return config.HomeDir()
}

func (o *globalOptions) loadConfig() (config.Config, error) {
	return config.LoadFrom(o.homeDir())
}

// app is everything a command needs, opened in dependency order and closed in
// reverse.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	level   *slog.LevelVar
	tracker *tracker.Tracker
	db      *persistence.SQLiteStore
	style   styles

	closers []func()
}

type appOptions struct {
	// filter overrides default_filter when filterSet is true.
	filter    task.Filter
	filterSet bool
	search    string
}

func openApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions, ao appOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg, level: new(slog.LevelVar)}
	a.style = newStyles(cmd.OutOrStdout(), opts.noColor)
	a.level.Set(telemetry.ParseLevel(cfg.LogLevel))

	logger, logCloser, err := telemetry.NewLogger(cfg.HomeDir, a.level, !opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, func() { _ = logCloser.Close() })

	provider, err := otelPkg.Init(ctx, otelPkg.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init otel: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	})
	metrics, err := otelPkg.NewMetrics(provider.Meter)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	db, err := persistence.Open(cfg.ResolvedDBPath(), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })

	var seed []task.Task
	if cfg.SeedSampleData {
		seed = persistence.SampleTasks(time.Now())
	}
	filter := cfg.Filter()
	if ao.filterSet {
		filter = ao.filter
	}
	tr, err := tracker.New(ctx, tracker.Config{
		Backend: db,
		Workers: cfg.WorkerCount,
		Filter:  filter,
		Search:  ao.search,
		Logger:  logger,
		Tracer:  provider.Tracer,
		Metrics: metrics,
		Seed:    seed,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = tr
	a.closers = append(a.closers, tr.Close)

	journal, err := audit.Open(cfg.HomeDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}
	journal.Follow(tr.Store().Bus())
	a.closers = append(a.closers, func() { _ = journal.Close() })

	logger.Info("startup phase", "phase", "tracker_ready", "config_fingerprint", cfg.Fingerprint(), "db", db.Path())
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// withApp adapts a command body that needs an open app into a cobra RunE.
func withApp(opts *globalOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, _ := shared.EnsureOpID(cmd.Context())
		a, err := openApp(ctx, cmd, opts, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		a.logger.DebugContext(ctx, "command started", "command", cmd.CommandPath())
		return fn(ctx, cmd, a, args)
	}
}

func stdout(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
