package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/basket/tasktrack/internal/config"
	"github.com/basket/tasktrack/internal/cron"
	"github.com/basket/tasktrack/internal/live"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/telemetry"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		filter, search string
		count          int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the task list every time it changes",
		Long: `Print the visible task list and its counters, then again after every
change made by any tasktrack process sharing this home. The overdue counter
is refreshed on the overdue_refresh schedule. Edits to config.yaml that
change log_level take effect without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := task.ParseFilter(filter)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a, err := openApp(ctx, cmd, opts, appOptions{filter: f, filterSet: cmd.Flags().Changed("filter"), search: search})
			if err != nil {
				return err
			}
			defer a.Close()
			defer cancel()

			sched, err := cron.NewScheduler(cron.Config{
				Target: a.tracker,
				Expr:   a.cfg.OverdueRefresh,
				Logger: a.logger,
			})
			if err != nil {
				return err
			}
			sched.Start(ctx)
			defer sched.Stop()

			w := config.NewWatcher(a.cfg.HomeDir, a.logger)
			if err := w.Start(ctx); err != nil {
				a.logger.Warn("config watcher disabled", "error", err)
			} else {
				go a.reloadOnChange(w.Events())
			}

			return a.watch(ctx, stdout(cmd), count)
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "initial filter")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search text")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after printing N lists (0 = until interrupted)")
	return cmd
}

// watch prints every visible list and every overdue change until ctx is done
// or limit lists have been printed.
func (a *app) watch(ctx context.Context, w io.Writer, limit int) error {
	ready := func(int) bool { return true }
	for _, counter := range []*live.Value[int]{a.tracker.ActiveCount(), a.tracker.CompletedCount(), a.tracker.OverdueCount()} {
		if _, err := counter.Await(ctx, ready); err != nil {
			return nil
		}
	}

	lists, cancelLists := a.tracker.VisibleTasks().Subscribe()
	defer cancelLists()
	overdue, cancelOverdue := a.tracker.OverdueCount().Subscribe()
	defer cancelOverdue()

	printed := 0
	lastOverdue := -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case tasks, ok := <-lists:
			if !ok {
				return nil
			}
			fmt.Fprintln(w, a.style.render(a.style.header, fmt.Sprintf("-- %s, %s", a.tracker.State(), time.Now().Format("15:04:05"))))
			printTasks(w, a.style, tasks, time.Now())
			fmt.Fprintln(w, a.style.render(a.style.dim, a.tracker.Counts().String()))
			printed++
			if limit > 0 && printed >= limit {
				return nil
			}
		case n, ok := <-overdue:
			if !ok {
				return nil
			}
			if lastOverdue >= 0 && n != lastOverdue {
				fmt.Fprintf(w, "overdue: %d\n", n)
			}
			lastOverdue = n
		}
	}
}

// reloadOnChange applies log_level edits from config.yaml. Other settings
// need a restart.
func (a *app) reloadOnChange(events <-chan config.ReloadEvent) {
	for range events {
		cfg, err := config.LoadFrom(a.cfg.HomeDir)
		if err != nil {
			a.logger.Warn("config reload failed", "error", err)
			continue
		}
		level := telemetry.ParseLevel(cfg.LogLevel)
		if level != a.level.Level() {
			a.level.Set(level)
			a.logger.Info("log level changed", "level", level.String())
		}
		if cfg.Fingerprint() != a.cfg.Fingerprint() {
			a.logger.Info("config changed", "config_fingerprint", cfg.Fingerprint())
		}
	}
}
