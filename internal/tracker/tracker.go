// Package tracker assembles the store, the view compositor, the counters and
// the undo buffer into the single object the CLI talks to.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/basket/tasktrack/internal/bus"
	"github.com/basket/tasktrack/internal/live"
	"github.com/basket/tasktrack/internal/otel"
	"github.com/basket/tasktrack/internal/stats"
	"github.com/basket/tasktrack/internal/store"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/undo"
	"github.com/basket/tasktrack/internal/view"
	"github.com/basket/tasktrack/internal/worker"
)

type Config struct {
	Backend store.Backend
	// Workers is the number of pool lanes; worker.DefaultWorkers when zero.
	Workers int
	Filter  task.Filter
	Search  string
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *otel.Metrics
	Now     func() time.Time
	// Seed is inserted when the collection is empty at startup.
	Seed []task.Task
}

type Tracker struct {
	logger *slog.Logger

	bus   *bus.Bus
	pool  *worker.Pool
	store *store.Store
	view  *view.Compositor
	stats *stats.Aggregator
	undo  *undo.Buffer

	categories *store.Query[[]string]
}

// New wires the components together. When cfg.Seed is set it waits for the
// seeding insert, so the first emissions already include the sample data.
func New(ctx context.Context, cfg Config) (*Tracker, error) {
	if cfg.Backend == nil {
		return nil, errors.New("tracker: backend is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = worker.DefaultWorkers
	}

	tr := &Tracker{
		logger: logger,
		bus:    bus.New(),
		pool:   worker.NewPool(worker.Config{Workers: workers, Logger: logger}),
	}
	s, err := store.New(store.Config{
		Backend: cfg.Backend,
		Bus:     tr.bus,
		Pool:    tr.pool,
		Logger:  logger,
		Tracer:  cfg.Tracer,
		Metrics: cfg.Metrics,
		Now:     now,
	})
	if err != nil {
		tr.pool.Close()
		return nil, err
	}
	tr.store = s

	if len(cfg.Seed) > 0 {
		n, err := s.SeedIfEmpty(ctx, cfg.Seed).Wait(ctx)
		if err != nil {
			tr.shutdown()
			return nil, fmt.Errorf("seed sample data: %w", err)
		}
		if n > 0 {
			logger.Info("sample data seeded", "count", n)
		}
	}

	tr.view, err = view.New(view.Config{
		Source:  s,
		Filter:  cfg.Filter,
		Search:  cfg.Search,
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		tr.shutdown()
		return nil, err
	}
	tr.stats, err = stats.New(stats.Config{Source: s, Now: now})
	if err != nil {
		tr.shutdown()
		return nil, err
	}
	tr.undo = undo.New(s, logger)
	tr.categories = s.Categories()
	logger.Info("tracker started", "workers", workers, "filter", cfg.Filter.String())
	return tr, nil
}

// Close stops every live value and drains the worker pool. Mutations already
// submitted finish before Close returns.
func (tr *Tracker) Close() {
	tr.shutdown()
	tr.logger.Info("tracker stopped")
}

func (tr *Tracker) shutdown() {
	if tr.view != nil {
		tr.view.Close()
	}
	if tr.stats != nil {
		tr.stats.Close()
	}
	if tr.categories != nil {
		tr.categories.Close()
	}
	tr.store.Close()
	tr.pool.Close()
}

// Store exposes the underlying store for one-shot reads such as export.
func (tr *Tracker) Store() *store.Store {
	return tr.store
}

func (tr *Tracker) VisibleTasks() *live.Value[[]task.Task] {
	return tr.view.Visible()
}

func (tr *Tracker) Filter() *live.Value[task.Filter] {
	return tr.view.Filter()
}

func (tr *Tracker) SetFilter(f task.Filter) error {
	return tr.view.SetFilter(f)
}

func (tr *Tracker) SearchQuery() *live.Value[string] {
	return tr.view.Search()
}

// SetSearchQuery replaces the search text. Only the result of the latest
// request is ever shown.
func (tr *Tracker) SetSearchQuery(q string) error {
	return tr.view.SetSearch(q)
}

// State is the filter and search as last applied to the visible list.
func (tr *Tracker) State() view.FilterState {
	return tr.view.State()
}

func (tr *Tracker) Categories() *live.Value[[]string] {
	return tr.categories.Value
}

func (tr *Tracker) ActiveCount() *live.Value[int] {
	return tr.stats.Active()
}

func (tr *Tracker) CompletedCount() *live.Value[int] {
	return tr.stats.Completed()
}

func (tr *Tracker) OverdueCount() *live.Value[int] {
	return tr.stats.Overdue()
}

// RefreshOverdue re-evaluates OverdueCount at the current time.
func (tr *Tracker) RefreshOverdue() {
	tr.stats.Refresh()
}

func (tr *Tracker) OverdueAt(ctx context.Context, now time.Time) *worker.Future[int] {
	return tr.stats.OverdueAt(ctx, now)
}

// Counts is the latest reading of the three counters.
func (tr *Tracker) Counts() stats.Counts {
	return tr.stats.Current()
}

func (tr *Tracker) Insert(ctx context.Context, t task.Task) *worker.Future[int64] {
	return tr.store.Insert(ctx, t)
}

func (tr *Tracker) InsertAll(ctx context.Context, tasks []task.Task) *worker.Future[[]int64] {
	return tr.store.InsertAll(ctx, tasks)
}

func (tr *Tracker) Update(ctx context.Context, t task.Task) *worker.Future[int64] {
	return tr.store.Update(ctx, t)
}

func (tr *Tracker) ToggleComplete(ctx context.Context, t task.Task) *worker.Future[int64] {
	return tr.store.ToggleComplete(ctx, t)
}

// Delete deletes t and, once a row was actually removed, keeps t as the
// snapshot Undo restores. Deleting a missing task leaves the undo slot alone.
func (tr *Tracker) Delete(ctx context.Context, t task.Task) *worker.Future[int64] {
	return worker.Map(tr.store.Delete(ctx, t), func(rows int64, err error) (int64, error) {
		if err == nil && rows > 0 {
			tr.undo.RecordDeletion(t)
		}
		return rows, err
	})
}

// DeleteByID reads the task first so the deletion can be undone. A missing id
// resolves to zero rows, like Delete.
func (tr *Tracker) DeleteByID(ctx context.Context, id int64) *worker.Future[int64] {
	return worker.Chain(tr.store.Lookup(ctx, id), func(t task.Task) *worker.Future[int64] {
		if !t.Persisted() {
			return worker.Resolved[int64](0, nil)
		}
		return tr.Delete(ctx, t)
	})
}

// DeleteAll empties the collection. It is not recorded for undo.
func (tr *Tracker) DeleteAll(ctx context.Context) *worker.Future[int64] {
	return tr.store.DeleteAll(ctx)
}

// Get reads one task. It fails with task.ErrNotFound for a missing id.
func (tr *Tracker) Get(ctx context.Context, id int64) *worker.Future[task.Task] {
	return tr.store.Get(ctx, id)
}

// Undo reinserts the most recently deleted task under its original id. The
// future resolves to false when there was nothing to undo.
func (tr *Tracker) Undo(ctx context.Context) *worker.Future[bool] {
	return tr.undo.Undo(ctx)
}

// LastDeleted returns the task Undo would restore.
func (tr *Tracker) LastDeleted() (task.Task, bool) {
	return tr.undo.Peek()
}

func (tr *Tracker) CanUndo() bool {
	return tr.undo.CanUndo()
}

// UndoAvailable tracks CanUndo.
func (tr *Tracker) UndoAvailable() *live.Value[bool] {
	return tr.undo.Available()
}
