// Package store turns a task backend into change-notifying live queries and
// asynchronous mutations.
//
// Every mutation runs on the worker pool. A change event is published on the
// bus only after the backend call returned successfully and affected at least
// one row; live queries re-run on those events, so they never observe a write
// that did not commit.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/basket/tasktrack/internal/bus"
	"github.com/basket/tasktrack/internal/otel"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/worker"
)

// Backend is the persistent collaborator. persistence.SQLiteStore and
// persistence.MemoryStore implement it.
type Backend interface {
	All(ctx context.Context) ([]task.Task, error)
	Active(ctx context.Context) ([]task.Task, error)
	Completed(ctx context.Context) ([]task.Task, error)
	ByCategory(ctx context.Context, category string) ([]task.Task, error)
	Search(ctx context.Context, text string) ([]task.Task, error)
	ByID(ctx context.Context, id int64) (task.Task, error)
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	ActiveCount(ctx context.Context) (int, error)
	CompletedCount(ctx context.Context) (int, error)
	OverdueCount(ctx context.Context, now time.Time) (int, error)

	Insert(ctx context.Context, t task.Task) (int64, error)
	InsertAll(ctx context.Context, tasks []task.Task) ([]int64, error)
	Update(ctx context.Context, t task.Task) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type Config struct {
	Backend Backend
	// Bus carries change events. A private bus is created when nil.
	Bus *bus.Bus
	// Pool runs mutations. A private pool with worker.DefaultWorkers lanes is
	// created (and closed by Close) when nil.
	Pool    *worker.Pool
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *otel.Metrics
	// Now stamps CreatedAt on inserts that leave it zero.
	Now func() time.Time
}

type Store struct {
	backend Backend
	bus     *bus.Bus
	pool    *worker.Pool
	ownPool bool
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *otel.Metrics
	now     func() time.Time

	mu      sync.Mutex
	closed  bool
	queries map[closer]struct{}
}

type closer interface {
	Close()
}

func New(cfg Config) (*Store, error) {
	if cfg.Backend == nil {
		return nil, errors.New("store: backend is required")
	}
	s := &Store{
		backend: cfg.Backend,
		bus:     cfg.Bus,
		pool:    cfg.Pool,
		logger:  cfg.Logger,
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		queries: make(map[closer]struct{}),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.bus == nil {
		s.bus = bus.New()
	}
	if s.pool == nil {
		s.pool = worker.NewPool(worker.Config{Logger: s.logger})
		s.ownPool = true
	}
	if s.tracer == nil {
		s.tracer = otel.NoopTracer()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Bus returns the bus change events are published on.
func (s *Store) Bus() *bus.Bus {
	return s.bus
}

// Pool returns the worker pool mutations run on.
func (s *Store) Pool() *worker.Pool {
	return s.pool
}

// Close stops every live query still open and, when the store created its own
// pool, drains and stops it.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	open := make([]closer, 0, len(s.queries))
	for q := range s.queries {
		open = append(open, q)
	}
	s.queries = nil
	s.mu.Unlock()

	for _, q := range open {
		q.Close()
	}
	if s.ownPool {
		s.pool.Close()
	}
}

func (s *Store) track(q closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queries[q] = struct{}{}
	return true
}

func (s *Store) untrack(q closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queries != nil {
		delete(s.queries, q)
	}
}
