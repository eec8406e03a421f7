package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/basket/tasktrack/internal/bus"
	"github.com/basket/tasktrack/internal/live"
	"github.com/basket/tasktrack/internal/otel"
	"github.com/basket/tasktrack/internal/task"
)

// Query is a live read. It runs once when created and again after every
// committed change, and its Value only changes when the result differs from
// the previous one. Events that pile up while a run is in progress collapse
// into a single re-run.
type Query[T any] struct {
	*live.Value[T]

	name    string
	run     func(context.Context) (T, error)
	bus     *bus.Bus
	sub     *bus.Subscription
	logger  *slog.Logger
	metrics *otel.Metrics
	untrack func()

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	errMu sync.Mutex
	err   error
}

func newQuery[T any](s *Store, name string, equal func(a, b T) bool, run func(context.Context) (T, error)) *Query[T] {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Query[T]{
		Value:   live.New(equal),
		name:    name,
		run:     run,
		bus:     s.bus,
		logger:  s.logger,
		metrics: s.metrics,
		kick:    make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if !s.track(q) {
		cancel()
		close(q.done)
		q.Value.Close()
		return q
	}
	q.untrack = func() { s.untrack(q) }
	// Subscribe before the first run so a change committed during it is not
	// missed.
	q.sub = s.bus.Subscribe(bus.TopicTasksPrefix)
	go q.loop(ctx)
	return q
}

func (q *Query[T]) loop(ctx context.Context) {
	defer close(q.done)
	q.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-q.sub.Ch():
			if !ok {
				return
			}
			q.drain()
		case <-q.kick:
		}
		q.refresh(ctx)
	}
}

func (q *Query[T]) drain() {
	for {
		select {
		case _, ok := <-q.sub.Ch():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (q *Query[T]) refresh(ctx context.Context) {
	q.metrics.RecordQueryRun(ctx, q.name)
	val, err := q.run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		err = task.Unavailable("query "+q.name, err)
		q.setErr(err)
		q.logger.Warn("live query failed", "query", q.name, "error", err)
		return
	}
	q.setErr(nil)
	q.Value.Set(val)
}

func (q *Query[T]) setErr(err error) {
	q.errMu.Lock()
	q.err = err
	q.errMu.Unlock()
}

// Err returns the error of the most recent run, or nil if it succeeded. A
// failed run keeps the previous value.
func (q *Query[T]) Err() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	return q.err
}

// Name identifies the query in logs and metrics.
func (q *Query[T]) Name() string {
	return q.name
}

// Refresh schedules a re-run without a change event. Used for results that
// depend on the clock.
func (q *Query[T]) Refresh() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// Close stops the query and closes every subscriber channel of its Value.
func (q *Query[T]) Close() {
	q.once.Do(func() {
		q.cancel()
		if q.sub != nil {
			q.bus.Unsubscribe(q.sub)
		}
		<-q.done
		q.Value.Close()
		if q.untrack != nil {
			q.untrack()
		}
	})
}

// Wait blocks until the query has produced a value.
func (q *Query[T]) Wait(ctx context.Context) (T, error) {
	val, err := q.Value.Await(ctx, func(T) bool { return true })
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return val, errors.New("store: query closed")
	}
	return val, err
}

func (s *Store) AllTasks() *Query[[]task.Task] {
	return newQuery(s, "all", live.SliceEqual[task.Task], s.backend.All)
}

func (s *Store) ActiveTasks() *Query[[]task.Task] {
	return newQuery(s, "active", live.SliceEqual[task.Task], s.backend.Active)
}

func (s *Store) CompletedTasks() *Query[[]task.Task] {
	return newQuery(s, "completed", live.SliceEqual[task.Task], s.backend.Completed)
}

// FilterTasks returns the live query a filter selection reads from.
func (s *Store) FilterTasks(f task.Filter) *Query[[]task.Task] {
	switch f {
	case task.FilterActive:
		return s.ActiveTasks()
	case task.FilterCompleted:
		return s.CompletedTasks()
	default:
		return s.AllTasks()
	}
}

func (s *Store) TasksByCategory(category string) *Query[[]task.Task] {
	return newQuery(s, "by_category", live.SliceEqual[task.Task], func(ctx context.Context) ([]task.Task, error) {
		return s.backend.ByCategory(ctx, category)
	})
}

// SearchTasks matches text against title and description. An empty text
// yields an empty list.
func (s *Store) SearchTasks(text string) *Query[[]task.Task] {
	return newQuery(s, "search", live.SliceEqual[task.Task], func(ctx context.Context) ([]task.Task, error) {
		return s.backend.Search(ctx, text)
	})
}

// TaskByID tracks one task. While the id does not exist the value is the zero
// Task, whose Persisted reports false.
func (s *Store) TaskByID(id int64) *Query[task.Task] {
	return newQuery(s, "by_id", live.Equal[task.Task], func(ctx context.Context) (task.Task, error) {
		t, err := s.backend.ByID(ctx, id)
		if errors.Is(err, task.ErrNotFound) {
			return task.Task{}, nil
		}
		return t, err
	})
}

func (s *Store) Categories() *Query[[]string] {
	return newQuery(s, "categories", live.SliceEqual[string], s.backend.Categories)
}

func (s *Store) ActiveCount() *Query[int] {
	return newQuery(s, "active_count", live.Equal[int], s.backend.ActiveCount)
}

func (s *Store) CompletedCount() *Query[int] {
	return newQuery(s, "completed_count", live.Equal[int], s.backend.CompletedCount)
}

// OverdueCount counts incomplete tasks due before now(), evaluated on every
// run. Refresh re-evaluates against a later now without a data change.
func (s *Store) OverdueCount(now func() time.Time) *Query[int] {
	if now == nil {
		now = s.now
	}
	return newQuery(s, "overdue_count", live.Equal[int], func(ctx context.Context) (int, error) {
		return s.backend.OverdueCount(ctx, now())
	})
}
