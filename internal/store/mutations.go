package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/basket/tasktrack/internal/bus"
	"github.com/basket/tasktrack/internal/otel"
	"github.com/basket/tasktrack/internal/shared"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/worker"
)

// change is what a backend write reports back for the change event.
type change struct {
	taskID int64
	rows   int64
}

// mutate runs fn on the lane for key and publishes a change event once fn has
// returned successfully with rows affected. Backend errors are wrapped as
// task.ErrStorageUnavailable.
func mutate[T any](s *Store, ctx context.Context, op string, key int64, fn func(context.Context) (T, change, error)) *worker.Future[T] {
	ctx, opID := shared.EnsureOpID(ctx)
	return worker.Submit(s.pool, ctx, key, func(ctx context.Context) (T, error) {
		ctx, span := otel.StartSpan(ctx, s.tracer, "store."+op,
			otel.AttrOp.String(op),
			otel.AttrOpID.String(opID),
			otel.AttrTaskID.Int64(key),
		)
		defer span.End()

		start := time.Now()
		val, ch, err := fn(ctx)
		s.metrics.RecordMutation(ctx, op, time.Since(start), err)
		if err != nil {
			err = task.Unavailable(op, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.WarnContext(ctx, "task mutation failed", "op", op, "task_id", key, "error", err)
			return val, err
		}
		span.SetAttributes(otel.AttrRows.Int64(ch.rows))
		if ch.rows > 0 {
			seq := s.bus.Publish(bus.TopicTasksChanged, bus.TaskChangedEvent{Op: op, TaskID: ch.taskID, Rows: ch.rows})
			s.logger.DebugContext(ctx, "task mutation committed", "op", op, "task_id", ch.taskID, "rows", ch.rows, "seq", seq)
		}
		return val, nil
	})
}

// Insert stores t and resolves to its id. A zero ID gets a fresh id; a set ID
// replaces whatever row has it, which is how a deleted task is restored. A
// zero CreatedAt is stamped with the store clock.
func (s *Store) Insert(ctx context.Context, t task.Task) *worker.Future[int64] {
	if err := task.Validate(t); err != nil {
		return worker.Resolved[int64](0, err)
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = s.now().UnixMilli()
	}
	return mutate(s, ctx, bus.OpInsert, t.ID, func(ctx context.Context) (int64, change, error) {
		id, err := s.backend.Insert(ctx, t)
		return id, change{taskID: id, rows: 1}, err
	})
}

// InsertAll stores tasks in one backend call and resolves to their ids.
func (s *Store) InsertAll(ctx context.Context, tasks []task.Task) *worker.Future[[]int64] {
	batch := make([]task.Task, 0, len(tasks))
	now := s.now().UnixMilli()
	for _, t := range tasks {
		if err := task.Validate(t); err != nil {
			return worker.Resolved[[]int64](nil, err)
		}
		if t.CreatedAt == 0 {
			t.CreatedAt = now
		}
		batch = append(batch, t)
	}
	if len(batch) == 0 {
		return worker.Resolved([]int64{}, nil)
	}
	return mutate(s, ctx, bus.OpInsertAll, 0, func(ctx context.Context) ([]int64, change, error) {
		ids, err := s.backend.InsertAll(ctx, batch)
		return ids, change{rows: int64(len(ids))}, err
	})
}

// Update overwrites the task with t.ID and resolves to the affected row count.
// A missing id is a no-op that resolves to 0. CreatedAt is never changed.
func (s *Store) Update(ctx context.Context, t task.Task) *worker.Future[int64] {
	if err := task.Validate(t); err != nil {
		return worker.Resolved[int64](0, err)
	}
	return mutate(s, ctx, bus.OpUpdate, t.ID, func(ctx context.Context) (int64, change, error) {
		rows, err := s.backend.Update(ctx, t)
		return rows, change{taskID: t.ID, rows: rows}, err
	})
}

// ToggleComplete flips t's completion flag and updates it.
func (s *Store) ToggleComplete(ctx context.Context, t task.Task) *worker.Future[int64] {
	return s.Update(ctx, t.Toggled())
}

// Delete removes the task with t.ID.
func (s *Store) Delete(ctx context.Context, t task.Task) *worker.Future[int64] {
	return s.DeleteByID(ctx, t.ID)
}

// DeleteByID removes the task with id and resolves to the affected row count.
// A missing id is a no-op that resolves to 0.
func (s *Store) DeleteByID(ctx context.Context, id int64) *worker.Future[int64] {
	return mutate(s, ctx, bus.OpDelete, id, func(ctx context.Context) (int64, change, error) {
		rows, err := s.backend.Delete(ctx, id)
		return rows, change{taskID: id, rows: rows}, err
	})
}

func (s *Store) DeleteAll(ctx context.Context) *worker.Future[int64] {
	return mutate(s, ctx, bus.OpDeleteAll, 0, func(ctx context.Context) (int64, change, error) {
		rows, err := s.backend.DeleteAll(ctx)
		return rows, change{rows: rows}, err
	})
}

// read runs a one-shot backend read on the pool.
func read[T any](s *Store, ctx context.Context, name string, key int64, fn func(context.Context) (T, error)) *worker.Future[T] {
	return worker.Submit(s.pool, ctx, key, func(ctx context.Context) (T, error) {
		val, err := fn(ctx)
		if err != nil {
			return val, task.Unavailable(name, err)
		}
		return val, nil
	})
}

// Get reads one task. It runs on the task's lane, so it observes every
// mutation of that task submitted before it. A missing id resolves to
// task.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) *worker.Future[task.Task] {
	return worker.Submit(s.pool, ctx, id, func(ctx context.Context) (task.Task, error) {
		t, err := s.backend.ByID(ctx, id)
		switch {
		case err == nil:
			return t, nil
		case errors.Is(err, task.ErrNotFound):
			return task.Task{}, err
		default:
			return task.Task{}, task.Unavailable("get task", err)
		}
	})
}

// Lookup is Get with a missing id resolving to the zero Task instead of an
// error.
func (s *Store) Lookup(ctx context.Context, id int64) *worker.Future[task.Task] {
	return worker.Submit(s.pool, ctx, id, func(ctx context.Context) (task.Task, error) {
		t, err := s.backend.ByID(ctx, id)
		switch {
		case err == nil:
			return t, nil
		case errors.Is(err, task.ErrNotFound):
			return task.Task{}, nil
		default:
			return task.Task{}, task.Unavailable("lookup task", err)
		}
	})
}

// Snapshot reads the list a filter selection shows, once.
func (s *Store) Snapshot(ctx context.Context, f task.Filter) *worker.Future[[]task.Task] {
	return read(s, ctx, "snapshot "+f.String(), 0, func(ctx context.Context) ([]task.Task, error) {
		switch f {
		case task.FilterActive:
			return s.backend.Active(ctx)
		case task.FilterCompleted:
			return s.backend.Completed(ctx)
		default:
			return s.backend.All(ctx)
		}
	})
}

// Find runs a one-shot search.
func (s *Store) Find(ctx context.Context, text string) *worker.Future[[]task.Task] {
	return read(s, ctx, "search", 0, func(ctx context.Context) ([]task.Task, error) {
		return s.backend.Search(ctx, text)
	})
}

// ListCategory reads the tasks of one category, once.
func (s *Store) ListCategory(ctx context.Context, category string) *worker.Future[[]task.Task] {
	return read(s, ctx, "category", 0, func(ctx context.Context) ([]task.Task, error) {
		return s.backend.ByCategory(ctx, category)
	})
}

// OverdueAt counts tasks overdue at now, once.
func (s *Store) OverdueAt(ctx context.Context, now time.Time) *worker.Future[int] {
	return read(s, ctx, "overdue", 0, func(ctx context.Context) (int, error) {
		return s.backend.OverdueCount(ctx, now)
	})
}

// Counts is a one-shot read of the three collection counters.
type Counts struct {
	Active    int
	Completed int
	Overdue   int
}

func (s *Store) CountsAt(ctx context.Context, now time.Time) *worker.Future[Counts] {
	return read(s, ctx, "counts", 0, func(ctx context.Context) (Counts, error) {
		var c Counts
		var err error
		if c.Active, err = s.backend.ActiveCount(ctx); err != nil {
			return c, err
		}
		if c.Completed, err = s.backend.CompletedCount(ctx); err != nil {
			return c, err
		}
		c.Overdue, err = s.backend.OverdueCount(ctx, now)
		return c, err
	})
}

// SeedIfEmpty inserts tasks when the collection is empty and resolves to the
// number inserted.
func (s *Store) SeedIfEmpty(ctx context.Context, tasks []task.Task) *worker.Future[int] {
	seed := make([]task.Task, len(tasks))
	copy(seed, tasks)
	return mutate(s, ctx, bus.OpInsertAll, 0, func(ctx context.Context) (int, change, error) {
		n, err := s.backend.Count(ctx)
		if err != nil || n > 0 || len(seed) == 0 {
			return 0, change{}, err
		}
		ids, err := s.backend.InsertAll(ctx, seed)
		return len(ids), change{rows: int64(len(ids))}, err
	})
}
