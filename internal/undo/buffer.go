// Package undo keeps the most recently deleted task so the deletion can be
// reverted once.
package undo

import (
	"context"
	"log/slog"
	"sync"

	"github.com/basket/tasktrack/internal/live"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/worker"
)

// Inserter restores a task with its original id. *store.Store implements it.
type Inserter interface {
	Insert(ctx context.Context, t task.Task) *worker.Future[int64]
}

// Buffer is a single slot. Recording a deletion replaces whatever was held.
type Buffer struct {
	ins    Inserter
	logger *slog.Logger

	mu      sync.Mutex
	slot    task.Task
	held    bool
	records uint64

	available *live.Value[bool]
}

func New(ins Inserter, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		ins:       ins,
		logger:    logger,
		available: live.Of(false, live.Equal[bool]),
	}
}

// RecordDeletion remembers t, a full snapshot including its id.
func (b *Buffer) RecordDeletion(t task.Task) {
	b.mu.Lock()
	b.slot, b.held = t, true
	b.records++
	b.available.Set(true)
	b.mu.Unlock()
}

// Undo reinserts the held task under its original id and empties the slot.
// With nothing held it resolves to false. If the reinsert fails the task is
// put back, unless another deletion was recorded in the meantime.
func (b *Buffer) Undo(ctx context.Context) *worker.Future[bool] {
	b.mu.Lock()
	if !b.held {
		b.mu.Unlock()
		return worker.Resolved(false, nil)
	}
	t, records := b.slot, b.records
	b.slot, b.held = task.Task{}, false
	b.available.Set(false)
	b.mu.Unlock()

	return worker.Map(b.ins.Insert(ctx, t), func(_ int64, err error) (bool, error) {
		if err != nil {
			b.restore(t, records)
			b.logger.Warn("undo failed; deletion kept", "task_id", t.ID, "error", err)
			return false, err
		}
		b.logger.Info("deletion undone", "task_id", t.ID)
		return true, nil
	})
}

func (b *Buffer) restore(t task.Task, records uint64) {
	b.mu.Lock()
	if b.held || b.records != records {
		b.mu.Unlock()
		return
	}
	b.slot, b.held = t, true
	b.available.Set(true)
	b.mu.Unlock()
}

func (b *Buffer) CanUndo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}

// Peek returns the held task without taking it.
func (b *Buffer) Peek() (task.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot, b.held
}

// Clear drops the held task.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.slot, b.held = task.Task{}, false
	b.available.Set(false)
	b.mu.Unlock()
}

// Available tracks CanUndo for displays that show an undo affordance.
func (b *Buffer) Available() *live.Value[bool] {
	return b.available
}
