// Package storetest provides a store.Backend for tests that can fail or block
// on demand.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/basket/tasktrack/internal/persistence"
	"github.com/basket/tasktrack/internal/task"
)

// Backend wraps a persistence.MemoryStore. Writes and reads can be made to
// fail, and searches for a given text can be held until released.
type Backend struct {
	*persistence.MemoryStore

	mu         sync.Mutex
	writeErr   error
	readErr    error
	gates      map[string]chan struct{}
	searches   map[string]int
	searchSeen chan string
}

func New() *Backend {
	return &Backend{
		MemoryStore: persistence.NewMemoryStore(),
		gates:       make(map[string]chan struct{}),
		searches:    make(map[string]int),
		searchSeen:  make(chan string, 64),
	}
}

// FailWrites makes every write return err until called with nil.
func (b *Backend) FailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// FailReads makes every read return err until called with nil.
func (b *Backend) FailReads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
}

// GateSearch holds every Search for text until the returned release func is
// called. Release is idempotent.
func (b *Backend) GateSearch(text string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[text] = gate
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gates[text] == gate {
				delete(b.gates, text)
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

// SearchStarted receives the text of every Search as it begins.
func (b *Backend) SearchStarted() <-chan string {
	return b.searchSeen
}

// SearchCount reports how many times Search ran for text.
func (b *Backend) SearchCount(text string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.searches[text]
}

func (b *Backend) readFailure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readErr
}

func (b *Backend) writeFailure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeErr
}

func (b *Backend) Search(ctx context.Context, text string) ([]task.Task, error) {
	b.mu.Lock()
	b.searches[text]++
	gate := b.gates[text]
	b.mu.Unlock()
	select {
	case b.searchSeen <- text:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := b.readFailure(); err != nil {
		return nil, err
	}
	return b.MemoryStore.Search(ctx, text)
}

func (b *Backend) All(ctx context.Context) ([]task.Task, error) {
	if err := b.readFailure(); err != nil {
		return nil, err
	}
	return b.MemoryStore.All(ctx)
}

func (b *Backend) Active(ctx context.Context) ([]task.Task, error) {
	if err := b.readFailure(); err != nil {
		return nil, err
	}
	return b.MemoryStore.Active(ctx)
}

func (b *Backend) Completed(ctx context.Context) ([]task.Task, error) {
	if err := b.readFailure(); err != nil {
		return nil, err
	}
	return b.MemoryStore.Completed(ctx)
}

func (b *Backend) ByID(ctx context.Context, id int64) (task.Task, error) {
	if err := b.readFailure(); err != nil {
		return task.Task{}, err
	}
	return b.MemoryStore.ByID(ctx, id)
}

func (b *Backend) OverdueCount(ctx context.Context, now time.Time) (int, error) {
	if err := b.readFailure(); err != nil {
		return 0, err
	}
	return b.MemoryStore.OverdueCount(ctx, now)
}

func (b *Backend) Insert(ctx context.Context, t task.Task) (int64, error) {
	if err := b.writeFailure(); err != nil {
		return 0, err
	}
	return b.MemoryStore.Insert(ctx, t)
}

func (b *Backend) InsertAll(ctx context.Context, tasks []task.Task) ([]int64, error) {
	if err := b.writeFailure(); err != nil {
		return nil, err
	}
	return b.MemoryStore.InsertAll(ctx, tasks)
}

func (b *Backend) Update(ctx context.Context, t task.Task) (int64, error) {
	if err := b.writeFailure(); err != nil {
		return 0, err
	}
	return b.MemoryStore.Update(ctx, t)
}

func (b *Backend) Delete(ctx context.Context, id int64) (int64, error) {
	if err := b.writeFailure(); err != nil {
		return 0, err
	}
	return b.MemoryStore.Delete(ctx, id)
}

func (b *Backend) DeleteAll(ctx context.Context) (int64, error) {
	if err := b.writeFailure(); err != nil {
		return 0, err
	}
	return b.MemoryStore.DeleteAll(ctx)
}
