package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/basket/tasktrack/internal/query"
	"github.com/basket/tasktrack/internal/task"
)

// MemoryStore is a non-durable task collection with the same query semantics
// as SQLiteStore. Ids are never reused, matching AUTOINCREMENT.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[int64]task.Task
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[int64]task.Task)}
}

func (m *MemoryStore) snapshot() []task.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out
}

func (m *MemoryStore) All(context.Context) ([]task.Task, error) {
	return query.All(m.snapshot()), nil
}

func (m *MemoryStore) Active(context.Context) ([]task.Task, error) {
	return query.Active(m.snapshot()), nil
}

func (m *MemoryStore) Completed(context.Context) ([]task.Task, error) {
	return query.Completed(m.snapshot()), nil
}

func (m *MemoryStore) ByCategory(_ context.Context, category string) ([]task.Task, error) {
	return query.ByCategory(m.snapshot(), category), nil
}

func (m *MemoryStore) Search(_ context.Context, text string) ([]task.Task, error) {
	return query.Search(m.snapshot(), text), nil
}

func (m *MemoryStore) ByID(_ context.Context, id int64) (task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) Categories(context.Context) ([]string, error) {
	return query.Categories(m.snapshot()), nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks), nil
}

func (m *MemoryStore) ActiveCount(context.Context) (int, error) {
	return query.CountActive(m.snapshot()), nil
}

func (m *MemoryStore) CompletedCount(context.Context) (int, error) {
	return query.CountCompleted(m.snapshot()), nil
}

func (m *MemoryStore) OverdueCount(_ context.Context, now time.Time) (int, error) {
	return query.CountOverdue(m.snapshot(), now), nil
}

func (m *MemoryStore) insertLocked(t task.Task) int64 {
	if t.ID == 0 {
		m.nextID++
		t.ID = m.nextID
	} else if t.ID > m.nextID {
		m.nextID = t.ID
	}
	m.tasks[t.ID] = t
	return t.ID
}

func (m *MemoryStore) Insert(_ context.Context, t task.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(t), nil
}

func (m *MemoryStore) InsertAll(_ context.Context, tasks []task.Task) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, m.insertLocked(t))
	}
	return ids, nil
}

func (m *MemoryStore) Update(_ context.Context, t task.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[t.ID]
	if !ok {
		return 0, nil
	}
	t.CreatedAt = cur.CreatedAt
	m.tasks[t.ID] = t
	return 1, nil
}

func (m *MemoryStore) Delete(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return 0, nil
	}
	delete(m.tasks, id)
	return 1, nil
}

func (m *MemoryStore) DeleteAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.tasks))
	m.tasks = make(map[int64]task.Task)
	return n, nil
}
