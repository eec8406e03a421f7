package stats_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/basket/tasktrack/internal/stats"
	"github.com/basket/tasktrack/internal/store"
	"github.com/basket/tasktrack/internal/store/storetest"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/view"
)

type clock struct{ ms atomic.Int64 }

func (c *clock) now() time.Time { return time.UnixMilli(c.ms.Load()) }

func newAggregator(t *testing.T, c *clock, seed ...task.Task) (*store.Store, *stats.Aggregator) {
	t.Helper()
	s, err := store.New(store.Config{Backend: storetest.New(), Now: c.now})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if len(seed) > 0 {
		storetest.Resolve(t, s.InsertAll(context.Background(), seed))
	}
	a, err := stats.New(stats.Config{Source: s, Now: c.now})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
		s.Close()
	})
	return s, a
}

func is(n int) func(int) bool { return func(v int) bool { return v == n } }

func TestCountersFollowCollection(t *testing.T) {
	c := &clock{}
	c.ms.Store(10_000)
	s, a := newAggregator(t, c)
	ctx := context.Background()

	storetest.Resolve(t, s.InsertAll(ctx, []task.Task{
		{Title: "late", CreatedAt: 1, DueDate: 5_000},
		{Title: "later", CreatedAt: 1, DueDate: 20_000},
		{Title: "done late", CreatedAt: 1, DueDate: 5_000, Completed: true},
		{Title: "no due date", CreatedAt: 1},
	}))
	storetest.WaitFor(t, a.Active(), is(3))
	storetest.WaitFor(t, a.Completed(), is(1))
	storetest.WaitFor(t, a.Overdue(), is(1))

	late := storetest.Resolve(t, s.Get(ctx, 1))
	storetest.Resolve(t, s.ToggleComplete(ctx, late))
	storetest.WaitFor(t, a.Active(), is(2))
	storetest.WaitFor(t, a.Completed(), is(2))
	storetest.WaitFor(t, a.Overdue(), is(0))

	want := stats.Counts{Active: 2, Completed: 2, Overdue: 0}
	if got := a.Current(); got != want {
		t.Fatalf("Current = %v, want %v", got, want)
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestOverdueOnlyMovesOnRefreshOrChange(t *testing.T) {
	c := &clock{}
	c.ms.Store(1_000)
	_, a := newAggregator(t, c, task.Task{Title: "due at 2000", CreatedAt: 1, DueDate: 2_000})
	ctx := context.Background()
	storetest.WaitFor(t, a.Active(), is(1))
	storetest.WaitFor(t, a.Overdue(), is(0))

	c.ms.Store(3_000)
	if got, _ := a.Overdue().Get(); got != 0 {
		t.Fatalf("overdue = %d before refresh, want 0", got)
	}
	a.Refresh()
	storetest.WaitFor(t, a.Overdue(), is(1))

	if n := storetest.Resolve(t, a.OverdueAt(ctx, time.UnixMilli(1_500))); n != 0 {
		t.Fatalf("OverdueAt(1500) = %d, want 0", n)
	}
	if got, _ := a.Overdue().Get(); got != 1 {
		t.Fatalf("OverdueAt changed the live counter to %d", got)
	}
}

func TestCountersIgnoreFilterAndSearch(t *testing.T) {
	c := &clock{}
	s, a := newAggregator(t, c)
	ctx := context.Background()
	v, err := view.New(view.Config{Source: s, Filter: task.FilterCompleted})
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}
	defer v.Close()

	storetest.Resolve(t, s.InsertAll(ctx, []task.Task{
		{Title: "a", CreatedAt: 1},
		{Title: "b", CreatedAt: 2},
		{Title: "c", CreatedAt: 3, Completed: true},
	}))
	v.SetSearch("zzz")
	storetest.WaitFor(t, v.Visible(), storetest.HasTitles())

	storetest.WaitFor(t, a.Active(), is(2))
	storetest.WaitFor(t, a.Completed(), is(1))
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := stats.New(stats.Config{}); err == nil {
		t.Fatal("expected error without source")
	}
}
