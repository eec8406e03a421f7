package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/basket/tasktrack/internal/persistence"
	"github.com/basket/tasktrack/internal/task"
)

// backend is the read/write surface both stores share.
type backend interface {
	All(context.Context) ([]task.Task, error)
	Active(context.Context) ([]task.Task, error)
	Completed(context.Context) ([]task.Task, error)
	Search(context.Context, string) ([]task.Task, error)
	ByCategory(context.Context, string) ([]task.Task, error)
	Categories(context.Context) ([]string, error)
	OverdueCount(context.Context, time.Time) (int, error)
	Insert(context.Context, task.Task) (int64, error)
	Update(context.Context, task.Task) (int64, error)
	Delete(context.Context, int64) (int64, error)
}

func TestMemoryStore_MatchesSQLite(t *testing.T) {
	sqlite, _ := openTestStore(t)
	mem := persistence.NewMemoryStore()
	ctx := context.Background()

	fixture := []task.Task{
		{Title: "Alpha", Description: "first", Priority: task.PriorityHigh, CreatedAt: 10, Category: "x"},
		{Title: "beta", Description: "Ünïcode ALPHA", Priority: task.PriorityLow, CreatedAt: 20},
		{Title: "Gamma", Priority: task.PriorityHigh, CreatedAt: 30, Completed: true, DueDate: 5, Category: "y"},
		{Title: "Delta", Priority: task.PriorityMedium, CreatedAt: 30, DueDate: 5, Category: "x"},
		{Title: "Epsilon", Priority: task.PriorityMedium, CreatedAt: 30, DueDate: 50},
	}
	for _, b := range []backend{sqlite, mem} {
		for _, tk := range fixture {
			mustInsert(t, b, tk)
		}
		if _, err := b.Update(ctx, task.Task{ID: 5, Title: "Epsilon", Priority: task.PriorityHigh, CreatedAt: 30}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if _, err := b.Delete(ctx, 1); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}

	type result struct {
		All, Active, Completed, Search, Unicode, Category []task.Task
		Categories                                     []string
		Overdue                                        int
	}
	collect := func(b backend) result {
		var r result
		r.All, _ = b.All(ctx)
		r.Active, _ = b.Active(ctx)
		r.Completed, _ = b.Completed(ctx)
		r.Search, _ = b.Search(ctx, "ALPHA")
		r.Unicode, _ = b.Search(ctx, "ünï")
		r.Category, _ = b.ByCategory(ctx, "x")
		r.Categories, _ = b.Categories(ctx)
		r.Overdue, _ = b.OverdueCount(ctx, time.UnixMilli(10))
		return r
	}
	want, got := collect(sqlite), collect(mem)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("memory store diverges from sqlite (-sqlite +memory):\n%s", diff)
	}
	if len(want.Unicode) != 1 {
		t.Fatalf("unicode search found %d tasks, want 1", len(want.Unicode))
	}
}

func TestMemoryStore_UpdatePreservesCreatedAt(t *testing.T) {
	mem := persistence.NewMemoryStore()
	ctx := context.Background()
	id := mustInsert(t, mem, task.Task{Title: "a", CreatedAt: 7})
	if rows, _ := mem.Update(ctx, task.Task{ID: id, Title: "b", CreatedAt: 99}); rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
	got, _ := mem.ByID(ctx, id)
	if got.CreatedAt != 7 {
		t.Fatalf("created_at = %d, want 7", got.CreatedAt)
	}
}

func TestMemoryStore_ReinsertedIDAdvancesCounter(t *testing.T) {
	mem := persistence.NewMemoryStore()
	mustInsert(t, mem, task.Task{ID: 10, Title: "restored"})
	if id := mustInsert(t, mem, task.Task{Title: "fresh"}); id != 11 {
		t.Fatalf("fresh id = %d, want 11", id)
	}
}
