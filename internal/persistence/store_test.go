package persistence_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/basket/tasktrack/internal/persistence"
	"github.com/basket/tasktrack/internal/task"
)

func openTestStore(t *testing.T) (*persistence.SQLiteStore, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tasks.db")
	store, err := persistence.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, dbPath
}

func queryOneString(t *testing.T, db *sql.DB, q string) string {
	t.Helper()
	var out string
	if err := db.QueryRow(q).Scan(&out); err != nil {
		t.Fatalf("query %q: %v", q, err)
	}
	return out
}

func titles(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func mustInsert(t *testing.T, b interface {
	Insert(context.Context, task.Task) (int64, error)
}, tk task.Task) int64 {
	t.Helper()
	id, err := b.Insert(context.Background(), tk)
	if err != nil {
		t.Fatalf("insert %q: %v", tk.Title, err)
	}
	return id
}

func TestStore_OpenConfiguresWALAndSchema(t *testing.T) {
	store, _ := openTestStore(t)
	db := store.DB()

	if journal := queryOneString(t, db, "PRAGMA journal_mode;"); journal != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journal)
	}
	var synchronous int
	if err := db.QueryRow("PRAGMA synchronous;").Scan(&synchronous); err != nil {
		t.Fatalf("pragma synchronous: %v", err)
	}
	if synchronous != 2 {
		t.Fatalf("expected synchronous FULL(2), got %d", synchronous)
	}
	for _, table := range []string{"schema_migrations", "tasks"} {
		var got string
		if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&got); err != nil {
			t.Fatalf("table %s not found: %v", table, err)
		}
	}
}

func TestStore_ReopenKeepsDataAndChecksum(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	store, err := persistence.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustInsert(t, store, task.Task{Title: "persisted", CreatedAt: 1})
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = persistence.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	all, err := store.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 || all[0].Title != "persisted" {
		t.Fatalf("after reopen got %v", all)
	}
}

func TestStore_SecondOpenIsLocked(t *testing.T) {
	_, dbPath := openTestStore(t)
	_, err := persistence.Open(dbPath, nil)
	if !errors.Is(err, persistence.ErrLocked) {
		t.Fatalf("second open err = %v, want ErrLocked", err)
	}
}

func TestStore_InsertAssignsIDAndRoundTrips(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	in := task.Task{
		Title:       "Write report",
		Description: "quarterly",
		CreatedAt:   1000,
		DueDate:     5000,
		Priority:    task.PriorityHigh,
		Category:    "work",
	}
	id := mustInsert(t, store, in)
	if id <= 0 {
		t.Fatalf("id = %d, want > 0", id)
	}
	got, err := store.ByID(ctx, id)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	in.ID = id
	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if _, err := store.ByID(ctx, id+100); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("missing id err = %v, want ErrNotFound", err)
	}
}

func TestStore_IDsAreNotReused(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	first := mustInsert(t, store, task.Task{Title: "a", CreatedAt: 1})
	if _, err := store.Delete(ctx, first); err != nil {
		t.Fatalf("delete: %v", err)
	}
	second := mustInsert(t, store, task.Task{Title: "b", CreatedAt: 2})
	if second == first {
		t.Fatalf("id %d reused after delete", first)
	}
}

func TestStore_InsertWithIDReplaces(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	id := mustInsert(t, store, task.Task{Title: "orig", CreatedAt: 1})
	if _, err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	restored := task.Task{ID: id, Title: "orig", CreatedAt: 1}
	gotID := mustInsert(t, store, restored)
	if gotID != id {
		t.Fatalf("reinsert id = %d, want %d", gotID, id)
	}
	restored.Title = "replaced"
	mustInsert(t, store, restored)
	n, _ := store.Count(ctx)
	if n != 1 {
		t.Fatalf("count = %d, want 1 after replace", n)
	}
	got, _ := store.ByID(ctx, id)
	if got.Title != "replaced" {
		t.Fatalf("title = %q, want replaced", got.Title)
	}
}

func TestStore_UpdateKeepsCreatedAt(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	id := mustInsert(t, store, task.Task{Title: "a", CreatedAt: 100})
	rows, err := store.Update(ctx, task.Task{ID: id, Title: "b", CreatedAt: 999, Completed: true})
	if err != nil || rows != 1 {
		t.Fatalf("update = %d, %v", rows, err)
	}
	got, _ := store.ByID(ctx, id)
	if got.CreatedAt != 100 || got.Title != "b" || !got.Completed {
		t.Fatalf("after update got %+v", got)
	}
}

func TestStore_MissingIDIsNoop(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	rows, err := store.Update(ctx, task.Task{ID: 42, Title: "ghost"})
	if err != nil || rows != 0 {
		t.Fatalf("update missing = %d, %v; want 0, nil", rows, err)
	}
	rows, err = store.Delete(ctx, 42)
	if err != nil || rows != 0 {
		t.Fatalf("delete missing = %d, %v; want 0, nil", rows, err)
	}
}

func TestStore_QueriesOrdering(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	mustInsert(t, store, task.Task{Title: "A", Priority: task.PriorityHigh, CreatedAt: 1})
	mustInsert(t, store, task.Task{Title: "B", Priority: task.PriorityLow, CreatedAt: 2})
	mustInsert(t, store, task.Task{Title: "C", Priority: task.PriorityHigh, CreatedAt: 3})
	mustInsert(t, store, task.Task{Title: "old done", Priority: task.PriorityHigh, CreatedAt: 4, Completed: true})
	mustInsert(t, store, task.Task{Title: "new done", Priority: task.PriorityLow, CreatedAt: 5, Completed: true})

	all, _ := store.All(ctx)
	if diff := cmp.Diff([]string{"old done", "C", "A", "new done", "B"}, titles(all)); diff != "" {
		t.Fatalf("All mismatch (-want +got):\n%s", diff)
	}
	active, _ := store.Active(ctx)
	if diff := cmp.Diff([]string{"C", "A", "B"}, titles(active)); diff != "" {
		t.Fatalf("Active mismatch (-want +got):\n%s", diff)
	}
	done, _ := store.Completed(ctx)
	if diff := cmp.Diff([]string{"new done", "old done"}, titles(done)); diff != "" {
		t.Fatalf("Completed mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SearchAndCategories(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	mustInsert(t, store, task.Task{Title: "Project plan", CreatedAt: 1, Category: "work"})
	mustInsert(t, store, task.Task{Title: "Groceries", Description: "for the PROJECT party", CreatedAt: 2, Completed: true, Category: "home"})
	mustInsert(t, store, task.Task{Title: "100% done", CreatedAt: 3})
	mustInsert(t, store, task.Task{Title: "Nap", CreatedAt: 4, Category: "home"})

	got, _ := store.Search(ctx, "proj")
	if diff := cmp.Diff([]string{"Groceries", "Project plan"}, titles(got)); diff != "" {
		t.Fatalf("Search mismatch (-want +got):\n%s", diff)
	}
	// LIKE wildcards are literal characters for task_match.
	got, _ = store.Search(ctx, "%")
	if diff := cmp.Diff([]string{"100% done"}, titles(got)); diff != "" {
		t.Fatalf("wildcard search mismatch (-want +got):\n%s", diff)
	}
	got, _ = store.Search(ctx, "")
	if len(got) != 0 {
		t.Fatalf("empty search returned %d tasks", len(got))
	}
	cats, _ := store.Categories(ctx)
	if diff := cmp.Diff([]string{"home", "work"}, cats); diff != "" {
		t.Fatalf("Categories mismatch (-want +got):\n%s", diff)
	}
	home, _ := store.ByCategory(ctx, "home")
	if diff := cmp.Diff([]string{"Nap", "Groceries"}, titles(home)); diff != "" {
		t.Fatalf("ByCategory mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_Counts(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	mustInsert(t, store, task.Task{Title: "late", CreatedAt: 1, DueDate: 500})
	mustInsert(t, store, task.Task{Title: "soon", CreatedAt: 1, DueDate: 1500})
	mustInsert(t, store, task.Task{Title: "someday", CreatedAt: 1})
	mustInsert(t, store, task.Task{Title: "done late", CreatedAt: 1, DueDate: 100, Completed: true})

	active, _ := store.ActiveCount(ctx)
	completed, _ := store.CompletedCount(ctx)
	if active != 3 || completed != 1 {
		t.Fatalf("active/completed = %d/%d, want 3/1", active, completed)
	}
	overdue, _ := store.OverdueCount(ctx, time.UnixMilli(1000))
	if overdue != 1 {
		t.Fatalf("overdue(1000) = %d, want 1", overdue)
	}
	overdue, _ = store.OverdueCount(ctx, time.UnixMilli(1501))
	if overdue != 2 {
		t.Fatalf("overdue(1501) = %d, want 2", overdue)
	}
}

func TestStore_InsertAllAndDeleteAll(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	ids, err := store.InsertAll(ctx, persistence.SampleTasks(time.UnixMilli(1_000_000_000)))
	if err != nil {
		t.Fatalf("insert all: %v", err)
	}
	if len(ids) != 6 {
		t.Fatalf("ids = %v, want 6", ids)
	}
	rows, err := store.DeleteAll(ctx)
	if err != nil || rows != 6 {
		t.Fatalf("delete all = %d, %v", rows, err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("count = %d after delete all", n)
	}
}

func TestStore_Backup(t *testing.T) {
	store, _ := openTestStore(t)
	mustInsert(t, store, task.Task{Title: "keep me", CreatedAt: 1})
	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := store.Backup(context.Background(), dest); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := store.Backup(context.Background(), dest); err == nil {
		t.Fatal("expected error when destination exists")
	}
	copyStore, err := persistence.Open(dest, nil)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer copyStore.Close()
	all, _ := copyStore.All(context.Background())
	if len(all) != 1 || all[0].Title != "keep me" {
		t.Fatalf("backup contents = %v", all)
	}
}
