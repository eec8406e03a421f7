package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/basket/tasktrack/internal/live"
	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/worker"
)

const waitTimeout = 2 * time.Second

// WaitFor blocks until v holds a value satisfying pred and returns it. The
// test fails after two seconds.
func WaitFor[T any](t testing.TB, v *live.Value[T], pred func(T) bool) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	val, err := v.Await(ctx, pred)
	if err != nil {
		cur, _ := v.Get()
		t.Fatalf("timed out waiting for value; last = %v: %v", cur, err)
	}
	return val
}

// Resolve waits for f and fails the test on error.
func Resolve[T any](t testing.TB, f *worker.Future[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	val, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("future: %v", err)
	}
	return val
}

// Wait waits for f and returns its outcome. Only a timeout fails the test.
func Wait[T any](t testing.TB, f *worker.Future[T]) (T, error) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for future")
	}
	val, err, _ := f.Result()
	return val, err
}

// Titles lists the titles of tasks in order.
func Titles(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

// HasTitles returns a predicate matching a task list with exactly these
// titles in this order.
func HasTitles(want ...string) func([]task.Task) bool {
	return func(tasks []task.Task) bool {
		if len(tasks) != len(want) {
			return false
		}
		for i, t := range tasks {
			if t.Title != want[i] {
				return false
			}
		}
		return true
	}
}
