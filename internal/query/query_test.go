package query

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/basket/tasktrack/internal/task"
)

func ids(tasks []task.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func fixture() []task.Task {
	return []task.Task{
		{ID: 1, Title: "A", Priority: task.PriorityHigh, CreatedAt: 100},
		{ID: 2, Title: "B", Priority: task.PriorityLow, CreatedAt: 200},
		{ID: 3, Title: "C", Priority: task.PriorityHigh, CreatedAt: 300},
		{ID: 4, Title: "D done", Priority: task.PriorityHigh, CreatedAt: 50, Completed: true, Category: "work"},
		{ID: 5, Title: "E done", Priority: task.PriorityLow, CreatedAt: 400, Completed: true, Category: "home"},
		{ID: 6, Title: "F", Description: "Project kickoff", Priority: task.PriorityMedium, CreatedAt: 250, Category: "work"},
	}
}

func TestAllOrdersByPriorityThenNewest(t *testing.T) {
	got := ids(All(fixture()))
	want := []int64{3, 1, 4, 6, 5, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("All order mismatch (-want +got):\n%s", diff)
	}
}

func TestScenarioCAB(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, Title: "A", Priority: task.PriorityHigh, CreatedAt: 1},
		{ID: 2, Title: "B", Priority: task.PriorityLow, CreatedAt: 2},
		{ID: 3, Title: "C", Priority: task.PriorityHigh, CreatedAt: 3},
	}
	var titles []string
	for _, tk := range All(tasks) {
		titles = append(titles, tk.Title)
	}
	if diff := cmp.Diff([]string{"C", "A", "B"}, titles); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestActiveExcludesCompleted(t *testing.T) {
	got := ids(Active(fixture()))
	if diff := cmp.Diff([]int64{3, 1, 6, 2}, got); diff != "" {
		t.Fatalf("Active mismatch (-want +got):\n%s", diff)
	}
}

func TestCompletedIgnoresPriority(t *testing.T) {
	got := ids(Completed(fixture()))
	// 5 is low priority but newer than the high-priority 4.
	if diff := cmp.Diff([]int64{5, 4}, got); diff != "" {
		t.Fatalf("Completed mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchIgnoresCompletionAndCase(t *testing.T) {
	got := ids(Search(fixture(), "DONE"))
	if diff := cmp.Diff([]int64{4, 5}, got); diff != "" {
		t.Fatalf("Search mismatch (-want +got):\n%s", diff)
	}
	got = ids(Search(fixture(), "proj"))
	if diff := cmp.Diff([]int64{6}, got); diff != "" {
		t.Fatalf("description search mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptySearchMatchesNothing(t *testing.T) {
	if got := Search(fixture(), ""); len(got) != 0 {
		t.Fatalf("empty search returned %d tasks", len(got))
	}
}

func TestByCategoryAndCategories(t *testing.T) {
	if diff := cmp.Diff([]int64{4, 6}, ids(ByCategory(fixture(), "work"))); diff != "" {
		t.Fatalf("ByCategory mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"home", "work"}, Categories(fixture())); diff != "" {
		t.Fatalf("Categories mismatch (-want +got):\n%s", diff)
	}
}

func TestInputNotMutated(t *testing.T) {
	in := fixture()
	before := ids(in)
	_ = All(in)
	_ = Completed(in)
	if diff := cmp.Diff(before, ids(in)); diff != "" {
		t.Fatalf("input reordered (-before +after):\n%s", diff)
	}
}

func TestCounts(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, DueDate: 500},
		{ID: 2, DueDate: 1500},
		{ID: 3, DueDate: 0},
		{ID: 4, DueDate: 100, Completed: true},
	}
	if got := CountActive(tasks); got != 3 {
		t.Fatalf("CountActive = %d, want 3", got)
	}
	if got := CountCompleted(tasks); got != 1 {
		t.Fatalf("CountCompleted = %d, want 1", got)
	}
	if got := CountOverdue(tasks, time.UnixMilli(1000)); got != 1 {
		t.Fatalf("CountOverdue(1000) = %d, want 1", got)
	}
	// Moving now past the second due date flips its membership.
	if got := CountOverdue(tasks, time.UnixMilli(1501)); got != 2 {
		t.Fatalf("CountOverdue(1501) = %d, want 2", got)
	}
}

func TestSortInPlace(t *testing.T) {
	tasks := fixture()
	SortAll(tasks)
	if diff := cmp.Diff([]int64{3, 1, 4, 6, 5, 2}, ids(tasks)); diff != "" {
		t.Fatalf("SortAll mismatch (-want +got):\n%s", diff)
	}
	SortCompleted(tasks)
	if diff := cmp.Diff([]int64{5, 3, 6, 2, 1, 4}, ids(tasks)); diff != "" {
		t.Fatalf("SortCompleted mismatch (-want +got):\n%s", diff)
	}
	if !LessCompleted(tasks[0], tasks[1]) || LessCompleted(tasks[1], tasks[0]) {
		t.Fatal("LessCompleted disagrees with SortCompleted")
	}
}
