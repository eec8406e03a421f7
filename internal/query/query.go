// Package query holds the ordering and matching rules of the task list.
// Everything here is pure: inputs are never mutated and no state is kept.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/basket/tasktrack/internal/task"
)

// Less orders by priority descending, then createdAt descending, then id
// descending so the order is total.
func Less(a, b task.Task) bool {
	return Compare(a, b) < 0
}

// Compare is the three-way form of Less, suitable for slices.SortFunc.
func Compare(a, b task.Task) int {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return -1
		}
		return 1
	}
	return compareNewest(a, b)
}

// CompareCompleted orders by createdAt descending only; priority is ignored.
func CompareCompleted(a, b task.Task) int {
	return compareNewest(a, b)
}

// LessCompleted orders by createdAt descending, then id descending.
func LessCompleted(a, b task.Task) bool {
	return CompareCompleted(a, b) < 0
}

// SortAll sorts tasks in place by Less.
func SortAll(tasks []task.Task) {
	slices.SortStableFunc(tasks, Compare)
}

// SortCompleted sorts tasks in place by LessCompleted.
func SortCompleted(tasks []task.Task) {
	slices.SortStableFunc(tasks, CompareCompleted)
}

func compareNewest(a, b task.Task) int {
	switch {
	case a.CreatedAt > b.CreatedAt:
		return -1
	case a.CreatedAt < b.CreatedAt:
		return 1
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// Matches reports whether text occurs in the title or description, ignoring
// case. The empty string matches nothing: an empty query means search is off.
func Matches(t task.Task, text string) bool {
	return MatchText(t.Title, t.Description, text)
}

// MatchText is Matches over raw columns. The SQLite backend registers it as
// the task_match SQL function.
func MatchText(title, description, text string) bool {
	if text == "" {
		return false
	}
	needle := strings.ToLower(text)
	return strings.Contains(strings.ToLower(title), needle) ||
		strings.Contains(strings.ToLower(description), needle)
}

func sorted(tasks []task.Task, keep func(task.Task) bool, cmp func(a, b task.Task) int) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func All(tasks []task.Task) []task.Task {
	return sorted(tasks, func(task.Task) bool { return true }, Compare)
}

func Active(tasks []task.Task) []task.Task {
	return sorted(tasks, func(t task.Task) bool { return !t.Completed }, Compare)
}

func Completed(tasks []task.Task) []task.Task {
	return sorted(tasks, func(t task.Task) bool { return t.Completed }, CompareCompleted)
}

// ForFilter dispatches to All, Active or Completed.
func ForFilter(tasks []task.Task, f task.Filter) []task.Task {
	switch f {
	case task.FilterActive:
		return Active(tasks)
	case task.FilterCompleted:
		return Completed(tasks)
	default:
		return All(tasks)
	}
}

func ByCategory(tasks []task.Task, category string) []task.Task {
	return sorted(tasks, func(t task.Task) bool { return t.Category == category }, Compare)
}

// Search returns every task matching text in all-tasks order, regardless of
// completion.
func Search(tasks []task.Task, text string) []task.Task {
	return sorted(tasks, func(t task.Task) bool { return Matches(t, text) }, Compare)
}

// Categories returns the distinct non-empty categories in lexical order.
func Categories(tasks []task.Task) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, t := range tasks {
		if t.Category == "" {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	slices.Sort(out)
	return out
}

func CountActive(tasks []task.Task) int {
	n := 0
	for _, t := range tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

func CountCompleted(tasks []task.Task) int {
	return len(tasks) - CountActive(tasks)
}

func CountOverdue(tasks []task.Task, now time.Time) int {
	n := 0
	for _, t := range tasks {
		if t.IsOverdue(now) {
			n++
		}
	}
	return n
}
