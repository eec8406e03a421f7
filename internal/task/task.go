// Package task defines the task entity shared by every layer of the tracker.
package task

import (
	"fmt"
	"strings"
	"time"
)

type Priority int

const (
	PriorityLow    Priority = 0
	PriorityMedium Priority = 1
	PriorityHigh   Priority = 2
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParsePriority accepts the names returned by String and the ordinals 0-2.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "l", "0":
		return PriorityLow, nil
	case "medium", "med", "m", "1", "":
		return PriorityMedium, nil
	case "high", "h", "2":
		return PriorityHigh, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q (want low, medium or high)", s)
	}
}

// Task is a value type: copies never alias store state, and two tasks can be
// compared with ==.
type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Completed   bool     `json:"completed"`
	CreatedAt   int64    `json:"created_at"` // ms since epoch
	DueDate     int64    `json:"due_date"`   // ms since epoch, 0 = none
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
}

// New returns an unsaved task stamped with createdAt.
func New(title string, createdAt time.Time) Task {
	return Task{
		Title:     title,
		CreatedAt: createdAt.UnixMilli(),
		Priority:  PriorityMedium,
	}
}

func (t Task) Persisted() bool {
	return t.ID != 0
}

func (t Task) HasDueDate() bool {
	return t.DueDate > 0
}

// IsOverdue reports whether t is incomplete and due strictly before now.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.Completed && t.DueDate > 0 && t.DueDate < now.UnixMilli()
}

// Toggled returns a copy with the completion flag flipped.
func (t Task) Toggled() Task {
	t.Completed = !t.Completed
	return t
}

func (t Task) Created() time.Time {
	return time.UnixMilli(t.CreatedAt)
}

// Due returns the due date and whether one is set.
func (t Task) Due() (time.Time, bool) {
	if t.DueDate <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(t.DueDate), true
}

func (t Task) String() string {
	return fmt.Sprintf("Task{id=%d title=%q completed=%t priority=%s category=%q}",
		t.ID, t.Title, t.Completed, t.Priority, t.Category)
}

// Filter is the coarse view mode of the task list.
type Filter int

const (
	FilterAll Filter = iota
	FilterActive
	FilterCompleted
)

func (f Filter) String() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

func (f Filter) Valid() bool {
	return f >= FilterAll && f <= FilterCompleted
}

func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "active", "open", "todo":
		return FilterActive, nil
	case "completed", "done":
		return FilterCompleted, nil
	default:
		return FilterAll, fmt.Errorf("unknown filter %q (want all, active or completed)", s)
	}
}
