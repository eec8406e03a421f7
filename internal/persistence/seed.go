package persistence

import (
	"time"

	"github.com/basket/tasktrack/internal/task"
)

// SampleTasks returns the starter list written into a fresh, empty database
// when seeding is enabled. Timestamps are relative to now.
func SampleTasks(now time.Time) []task.Task {
	ms := now.UnixMilli()
	const hour = int64(time.Hour / time.Millisecond)
	const day = 24 * hour

	return []task.Task{
		{
			Title:       "Learn the reactive view layer",
			Description: "Read how filter, search and the live task queries combine into one list",
			CreatedAt:   ms,
			DueDate:     ms + 3*day,
			Priority:    task.PriorityHigh,
			Category:    "Learning",
		},
		{
			Title:       "Set up the task database",
			Description: "Create the schema and open the store with WAL enabled",
			Completed:   true,
			CreatedAt:   ms - hour,
			DueDate:     ms - day,
			Priority:    task.PriorityHigh,
			Category:    "Learning",
		},
		{
			Title:       "Sketch the list layout",
			Description: "Decide how priority and due dates are shown for each task",
			CreatedAt:   ms - 2*hour,
			DueDate:     ms + day,
			Priority:    task.PriorityMedium,
			Category:    "Design",
		},
		{
			Title:       "Write unit tests",
			Description: "Cover the store, the view compositor and the undo buffer",
			CreatedAt:   ms - 3*hour,
			DueDate:     ms + 7*day,
			Priority:    task.PriorityLow,
			Category:    "Testing",
		},
		{
			Title:       "Cut a release",
			Description: "Tag the build and publish the binaries",
			CreatedAt:   ms - 4*hour,
			Priority:    task.PriorityMedium,
			Category:    "Deploy",
		},
		{
			Title:       "Monthly groceries",
			Description: "Rice, oil, sugar and spices",
			CreatedAt:   ms - hour/2,
			DueDate:     ms + 2*day,
			Priority:    task.PriorityLow,
			Category:    "Personal",
		},
	}
}
