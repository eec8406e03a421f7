package bus

// Task collection topics. Events are published only after the backend has
// committed the write they describe.
const (
	TopicTasksPrefix  = "tasks."
	TopicTasksChanged = "tasks.changed"
)

// Change operations carried by TaskChangedEvent.
const (
	OpInsert    = "insert"
	OpInsertAll = "insert_all"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
)

// TaskChangedEvent describes one committed mutation of the task collection.
type TaskChangedEvent struct {
	Op     string // One of the Op constants
	TaskID int64  // Affected task, 0 for bulk operations
	Rows   int64  // Rows affected
}
