package task

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by one-shot reads of a missing id. Updates and
	// deletes of a missing id are no-ops that report zero affected rows.
	ErrNotFound = errors.New("task not found")

	// ErrStorageUnavailable wraps any failure of the persistence collaborator.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError describes a task rejected at the input boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid task: " + e.Message
	}
	return fmt.Sprintf("invalid task: %s: %s", e.Field, e.Message)
}

// Unavailable wraps err so that errors.Is(err, ErrStorageUnavailable) holds
// while the original cause stays reachable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// Validate checks the invariants the store relies on.
func Validate(t Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("%d out of range 0-2", t.Priority)}
	}
	if t.DueDate < 0 {
		return &ValidationError{Field: "due_date", Message: "must not be negative"}
	}
	if t.CreatedAt < 0 {
		return &ValidationError{Field: "created_at", Message: "must not be negative"}
	}
	if t.ID < 0 {
		return &ValidationError{Field: "id", Message: "must not be negative"}
	}
	return nil
}
