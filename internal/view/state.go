// Package view merges the filter selection, the search text and the store's
// live queries into the single visible task list.
package view

import (
	"fmt"

	"github.com/basket/tasktrack/internal/task"
)

// FilterState is the pair of user inputs the visible list depends on.
type FilterState struct {
	Filter task.Filter
	Search string
}

// Searching reports whether search mode is on. Search mode overrides the
// filter entirely.
func (s FilterState) Searching() bool {
	return s.Search != ""
}

// Mode names the source that currently decides the visible list: "search" or
// the filter name.
func (s FilterState) Mode() string {
	if s.Searching() {
		return "search"
	}
	return s.Filter.String()
}

func (s FilterState) String() string {
	if s.Searching() {
		return fmt.Sprintf("search %q", s.Search)
	}
	return "filter " + s.Filter.String()
}
