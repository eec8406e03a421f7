// Package taskio reads and writes the JSON document used by import and
// export. Documents are checked against a JSON Schema before any task is
// decoded, so a malformed file is rejected as a whole.
package taskio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/basket/tasktrack/internal/task"
	"github.com/basket/tasktrack/internal/worker"
)

const Version = 1

// Document is the on-disk form of an export.
type Document struct {
	Version    int         `json:"version"`
	ExportedAt string      `json:"exported_at,omitempty"`
	Tasks      []task.Task `json:"tasks"`
}

const schemaJSON = `{
  "type": "object",
  "required": ["version", "tasks"],
  "properties": {
    "version": {"const": 1},
    "exported_at": {"type": "string"},
    "tasks": {"type": "array", "items": {"$ref": "#/$defs/task"}}
  },
  "$defs": {
    "task": {
      "type": "object",
      "required": ["title"],
      "additionalProperties": false,
      "properties": {
        "id": {"type": "integer", "minimum": 0},
        "title": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "completed": {"type": "boolean"},
        "created_at": {"type": "integer", "minimum": 0},
        "due_date": {"type": "integer", "minimum": 0},
        "priority": {"type": "integer", "minimum": 0, "maximum": 2},
        "category": {"type": "string"}
      }
    }
  }
}`

var documentSchema = mustCompile(schemaJSON)

func mustCompile(src string) *jsonschema.Schema {
	// Use jsonschema.UnmarshalJSON for correct number handling (json.Number).
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(src)))
	if err != nil {
		panic(fmt.Sprintf("taskio: unmarshal schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tasks.schema.json", doc); err != nil {
		panic(fmt.Sprintf("taskio: add schema resource: %v", err))
	}
	s, err := c.Compile("tasks.schema.json")
	if err != nil {
		panic(fmt.Sprintf("taskio: compile schema: %v", err))
	}
	return s
}

// Encode writes tasks as an indented document stamped with now.
func Encode(w io.Writer, tasks []task.Task, now time.Time) error {
	if tasks == nil {
		tasks = []task.Task{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document{
		Version:    Version,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Tasks:      tasks,
	}); err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return nil
}

// Decode reads a document. Schema and field violations are reported as
// *task.ValidationError.
func Decode(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Document{}, &task.ValidationError{Field: "document", Message: fmt.Sprintf("invalid JSON: %s", err)}
	}
	if err := documentSchema.Validate(parsed); err != nil {
		return Document{}, &task.ValidationError{Field: "document", Message: fmt.Sprintf("schema validation failed: %s", err)}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	for i, t := range doc.Tasks {
		if err := task.Validate(t); err != nil {
			return Document{}, fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}
	return doc, nil
}

// Inserter is the write side import needs. *tracker.Tracker and *store.Store
// implement it.
type Inserter interface {
	InsertAll(ctx context.Context, tasks []task.Task) *worker.Future[[]int64]
}

// Import inserts every task of doc in one batch and returns the new ids.
// Unless keepIDs is set the document's ids are dropped and fresh ones
// assigned; with keepIDs a task replaces any existing task with its id.
func Import(ctx context.Context, ins Inserter, doc Document, keepIDs bool) ([]int64, error) {
	tasks := make([]task.Task, len(doc.Tasks))
	copy(tasks, doc.Tasks)
	if !keepIDs {
		for i := range tasks {
			tasks[i].ID = 0
		}
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return ins.InsertAll(ctx, tasks).Wait(ctx)
}
