package shared

import (
	"context"

	"github.com/google/uuid"
)

type opIDKey struct{}

// WithOpID attaches an operation id to the context. Every store mutation and
// every CLI command carries one so related log lines can be grouped.
func WithOpID(ctx context.Context, opID string) context.Context {
	return context.WithValue(ctx, opIDKey{}, opID)
}

// OpID extracts the operation id from context. Returns "-" if absent.
func OpID(ctx context.Context) string {
	if v, ok := ctx.Value(opIDKey{}).(string); ok && v != "" {
		return v
	}
	return "-"
}

// NewOpID generates a new operation id.
func NewOpID() string {
	return uuid.NewString()
}

// EnsureOpID returns ctx unchanged when it already carries an operation id,
// otherwise a child context with a fresh one.
func EnsureOpID(ctx context.Context) (context.Context, string) {
	if v, ok := ctx.Value(opIDKey{}).(string); ok && v != "" {
		return ctx, v
	}
	id := NewOpID()
	return WithOpID(ctx, id), id
}
