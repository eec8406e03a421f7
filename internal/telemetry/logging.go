// Package telemetry builds the process logger.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/basket/tasktrack/internal/shared"
)

const LogFileName = "tasktrack.jsonl"

// NewLogger writes JSON lines to <homeDir>/logs/tasktrack.jsonl and, unless
// quiet, to stderr. level is read on every record, so passing a *slog.LevelVar
// lets the caller change verbosity at runtime.
func NewLogger(homeDir string, level slog.Leveler, quiet bool) (*slog.Logger, io.Closer, error) {
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, err
	}

	logFilePath := filepath.Join(logDir, LogFileName)
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer
	if quiet {
		w = file
	} else {
		w = io.MultiWriter(os.Stderr, file)
	}
	return slog.New(NewHandler(w, level)).With("component", "tasktrack"), file, nil
}

// NewHandler returns the JSON handler used by NewLogger: "timestamp" instead
// of "time", secrets redacted, and the operation id from the record's context.
func NewHandler(w io.Writer, level slog.Leveler) slog.Handler {
	json := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			if shouldRedactKey(a.Key) {
				return slog.String(a.Key, "[REDACTED]")
			}
			if a.Value.Kind() == slog.KindString {
				if redacted, ok := redactStringValue(a.Value.String()); ok {
					return slog.String(a.Key, redacted)
				}
			}
			return a
		},
	})
	return &opIDHandler{Handler: json}
}

// opIDHandler adds op_id to every record from the context passed to the
// *Context logging methods.
type opIDHandler struct {
	slog.Handler
}

func (h *opIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		r.AddAttrs(slog.String("op_id", shared.OpID(ctx)))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *opIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &opIDHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *opIDHandler) WithGroup(name string) slog.Handler {
	return &opIDHandler{Handler: h.Handler.WithGroup(name)}
}

func shouldRedactKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	sensitiveTokens := []string{"token", "secret", "password", "authorization", "api_key", "apikey", "bearer"}
	for _, token := range sensitiveTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func redactStringValue(v string) (string, bool) {
	lower := strings.ToLower(v)
	if strings.Contains(lower, "authorization:") {
		return "[REDACTED]", true
	}
	redacted := shared.Redact(v)
	if redacted != v {
		return redacted, true
	}
	return v, false
}

// ParseLevel maps a config level name to a slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
