// v1
// internal/logging/logger.go
package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const fileName = "ventilation.log"

// Init builds the service logger: text records on stdout and JSON records appended to
// <dir>/ventilation.log. The returned closer releases the file; it is a no-op when the
// file could not be opened and the logger fell back to stdout.
func Init(dir, level string) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	console := slog.NewTextHandler(os.Stdout, opts)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		lg := slog.New(console)
		lg.Error("log_dir_create_failed", "dir", dir, "error", err)
		return lg, io.NopCloser(nil)
	}
	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		lg := slog.New(console)
		lg.Error("log_file_open_failed", "dir", dir, "error", err)
		return lg, io.NopCloser(nil)
	}
	lg := slog.New(NewTee(console, slog.NewJSONHandler(f, opts)))
	// stdlib log users (paho, gorm) land in the same places
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return lg, f
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

type teeHandler struct {
	handlers []slog.Handler
}

// NewTee fans every record out to all handlers.
func NewTee(handlers ...slog.Handler) slog.Handler {
	return &teeHandler{handlers: handlers}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		next = append(next, h.WithAttrs(attrs))
	}
	return &teeHandler{handlers: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		next = append(next, h.WithGroup(name))
	}
	return &teeHandler{handlers: next}
}
