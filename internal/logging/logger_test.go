// v0
// internal/logging/logger_test.go
package logging

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTeeWritesToAllHandlers(t *testing.T) {
	var a, b bytes.Buffer
	lg := slog.New(NewTee(
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)).With("component", "test")

	lg.Info("reading_processed", "mode", "NORMAL")
	lg.Warn("store_write_failed", "error", "disk full")

	if !strings.Contains(a.String(), "reading_processed") || !strings.Contains(a.String(), "store_write_failed") {
		t.Fatalf("text handler output: %s", a.String())
	}
	if strings.Contains(b.String(), "reading_processed") {
		t.Fatalf("warn-level handler received info record: %s", b.String())
	}
	if !strings.Contains(b.String(), `"component":"test"`) {
		t.Fatalf("attrs not propagated: %s", b.String())
	}
}

func TestInitCreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	lg, closer := Init(dir, "debug")
	defer log.SetOutput(os.Stderr)
	lg.Debug("boot", "k", 1)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"boot"`) {
		t.Fatalf("log file content: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"DEBUG": slog.LevelDebug, "warn": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v", in, got)
		}
	}
}
