package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		" Debug ": slog.LevelDebug,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{Level: "info", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", String("key", "value"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("expected JSON record in %q", string(data))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConsoleHandlerIncludesComponent(t *testing.T) {
	var buf strings.Builder
	levelVar := new(slog.LevelVar)
	logger := slog.New(&consoleHandler{writer: writerFunc(func(p []byte) (int, error) {
		buf.Write(p)
		return len(p), nil
	}), level: levelVar})

	NewComponentLogger(logger, "auth").Info("captcha submitted", Int("attempt", 2))

	line := buf.String()
	if !strings.Contains(line, "auth") || !strings.Contains(line, "attempt=2") {
		t.Errorf("unexpected console line %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	// Must not panic and must report disabled at every level.
	logger := NewNop()
	logger.Error("ignored")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("noop logger should be disabled")
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
