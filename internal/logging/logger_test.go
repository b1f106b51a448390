package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readEntries(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line is not valid JSON: %v: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state", "surveyctl.log")

		logger, err := NewLogger(path, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", path)
		}
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.out.writer != nil {
			t.Error("expected no owned writer when path is empty")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
	})
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	entries := readEntries(t, buf.Bytes())
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}

	wantLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, entry := range entries {
		if entry["level"] != wantLevels[i] {
			t.Errorf("line %d: level = %v, want %s", i, entry["level"], wantLevels[i])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: key = %v, want value", i, entry["key"])
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	if entries := readEntries(t, buf.Bytes()); len(entries) != 2 {
		t.Fatalf("expected 2 log lines (WARN and ERROR only), got %d: %s", len(entries), buf.String())
	}
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo)

	child := logger.WithSession("3f1c").WithMission("42").WithComponent("reconciler")
	child.Info("status applied", "status", "paused")

	entries := readEntries(t, buf.Bytes())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	want := map[string]string{
		"session_id": "3f1c",
		"mission_id": "42",
		"component":  "reconciler",
		"status":     "paused",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %s", k, entry[k], v)
		}
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo)

	if logger.With() != logger {
		t.Error("With() without args should return the same logger")
	}

	logger.With("attempt", 3, 42, "ignored").Info("reconnecting")

	entry := readEntries(t, buf.Bytes())[0]
	if entry["attempt"] != float64(3) {
		t.Errorf("attempt = %v, want 3", entry["attempt"])
	}
}

func TestChildDoesNotLeakAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo)

	_ = logger.WithMission("42")
	logger.Info("parent")

	entry := readEntries(t, buf.Bytes())[0]
	if _, ok := entry["mission_id"]; ok {
		t.Error("parent logger should not carry child attributes")
	}
}

func TestCloseSharedByChildren(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyctl.log")
	logger, err := NewLogger(path, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithComponent("gateway")
	child.Info("before close")

	if err := child.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "before close") {
		t.Errorf("log file missing entry: %s", content)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidLevels(t *testing.T) {
	if got := len(ValidLevels()); got != 4 {
		t.Errorf("len(ValidLevels()) = %d, want 4", got)
	}
}
