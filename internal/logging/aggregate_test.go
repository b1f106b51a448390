package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

const sampleLog = `{"time":"2026-03-01T10:00:02Z","level":"WARN","msg":"status update rejected","mission_id":"42","component":"reconciler","from":"completed","to":"in_progress"}
{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"telemetry connected","mission_id":"42","session_id":"a1","component":"telemetry"}
not json at all
{"time":"2026-03-01T10:00:03Z","level":"ERROR","msg":"command failed","mission_id":"7","component":"gateway"}
`

func TestReadLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyctl.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	entries, err := ReadLogs(path, 0)
	if err != nil {
		t.Fatalf("ReadLogs failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Message != "telemetry connected" {
		t.Errorf("entries[0] = %q, want the earliest entry first", entries[0].Message)
	}
	if entries[1].Attrs["from"] != "completed" {
		t.Errorf("Attrs[from] = %v, want completed", entries[1].Attrs["from"])
	}
	if entries[0].SessionID != "a1" || entries[0].Component != "telemetry" {
		t.Errorf("context fields not parsed: %+v", entries[0])
	}
}

func TestReadLogs_IncludesCompressedBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyctl.log")
	if err := os.WriteFile(path, []byte(`{"time":"2026-03-01T11:00:00Z","level":"INFO","msg":"current"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".1", []byte(`{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"plain backup"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"time":"2026-03-01T09:00:00Z","level":"INFO","msg":"compressed backup"}` + "\n"))
	_ = zw.Close()
	if err := os.WriteFile(path+".2.gz", buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadLogs(path, 3)
	if err != nil {
		t.Fatalf("ReadLogs failed: %v", err)
	}
	var msgs []string
	for _, e := range entries {
		msgs = append(msgs, e.Message)
	}
	if got := strings.Join(msgs, ","); got != "compressed backup,plain backup,current" {
		t.Errorf("messages = %q", got)
	}
}

func TestReadLogs_Missing(t *testing.T) {
	if _, err := ReadLogs(filepath.Join(t.TempDir(), "nope.log"), 1); err == nil {
		t.Error("expected error for missing log file")
	}
}

func TestFilterLogs(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []LogEntry{
		{Timestamp: base, Level: LevelDebug, Message: "frame", MissionID: "42", Component: "telemetry"},
		{Timestamp: base.Add(time.Second), Level: LevelWarn, Message: "status update rejected", MissionID: "42", Component: "reconciler"},
		{Timestamp: base.Add(2 * time.Second), Level: LevelError, Message: "command failed", MissionID: "7", Component: "gateway"},
	}

	tests := []struct {
		name   string
		filter LogFilter
		want   int
	}{
		{"empty filter", LogFilter{}, 3},
		{"level warn", LogFilter{Level: "warn"}, 2},
		{"mission", LogFilter{MissionID: "42"}, 2},
		{"component", LogFilter{Component: "gateway"}, 1},
		{"since", LogFilter{Since: base.Add(time.Second)}, 2},
		{"message", LogFilter{MessageContains: "rejected"}, 1},
		{"combined", LogFilter{MissionID: "42", Level: LevelWarn}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(FilterLogs(entries, tt.filter)); got != tt.want {
				t.Errorf("len(FilterLogs) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteEntries(t *testing.T) {
	entries := []LogEntry{{
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Level:     LevelWarn,
		Message:   "status update rejected",
		MissionID: "42",
		Component: "reconciler",
	}}

	var text bytes.Buffer
	if err := WriteEntries(&text, entries, "text"); err != nil {
		t.Fatalf("WriteEntries(text) failed: %v", err)
	}
	want := "[2026-03-01 10:00:00.000] WARN reconciler - status update rejected (mission=42)\n"
	if text.String() != want {
		t.Errorf("text = %q, want %q", text.String(), want)
	}

	var js bytes.Buffer
	if err := WriteEntries(&js, entries, "json"); err != nil {
		t.Fatalf("WriteEntries(json) failed: %v", err)
	}
	if !strings.Contains(js.String(), `"mission_id":"42"`) {
		t.Errorf("json = %s", js.String())
	}

	if err := WriteEntries(&js, entries, "csv"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
