package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type nextResult struct {
	data []byte
	err  error
}

// nextAsync runs Next in the background so tests can bound the wait.
func nextAsync(s Stream) <-chan nextResult {
	ch := make(chan nextResult, 1)
	go func() {
		data, err := s.Next()
		ch <- nextResult{data, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan nextResult) nextResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nextResult{}
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()
}

func TestFileDialer_ReplaysAndFollows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mission-42.jsonl")
	initial := `{"type":"mission_progress_update","percent_complete":10}` + "\n\n" +
		`{"type":"mission_status_update","status":"paused"}` + "\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatal(err)
	}

	d := &FileDialer{PathTemplate: filepath.Join(dir, "mission-{id}.jsonl")}
	if got := d.Path("42"); got != path {
		t.Fatalf("Path() = %q, want %q", got, path)
	}

	stream, err := d.Dial(context.Background(), "42")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer stream.Close()

	for _, want := range []string{
		`{"type":"mission_progress_update","percent_complete":10}`,
		`{"type":"mission_status_update","status":"paused"}`,
	} {
		r := await(t, nextAsync(stream))
		if r.err != nil {
			t.Fatalf("Next failed: %v", r.err)
		}
		if string(r.data) != want {
			t.Errorf("Next() = %s, want %s", r.data, want)
		}
	}

	pending := nextAsync(stream)
	appendFile(t, path, `{"type":"mission_status_`)
	appendFile(t, path, `update","status":"in_progress"}`+"\n")

	r := await(t, pending)
	if r.err != nil {
		t.Fatalf("Next failed: %v", r.err)
	}
	if string(r.data) != `{"type":"mission_status_update","status":"in_progress"}` {
		t.Errorf("Next() = %s, want the appended frame joined across writes", r.data)
	}
}

func TestFileDialer_RemovalFailsStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	stream, err := (&FileDialer{PathTemplate: path}).Dial(context.Background(), "42")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer stream.Close()

	pending := nextAsync(stream)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if r := await(t, pending); r.err == nil {
		t.Error("expected error after the file was removed")
	}
}

func TestFileDialer_CloseUnblocksNext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	stream, err := (&FileDialer{PathTemplate: path}).Dial(context.Background(), "42")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	pending := nextAsync(stream)
	_ = stream.Close()

	if r := await(t, pending); r.err == nil {
		t.Error("expected error after Close")
	}
}

func TestFileDialer_MissingFile(t *testing.T) {
	d := &FileDialer{PathTemplate: filepath.Join(t.TempDir(), "missing.jsonl")}
	if _, err := d.Dial(context.Background(), "42"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileDialer_Interval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	if err := os.WriteFile(path, []byte("{\"a\":1}\n{\"a\":2}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	stream, err := (&FileDialer{PathTemplate: path, Interval: 50 * time.Millisecond}).Dial(context.Background(), "42")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer stream.Close()

	start := time.Now()
	await(t, nextAsync(stream))
	await(t, nextAsync(stream))
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("second frame arrived after %v, want at least one interval", elapsed)
	}
}
