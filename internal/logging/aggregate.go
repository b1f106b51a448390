package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// LogEntry is one parsed line of a log file.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	SessionID string         `json:"session_id,omitempty"`
	MissionID string         `json:"mission_id,omitempty"`
	Component string         `json:"component,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero-valued fields match everything and
// set fields are combined with AND.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level           string
	Since           time.Time
	SessionID       string
	MissionID       string
	Component       string
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadLogs parses the log file at path together with its rotated backups
// (path.1, path.2.gz, ...) and returns the entries ordered by time.
// Lines that are not JSON are skipped.
func ReadLogs(path string, maxBackups int) ([]LogEntry, error) {
	entries, err := readLogFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file at %s: %w", path, err)
		}
		return nil, err
	}

	for i := 1; i <= maxBackups; i++ {
		backup := fmt.Sprintf("%s.%d", path, i)
		more, err := readLogFile(backup + ".gz")
		if os.IsNotExist(err) {
			more, err = readLogFile(backup)
		}
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, more...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed log %s: %w", path, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var entries []LogEntry
	scanner := bufio.NewScanner(r)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file %s: %w", path, err)
	}
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for k, v := range raw {
		s, _ := v.(string)
		switch k {
		case "time":
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				entry.Timestamp = t
			}
		case "level":
			entry.Level = s
		case "msg":
			entry.Message = s
		case "session_id":
			entry.SessionID = s
		case "mission_id":
			entry.MissionID = s
		case "component":
			entry.Component = s
		default:
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}
	var out []LogEntry
	for _, e := range entries {
		if matchesFilter(e, filter) {
			out = append(out, e)
		}
	}
	return out
}

func matchesFilter(e LogEntry, f LogFilter) bool {
	if f.Level != "" {
		want, okWant := levelOrder[strings.ToUpper(f.Level)]
		got, okGot := levelOrder[e.Level]
		if okWant && okGot && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.MissionID != "" && e.MissionID != f.MissionID {
		return false
	}
	if f.Component != "" && e.Component != f.Component {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(e.Message, f.MessageContains) {
		return false
	}
	return true
}

// WriteEntries renders entries to w as "json" (one object per line) or
// "text".
func WriteEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to write entry: %w", err)
			}
		}
		return nil
	case "text", "":
		for _, e := range entries {
			if _, err := io.WriteString(w, formatText(e)+"\n"); err != nil {
				return fmt.Errorf("failed to write entry: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, text)", format)
	}
}

// formatText renders "[TIME] LEVEL component - message (context) {attrs}".
func formatText(e LogEntry) string {
	parts := []string{
		fmt.Sprintf("[%s]", e.Timestamp.Format("2006-01-02 15:04:05.000")),
		e.Level,
	}
	if e.Component != "" {
		parts = append(parts, e.Component)
	}
	parts = append(parts, "-", e.Message)

	var ctx []string
	if e.MissionID != "" {
		ctx = append(ctx, "mission="+e.MissionID)
	}
	if e.SessionID != "" {
		ctx = append(ctx, "session="+e.SessionID)
	}
	if len(ctx) > 0 {
		parts = append(parts, "("+strings.Join(ctx, ", ")+")")
	}
	if len(e.Attrs) > 0 {
		if b, err := json.Marshal(e.Attrs); err == nil {
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, " ")
}
