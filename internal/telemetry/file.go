package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/surveyctl/internal/errors"
)

// errStreamClosed is returned by Next once the stream has been closed.
var errStreamClosed = errors.New("stream closed")

// FileDialer replays frames from a JSON-lines file, one frame per line, and
// keeps following the file as lines are appended. Removing or renaming the
// file fails the stream.
type FileDialer struct {
	// PathTemplate is the file path with "{id}" standing for the mission id.
	PathTemplate string
	// Interval, when positive, paces delivery to one frame per interval.
	Interval time.Duration
}

// Path returns the file path for missionID.
func (d *FileDialer) Path(missionID string) string {
	return filepath.Clean(strings.ReplaceAll(d.PathTemplate, "{id}", missionID))
}

// Dial implements Dialer.
func (d *FileDialer) Dial(ctx context.Context, missionID string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.Path(missionID)

	// Watch the directory rather than the file so removals and renames are
	// reported reliably across platforms.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	file, err := os.Open(path)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("open replay file: %w", err)
	}

	return &fileStream{
		path:     path,
		file:     file,
		reader:   bufio.NewReader(file),
		watcher:  watcher,
		interval: d.Interval,
		closed:   make(chan struct{}),
	}, nil
}

type fileStream struct {
	path     string
	file     *os.File
	reader   *bufio.Reader
	watcher  *fsnotify.Watcher
	interval time.Duration

	partial   []byte
	delivered bool

	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fileStream) Next() ([]byte, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		s.partial = append(s.partial, line...)

		if err == nil {
			frame := bytes.TrimSpace(s.partial)
			s.partial = nil
			if len(frame) == 0 {
				continue
			}
			if err := s.pace(); err != nil {
				return nil, err
			}
			return frame, nil
		}
		if err != io.EOF {
			return nil, err
		}

		if err := s.waitForChange(); err != nil {
			return nil, err
		}
	}
}

// pace sleeps between frames when an interval is configured.
func (s *fileStream) pace() error {
	if s.interval <= 0 || !s.delivered {
		s.delivered = true
		return nil
	}
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.closed:
		return errStreamClosed
	}
}

// waitForChange blocks until the file may have grown.
func (s *fileStream) waitForChange() error {
	for {
		select {
		case <-s.closed:
			return errStreamClosed

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return errStreamClosed
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return fmt.Errorf("replay file %s was removed", s.path)
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return nil
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return errStreamClosed
			}
			return fmt.Errorf("watch replay file: %w", err)
		}
	}
}

func (s *fileStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.watcher.Close()
		err = s.file.Close()
	})
	return err
}
