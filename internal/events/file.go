package events

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	// DefaultDir is the log directory used when none is configured.
	DefaultDir = "logs"

	stampLayout = "2006-01-02_15-04-05"
	dayLayout   = "2006-01-02"
)

// FileSink appends events to one text file per day, named
// log_YYYY-MM-DD.txt, each line formatted as "[YYYY-MM-DD_HH-MM-SS] message".
type FileSink struct {
	dir string
	fs  afero.Fs
	now func() time.Time
	mu  sync.Mutex
}

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithFileFs makes the sink write through fsys instead of the OS filesystem.
func WithFileFs(fsys afero.Fs) FileOption {
	return func(s *FileSink) {
		s.fs = fsys
	}
}

// WithFileClock sets the clock Today uses to pick the current file.
func WithFileClock(now func() time.Time) FileOption {
	return func(s *FileSink) {
		s.now = now
	}
}

// NewFileSink creates a sink writing below dir. The directory is created on
// first write.
func NewFileSink(dir string, opts ...FileOption) *FileSink {
	if dir == "" {
		dir = DefaultDir
	}
	s := &FileSink{dir: filepath.Clean(dir), fs: afero.NewOsFs(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the log directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// PathFor returns the log file that holds events of day t.
func (s *FileSink) PathFor(t time.Time) string {
	return filepath.Join(s.dir, "log_"+t.Format(dayLayout)+".txt")
}

// Format renders e the way it is written to the log file, without newline.
func Format(e Event) string {
	return fmt.Sprintf("[%s] %s", e.Time.Format(stampLayout), e.Message)
}

func (s *FileSink) Record(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	name := s.PathFor(e.Time)
	f, err := s.fs.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	if _, err := f.WriteString(Format(e) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write event log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close event log: %w", err)
	}
	return nil
}

// Today returns the content of the current day's log, or "" when nothing
// has been recorded today.
func (s *FileSink) Today() (string, error) {
	data, err := afero.ReadFile(s.fs, s.PathFor(s.now()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read event log: %w", err)
	}
	return string(data), nil
}
