// Package logging writes run logs as "[2006-01-02 15:04:05] message" lines.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Logger appends timestamped lines to a per-source file and mirrors them to stdout.
type Logger struct {
	out  *log.Logger
	file *os.File
	now  func() time.Time
	mu   sync.Mutex
}

// Open creates the log file's directory if needed and opens the file for appending.
func Open(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := New(io.MultiWriter(f, os.Stdout))
	l.file = f
	return l, nil
}

// New returns a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{
		out: log.New(w, "", 0),
		now: time.Now,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard)
}

// Printf writes one line.
func (l *Logger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("[%s] %s", l.now().Format(timeLayout), fmt.Sprintf(format, args...))
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
