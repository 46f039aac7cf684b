package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPrintfFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.now = func() time.Time { return time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC) }

	l.Printf("[%s] Start from offset %d / %d", "CRON", 40, 120)

	want := "[2024-03-05 07:08:09] [CRON] Start from offset 40 / 120\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q; want %q", got, want)
	}
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "aspo.log")

	for i := 0; i < 2; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		l.Printf("line %d", i)
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines; want 2", len(lines))
	}
	if !strings.HasSuffix(lines[1], "] line 1") {
		t.Errorf("got %q; want suffix %q", lines[1], "] line 1")
	}
}
