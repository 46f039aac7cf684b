package cursor

import (
	"context"
	"testing"

	"realty-feed-sync/internal/state"
)

func TestNextBatch(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		total     int
		wantStart int
		wantEnd   int
	}{
		{"fresh", "", 250, 0, 100},
		{"resume", "120", 250, 120, 220},
		{"tail", "200", 250, 200, 250},
		{"feed shrank", "300", 250, 0, 100},
		{"exactly total", "250", 250, 0, 100},
		{"garbage", "abc", 250, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := state.NewMemoryStore()
			if tt.stored != "" {
				_ = s.Set(ctx, "offset:x", tt.stored)
			}
			c, err := Load(ctx, s, "offset:x")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			w := c.NextBatch(tt.total, 100)
			if w.Start != tt.wantStart || w.End() != tt.wantEnd {
				t.Errorf("got [%d,%d); want [%d,%d)", w.Start, w.End(), tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestCommitWraps(t *testing.T) {
	tests := []struct {
		start, inspected, total int
		want                    int
	}{
		{0, 100, 250, 100},
		{200, 49, 250, 249},
		{200, 50, 250, 0},
		{0, 10, 10, 0},
		{40, 0, 50, 40},
	}

	for _, tt := range tests {
		ctx := context.Background()
		s := state.NewMemoryStore()
		c, _ := Load(ctx, s, "offset:x")
		w := &Window{Start: tt.start, Total: tt.total, MaxBatch: 100, Inspected: tt.inspected}

		got, err := c.Commit(ctx, w)
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if got != tt.want {
			t.Errorf("start=%d inspected=%d total=%d: got %d; want %d", tt.start, tt.inspected, tt.total, got, tt.want)
		}
		reloaded, _ := Load(ctx, s, "offset:x")
		if reloaded.Offset() != tt.want {
			t.Errorf("persisted %d; want %d", reloaded.Offset(), tt.want)
		}
	}
}

func TestWindowDone(t *testing.T) {
	w := &Window{Start: 0, Total: 500, MaxBatch: 100}

	w.Inspected, w.Succeeded = 99, 19
	if w.Done(20) {
		t.Error("done before any cap was reached")
	}
	w.Succeeded = 20
	if !w.Done(20) {
		t.Error("success cap did not stop the run")
	}
	w.Succeeded = 0
	w.Inspected = 100
	if !w.Done(20) {
		t.Error("inspected cap did not stop the run")
	}

	tail := &Window{Start: 495, Total: 500, MaxBatch: 100, Inspected: 5}
	if !tail.Done(20) {
		t.Error("end of feed did not stop the run")
	}
}
