// Package cursor persists the position reached in a feed so that a long feed
// is worked through across several bounded runs.
package cursor

import (
	"context"
	"fmt"
	"strconv"

	"realty-feed-sync/internal/state"
)

// Cursor is the stored offset of one feed source.
type Cursor struct {
	store  state.Store
	key    string
	offset int
}

// Load reads the offset stored at key. A missing or unreadable value is 0.
func Load(ctx context.Context, store state.Store, key string) (*Cursor, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}
	c := &Cursor{store: store, key: key}
	if ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.offset = n
		}
	}
	return c, nil
}

// Offset returns the stored offset.
func (c *Cursor) Offset() int {
	return c.offset
}

// NextBatch opens the window for this run. The offset restarts at 0 when the
// feed no longer reaches it.
func (c *Cursor) NextBatch(total, maxBatch int) *Window {
	start := c.offset
	if start >= total {
		start = 0
	}
	return &Window{Start: start, Total: total, MaxBatch: maxBatch}
}

// Commit persists the offset the next run starts from and returns it.
func (c *Cursor) Commit(ctx context.Context, w *Window) (int, error) {
	next := w.NextOffset()
	if err := c.store.Set(ctx, c.key, strconv.Itoa(next)); err != nil {
		return c.offset, fmt.Errorf("failed to commit cursor: %w", err)
	}
	c.offset = next
	return next, nil
}

// Window is the slice of the feed one run may look at. Inspected counts
// every record looked at, Succeeded only imports and updates.
type Window struct {
	Start     int
	Total     int
	MaxBatch  int
	Inspected int
	Succeeded int
}

// End is the exclusive upper bound of the window.
func (w *Window) End() int {
	end := w.Start + w.MaxBatch
	if end > w.Total {
		end = w.Total
	}
	return end
}

// Done reports whether the run has to stop before the next record.
func (w *Window) Done(successLimit int) bool {
	switch {
	case w.Start+w.Inspected >= w.Total:
		return true
	case w.Inspected >= w.MaxBatch:
		return true
	case successLimit > 0 && w.Succeeded >= successLimit:
		return true
	}
	return false
}

// NextOffset is start+inspected, wrapped to 0 at the end of the feed.
func (w *Window) NextOffset() int {
	next := w.Start + w.Inspected
	if next >= w.Total {
		return 0
	}
	return next
}
