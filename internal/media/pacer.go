package media

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces out downloads to the same host
type Pacer struct {
	baseDelay time.Duration // Minimum delay between requests to one host
	jitter    time.Duration // Random jitter added to the delay
	mutex     sync.Mutex
	last      map[string]time.Time
}

// NewPacer creates a pacer. A zero delay disables pacing.
func NewPacer(baseDelay, jitter time.Duration) *Pacer {
	return &Pacer{
		baseDelay: baseDelay,
		jitter:    jitter,
		last:      make(map[string]time.Time),
	}
}

// Wait blocks until a request to host may be made
func (p *Pacer) Wait(ctx context.Context, host string) error {
	if p == nil || p.baseDelay <= 0 {
		return nil
	}

	p.mutex.Lock()
	required := p.baseDelay
	if p.jitter > 0 {
		required += time.Duration(rand.Int63n(int64(p.jitter)))
	}
	var wait time.Duration
	if last, ok := p.last[host]; ok {
		if elapsed := time.Since(last); elapsed < required {
			wait = required - elapsed
		}
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	p.last[host] = time.Now().Add(wait)
	p.mutex.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
