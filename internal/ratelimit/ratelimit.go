// Package ratelimit bounds how often manual jobs can be triggered.
package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter tracks sliding minute and hour windows per key
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	enabled           bool

	windows map[string]*window
	now     func() time.Time
	mu      sync.Mutex
}

type window struct {
	minute []time.Time
	hour   []time.Time
}

// NewRateLimiter creates a new rate limiter with the given limits.
// A non-positive limit leaves that window unbounded.
func NewRateLimiter(requestsPerMinute, requestsPerHour int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		enabled:           requestsPerMinute > 0 || requestsPerHour > 0,
		windows:           make(map[string]*window),
		now:               time.Now,
	}
}

// Allow checks if a request for key is allowed and records it if so
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.window(key, now)

	// Check limits
	if rl.requestsPerMinute > 0 && len(w.minute) >= rl.requestsPerMinute {
		return false
	}
	if rl.requestsPerHour > 0 && len(w.hour) >= rl.requestsPerHour {
		return false
	}

	// Record the request
	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)

	return true
}

// window returns the windows of key with expired entries removed
func (rl *RateLimiter) window(key string, now time.Time) *window {
	w, ok := rl.windows[key]
	if !ok {
		w = &window{}
		rl.windows[key] = w
	}
	w.minute = filterTimes(w.minute, now.Add(-time.Minute))
	w.hour = filterTimes(w.hour, now.Add(-time.Hour))
	return w
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// GetStats returns current statistics for key
func (rl *RateLimiter) GetStats(key string) Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.window(key, rl.now())

	return Stats{
		Enabled:             true,
		RequestsLastMinute:  len(w.minute),
		RequestsLastHour:    len(w.hour),
		LimitPerMinute:      rl.requestsPerMinute,
		LimitPerHour:        rl.requestsPerHour,
		RemainingThisMinute: remaining(rl.requestsPerMinute, len(w.minute)),
		RemainingThisHour:   remaining(rl.requestsPerHour, len(w.hour)),
	}
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled             bool `json:"enabled"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
}

// Reset clears all tracked requests
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.windows = make(map[string]*window)
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return -1
	}
	return max(0, limit-used)
}
