package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPerMinute(t *testing.T) {
	rl := NewRateLimiter(2, 0)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("aspo") || !rl.Allow("aspo") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("aspo") {
		t.Error("third request in the same minute passed")
	}
	if !rl.Allow("flatprime") {
		t.Error("keys must not share windows")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("aspo") {
		t.Error("request after the minute window was refused")
	}
}

func TestAllowPerHour(t *testing.T) {
	rl := NewRateLimiter(0, 3)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("k") {
			t.Fatalf("request %d refused", i)
		}
		now = now.Add(5 * time.Minute)
	}
	if rl.Allow("k") {
		t.Error("fourth request within the hour passed")
	}
	stats := rl.GetStats("k")
	if stats.RequestsLastHour != 3 || stats.RemainingThisHour != 0 || stats.RemainingThisMinute != -1 {
		t.Errorf("got %+v", stats)
	}
}

func TestDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow("k") {
			t.Fatal("disabled limiter refused a request")
		}
	}
	if rl.GetStats("k").Enabled {
		t.Error("stats report enabled")
	}
}
