package ratelimit

import (
	"sync"
	"time"
)

type RateLimit interface {
	Allow(key string) bool
}

// Decision describes one admission check; it carries what the HTTP layer
// needs for X-RateLimit-* headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type windowData struct {
	count       int
	windowStart time.Time
}

// FixedWindowLimiter admits at most maxRequests per key in each window.
type FixedWindowLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string]*windowData
	mutex       sync.Mutex
	now         func() time.Time
}

func New(maxRequests int, window time.Duration) *FixedWindowLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindowLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string]*windowData),
		now:         time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (rl *FixedWindowLimiter) WithClock(now func() time.Time) *FixedWindowLimiter {
	rl.now = now
	return rl
}

func (rl *FixedWindowLimiter) Allow(key string) bool {
	return rl.Take(key).Allowed
}

func (rl *FixedWindowLimiter) Take(key string) Decision {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	wd := rl.requests[key]

	if wd == nil || now.Sub(wd.windowStart) >= rl.window {
		if rl.maxRequests == 0 {
			return Decision{Allowed: false, Limit: 0, Remaining: 0, ResetAt: now.Add(rl.window)}
		}
		wd = &windowData{count: 1, windowStart: now}
		rl.requests[key] = wd
		return rl.decision(wd, true)
	}

	if wd.count >= rl.maxRequests {
		return rl.decision(wd, false)
	}
	wd.count++
	return rl.decision(wd, true)
}

// Sweep drops windows that ended before now.
func (rl *FixedWindowLimiter) Sweep() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	removed := 0
	for key, wd := range rl.requests {
		if now.Sub(wd.windowStart) >= rl.window {
			delete(rl.requests, key)
			removed++
		}
	}
	return removed
}

func (rl *FixedWindowLimiter) decision(wd *windowData, allowed bool) Decision {
	remaining := rl.maxRequests - wd.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     rl.maxRequests,
		Remaining: remaining,
		ResetAt:   wd.windowStart.Add(rl.window),
	}
}
