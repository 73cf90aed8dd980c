// Package ratelimit bounds request volume per client over a fixed window.
// It gates the pipeline before any fingerprinting or provider work runs.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultLimit  = 20
)

// Decision is the outcome of an admission check. RetryAfter is only set on
// rejection so clients can distinguish "slow down" from downstream failures.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

type window struct {
	mu    sync.Mutex
	start time.Time
	count int
}

// Limiter keeps one fixed window per client key. Window records live in a
// TTL cache so idle clients are evicted without a hand-rolled sweep.
type Limiter struct {
	windows *gocache.Cache
	window  time.Duration
	limit   int

	mu sync.Mutex // guards window creation
}

func New(limit int, windowDur time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if windowDur <= 0 {
		windowDur = DefaultWindow
	}

	return &Limiter{
		windows: gocache.New(2*windowDur, 4*windowDur),
		window:  windowDur,
		limit:   limit,
	}
}

// Admit checks and counts one request for clientKey. Two requests arriving
// in the same instant cannot both be admitted past the limit: the window's
// mutex serializes the check-and-increment.
func (l *Limiter) Admit(clientKey string) Decision {
	w := l.getWindow(clientKey)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if now.Sub(w.start) >= l.window {
		w.start = now
		w.count = 0
		// Refresh the eviction TTL for clients that stay active.
		l.windows.SetDefault(clientKey, w)
	}

	if w.count >= l.limit {
		return Decision{
			Allowed:    false,
			RetryAfter: w.start.Add(l.window).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.limit - w.count,
	}
}

// Limit returns the configured per-window maximum.
func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) getWindow(clientKey string) *window {
	if v, ok := l.windows.Get(clientKey); ok {
		return v.(*window)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the creation lock.
	if v, ok := l.windows.Get(clientKey); ok {
		return v.(*window)
	}

	w := &window{start: time.Now()}
	l.windows.SetDefault(clientKey, w)
	return w
}
