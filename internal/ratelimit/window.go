// Package ratelimit bounds how often one client may create orders.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrRateLimited = errors.New("rate limited")

const (
	DefaultMax    = 6
	DefaultWindow = time.Minute
)

type Limiter interface {
	Admit(ctx context.Context, clientID string) error
}

// Window is an in-process sliding window log. Each check prunes entries
// older than the window, counts what is left and records the attempt only
// if it is admitted.
type Window struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time

	checks     int
	sweepEvery int
}

type Option func(*Window)

func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

func NewWindow(max int, window time.Duration, opts ...Option) *Window {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	w := &Window{
		max:        max,
		window:     window,
		now:        time.Now,
		hits:       make(map[string][]time.Time),
		sweepEvery: 1024,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Window) Admit(_ context.Context, clientID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	w.checks++
	if w.checks%w.sweepEvery == 0 {
		w.sweep(cutoff)
	}

	kept := prune(w.hits[clientID], cutoff)
	if len(kept) >= w.max {
		w.hits[clientID] = kept
		return ErrRateLimited
	}
	w.hits[clientID] = append(kept, now)
	return nil
}

// sweep drops identifiers whose whole window has expired, so clients that
// never come back do not pin memory.
func (w *Window) sweep(cutoff time.Time) {
	for id, ts := range w.hits {
		if kept := prune(ts, cutoff); len(kept) == 0 {
			delete(w.hits, id)
		} else {
			w.hits[id] = kept
		}
	}
}

func (w *Window) tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

// prune keeps timestamps strictly newer than cutoff. ts is ordered.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
