// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/agent-ethos/ethos/lib/clock"
)

// Limiter is a sliding-window rate limiter keyed by string. Safe for
// concurrent use.
type Limiter struct {
	clock  clock.Clock
	limit  int
	window time.Duration

	mu     sync.Mutex
	events map[string][]time.Time
}

// New creates a limiter allowing limit requests per window per key.
func New(clk clock.Clock, limit int, window time.Duration) *Limiter {
	return &Limiter{
		clock:  clk,
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow records a request for key and reports whether it is within the
// limit. Denied requests are not recorded; a client hammering the
// endpoint does not push its own recovery further away.
func (l *Limiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.pruneLocked(key, now)
	if len(recent) >= l.limit {
		return false
	}
	l.events[key] = append(recent, now)
	return true
}

// RetryAfter returns how long until a denied key has room again. Zero
// means the key is not currently limited.
func (l *Limiter) RetryAfter(key string) time.Duration {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.pruneLocked(key, now)
	l.events[key] = recent
	if len(recent) < l.limit {
		return 0
	}
	return recent[0].Add(l.window).Sub(now)
}

// Run purges idle keys on a ticker until ctx is cancelled. Without it
// the limiter still works, but long-lived processes would accumulate
// one empty bucket per client ever seen.
func (l *Limiter) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.purgeIdle()
		}
	}
}

func (l *Limiter) purgeIdle() {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.events {
		if len(l.pruneLocked(key, now)) == 0 {
			delete(l.events, key)
		}
	}
}

// pruneLocked returns key's events still inside the window ending at
// now. Caller holds l.mu.
func (l *Limiter) pruneLocked(key string, now time.Time) []time.Time {
	events := l.events[key]
	cutoff := now.Add(-l.window)
	start := 0
	for start < len(events) && !events[start].After(cutoff) {
		start++
	}
	return events[start:]
}
