// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"testing"
	"time"

	"github.com/agent-ethos/ethos/lib/clock"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *clock.FakeClock) {
	fakeClock := clock.Fake(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	return New(fakeClock, limit, window), fakeClock
}

func TestAllowUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("alice") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if limiter.Allow("alice") {
		t.Error("request over limit allowed")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	if !limiter.Allow("alice") {
		t.Fatal("alice's first request denied")
	}
	if !limiter.Allow("bob") {
		t.Error("bob denied because of alice's traffic")
	}
}

func TestWindowSlides(t *testing.T) {
	limiter, fakeClock := newTestLimiter(2, time.Minute)

	if !limiter.Allow("alice") || !limiter.Allow("alice") {
		t.Fatal("initial requests denied")
	}
	if limiter.Allow("alice") {
		t.Fatal("third request allowed")
	}

	// Half a window later, still full.
	fakeClock.Advance(30 * time.Second)
	if limiter.Allow("alice") {
		t.Error("request allowed mid-window")
	}

	// Once the first request ages out there is room for exactly one.
	fakeClock.Advance(31 * time.Second)
	if !limiter.Allow("alice") {
		t.Error("request denied after window slid")
	}
	if limiter.Allow("alice") {
		t.Error("second request allowed when only one slot freed")
	}
}

func TestDeniedRequestsDoNotExtendTheWindow(t *testing.T) {
	limiter, fakeClock := newTestLimiter(1, time.Minute)

	if !limiter.Allow("alice") {
		t.Fatal("first request denied")
	}

	// Hammering while denied must not delay recovery.
	for i := 0; i < 10; i++ {
		fakeClock.Advance(5 * time.Second)
		limiter.Allow("alice")
	}
	fakeClock.Advance(11 * time.Second) // 61s after the allowed request
	if !limiter.Allow("alice") {
		t.Error("recovery delayed by denied requests")
	}
}

func TestRetryAfter(t *testing.T) {
	limiter, fakeClock := newTestLimiter(1, time.Minute)

	if got := limiter.RetryAfter("alice"); got != 0 {
		t.Errorf("RetryAfter before any traffic = %v, want 0", got)
	}

	limiter.Allow("alice")
	if got := limiter.RetryAfter("alice"); got != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", got)
	}

	fakeClock.Advance(40 * time.Second)
	if got := limiter.RetryAfter("alice"); got != 20*time.Second {
		t.Errorf("RetryAfter = %v, want 20s", got)
	}

	fakeClock.Advance(21 * time.Second)
	if got := limiter.RetryAfter("alice"); got != 0 {
		t.Errorf("RetryAfter after expiry = %v, want 0", got)
	}
}

func TestPurgeIdleDropsEmptyBuckets(t *testing.T) {
	limiter, fakeClock := newTestLimiter(5, time.Minute)

	limiter.Allow("alice")
	limiter.Allow("bob")

	fakeClock.Advance(2 * time.Minute)
	limiter.purgeIdle()

	limiter.mu.Lock()
	buckets := len(limiter.events)
	limiter.mu.Unlock()
	if buckets != 0 {
		t.Errorf("%d buckets after purge, want 0", buckets)
	}

	// Purged keys start fresh.
	if !limiter.Allow("alice") {
		t.Error("alice denied after purge")
	}
}
