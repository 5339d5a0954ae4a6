// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit implements a per-key sliding-window rate limiter.
//
// Each key (an API key id, or a remote address for unauthenticated
// requests) gets an independent window. A request is allowed if fewer
// than the configured number of requests landed within the window
// ending now; otherwise RetryAfter reports how long until the oldest
// request ages out.
//
// The limiter reads time from an injected clock, so tests drive it
// deterministically with a fake.
package ratelimit
