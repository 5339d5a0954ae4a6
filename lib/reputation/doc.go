// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package reputation computes agent reputation from the vouch graph.
//
// The scorer is a pure function of the active vouch edges pointing at
// an agent. Each edge contributes its stated score weighted by three
// factors:
//
//   - a source multiplier derived from the voucher's own reputation,
//     so that endorsements from established agents count for more and
//     a swarm of fresh identities counts for little
//   - a flag discount that shrinks the contribution as community
//     flags accumulate against the vouch
//   - a reciprocity discount that halves both edges of a mutual
//     back-scratching pair created close together in time
//
// The package has no storage or clock dependencies. The ledger feeds
// it edges and caches the result; cmd/ethos-rebuild uses Rebuild to
// recompute the whole graph from scratch.
package reputation
