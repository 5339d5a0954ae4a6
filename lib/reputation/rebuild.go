// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package reputation

import "time"

// DefaultRebuildPasses is the number of fixed-point iterations Rebuild
// runs when the caller passes zero. Source multipliers depend on
// voucher reputations, which depend on their own incoming edges, so a
// single pass from zero undercounts chains of endorsement. The clamp
// on the multiplier makes the iteration contractive in practice; five
// passes is enough for the deep chains seen in real graphs.
const DefaultRebuildPasses = 5

// GraphEdge is one active vouch in the full graph, identified by
// voucher and target.
type GraphEdge struct {
	From, To  int64
	Score     int
	Flags     int
	CreatedAt time.Time
}

// Rebuild recomputes every agent's reputation from scratch. It starts
// all reputations at zero and runs a fixed number of passes; each pass
// rescores every agent using the voucher reputations from the previous
// pass. claimed marks agents with a verified claim. edges must contain
// only active vouches (at most one per ordered pair). The result maps
// agent id to reputation; agents with no incoming edges map to zero.
func Rebuild(p Params, claimed map[int64]bool, edges []GraphEdge, passes int) map[int64]float64 {
	if passes <= 0 {
		passes = DefaultRebuildPasses
	}

	// Index the reverse direction once; it does not change between
	// passes.
	type pair struct{ from, to int64 }
	reverse := make(map[pair]GraphEdge, len(edges))
	for _, e := range edges {
		reverse[pair{e.From, e.To}] = e
	}

	incoming := make(map[int64][]GraphEdge)
	for _, e := range edges {
		incoming[e.To] = append(incoming[e.To], e)
	}

	rep := make(map[int64]float64, len(incoming))
	for pass := 0; pass < passes; pass++ {
		next := make(map[int64]float64, len(incoming))
		for to, in := range incoming {
			scored := make([]Edge, 0, len(in))
			for _, ge := range in {
				edge := Edge{
					Score:             ge.Score,
					VoucherReputation: rep[ge.From],
					VoucherClaimed:    claimed[ge.From],
					Flags:             ge.Flags,
					CreatedAt:         ge.CreatedAt,
				}
				if rev, ok := reverse[pair{ge.To, ge.From}]; ok {
					edge.HasReverse = true
					edge.ReverseScore = rev.Score
					edge.ReverseCreatedAt = rev.CreatedAt
				}
				scored = append(scored, edge)
			}
			next[to] = p.Aggregate(scored)
		}
		rep = next
	}
	return rep
}
