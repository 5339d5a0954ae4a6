// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package reputation

import (
	"time"
)

// MaxReputation bounds the aggregate score in both directions. The
// clamp keeps a pathological graph from overflowing into territory
// where float comparison stops being meaningful.
const MaxReputation = 1e6

// Params are the scoring knobs. Use DefaultParams unless running a
// closed experiment; the defaults define the standard Ethos curve.
type Params struct {
	// MultiplierFloor is the minimum source multiplier. Fresh
	// identities with zero (or negative) reputation still contribute
	// this fraction of their stated score.
	MultiplierFloor float64

	// MultiplierCap bounds the source multiplier above, no matter how
	// established the voucher is.
	MultiplierCap float64

	// ReputationScale divides the voucher's reputation:
	// multiplier = MultiplierFloor + reputation/ReputationScale.
	ReputationScale float64

	// ClaimedBonus multiplies the source multiplier, before the cap,
	// when the voucher has a verified claim.
	ClaimedBonus float64

	// FlagPenalty is the per-flag discount: a vouch with n flags
	// contributes a factor of max(0, 1 - FlagPenalty*n).
	FlagPenalty float64

	// ReciprocityWindow is the maximum time between the two edges of
	// a mutual pair for the reciprocity discount to apply.
	ReciprocityWindow time.Duration

	// ReciprocityFactor multiplies an edge that is part of a detected
	// mutual pair.
	ReciprocityFactor float64

	// ReciprocityMinScore gates the discount: both edges of the pair
	// must score at least this much. Mild mutual vouches are normal
	// social behavior, not collusion.
	ReciprocityMinScore int
}

// DefaultParams returns the standard Ethos scoring curve.
func DefaultParams() Params {
	return Params{
		MultiplierFloor:     0.2,
		MultiplierCap:       2.0,
		ReputationScale:     25,
		ClaimedBonus:        1.25,
		FlagPenalty:         0.5,
		ReciprocityWindow:   48 * time.Hour,
		ReciprocityFactor:   0.5,
		ReciprocityMinScore: 3,
	}
}

// Edge is one active vouch pointing at the agent being scored,
// annotated with everything the scorer needs about its voucher and
// about the reverse direction.
type Edge struct {
	// Score is the vouch's stated score, -5..+5 and never zero.
	Score int

	// VoucherReputation is the voucher's cached reputation at scoring
	// time.
	VoucherReputation float64

	// VoucherClaimed reports whether the voucher has a verified claim.
	VoucherClaimed bool

	// Flags is the number of distinct community flags against the
	// vouch.
	Flags int

	// CreatedAt is when the vouch was created.
	CreatedAt time.Time

	// HasReverse reports whether the target has an active vouch back
	// at the voucher. When true, ReverseScore and ReverseCreatedAt
	// describe that edge.
	HasReverse       bool
	ReverseScore     int
	ReverseCreatedAt time.Time
}

// SourceMultiplier returns the weight of a voucher's endorsement given
// its cached reputation and claim status. The result is in
// [MultiplierFloor, MultiplierCap].
func (p Params) SourceMultiplier(voucherReputation float64, claimed bool) float64 {
	m := p.MultiplierFloor + voucherReputation/p.ReputationScale
	if claimed {
		m *= p.ClaimedBonus
	}
	if m < p.MultiplierFloor {
		m = p.MultiplierFloor
	}
	if m > p.MultiplierCap {
		m = p.MultiplierCap
	}
	return m
}

// Contribution returns the edge's contribution to its target's
// reputation: score, weighted by the source multiplier, then
// discounted for flags and reciprocity.
func (p Params) Contribution(e Edge) float64 {
	c := float64(e.Score) * p.SourceMultiplier(e.VoucherReputation, e.VoucherClaimed)

	flagDiscount := 1 - p.FlagPenalty*float64(e.Flags)
	if flagDiscount < 0 {
		flagDiscount = 0
	}
	c *= flagDiscount

	if p.reciprocal(e) {
		c *= p.ReciprocityFactor
	}
	return c
}

// reciprocal reports whether the edge is half of a mutual pair that
// qualifies for the reciprocity discount.
func (p Params) reciprocal(e Edge) bool {
	if !e.HasReverse {
		return false
	}
	if e.Score < p.ReciprocityMinScore || e.ReverseScore < p.ReciprocityMinScore {
		return false
	}
	gap := e.CreatedAt.Sub(e.ReverseCreatedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= p.ReciprocityWindow
}

// Aggregate sums the contributions of all active edges pointing at an
// agent and clamps the result to ±MaxReputation.
func (p Params) Aggregate(edges []Edge) float64 {
	var total float64
	for _, e := range edges {
		total += p.Contribution(e)
	}
	if total > MaxReputation {
		total = MaxReputation
	}
	if total < -MaxReputation {
		total = -MaxReputation
	}
	return total
}
