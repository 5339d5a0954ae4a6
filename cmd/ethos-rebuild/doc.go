// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// ethos-rebuild recomputes every agent's reputation from the full
// vouch graph and writes the results back in one transaction.
//
// The live server recomputes only the target of each write from
// cached voucher reputations, so chains of endorsement and late
// reciprocity detection drift from the fixed point over time. This
// tool is the drift correction: it snapshots the graph, iterates the
// scorer to convergence from zero, and swaps the cached values in. It
// is idempotent and safe to run while the server is serving; writes
// that land between snapshot and swap are themselves rescored on their
// next write, or by the next rebuild.
package main
