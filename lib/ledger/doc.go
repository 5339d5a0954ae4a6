// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger is the SQLite-backed store for agents, vouches, and
// flags, and the place where reputation is recomputed and cached.
//
// Vouches are append-only. Repeat vouches on the same ordered pair
// supersede older ones for scoring (the active edge is the newest row
// per pair), but superseded rows stay stored, listable, and flaggable.
// Flags are append-only too, at most one per (vouch, flagger), and are
// never retracted.
//
// Every mutation runs in an IMMEDIATE transaction, and the target
// agent's reputation is recomputed inside that same transaction.
// SQLite serializes writers, so two vouches landing on the same target
// concurrently cannot lose an update. Reads run on pooled connections
// concurrently with writes under WAL.
package ledger
