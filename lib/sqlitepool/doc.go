// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a fixed-size pool of SQLite connections
// with Ethos-standard pragmas applied to every connection: WAL journal
// mode for concurrent readers alongside the single writer, a busy
// timeout so short write contention retries instead of failing, and
// foreign keys enabled because the ledger schema relies on them.
//
// The pool wraps zombiezen.com/go/sqlite/sqlitex and exposes the same
// Take/Put discipline: each goroutine takes its own connection and
// returns it when done. Individual connections are not safe for
// concurrent use.
package sqlitepool
