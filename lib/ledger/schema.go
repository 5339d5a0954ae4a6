// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema is applied on every connection via CREATE IF NOT EXISTS, so
// opening an existing database is a no-op. Timestamps are unix
// nanoseconds. name_lower carries the case-insensitive uniqueness
// invariant; name preserves the registered casing for display.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
    id                      INTEGER PRIMARY KEY,
    name                    TEXT NOT NULL,
    name_lower              TEXT NOT NULL UNIQUE,
    description             TEXT NOT NULL DEFAULT '',
    is_claimed              INTEGER NOT NULL DEFAULT 0,
    key_id                  TEXT NOT NULL UNIQUE,
    key_salt                BLOB NOT NULL,
    key_hash                BLOB NOT NULL,
    reputation              REAL NOT NULL DEFAULT 0,
    reputation_computed_at  INTEGER NOT NULL DEFAULT 0,
    reputation_edge_count   INTEGER NOT NULL DEFAULT 0,
    created_at              INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS vouches (
    id           INTEGER PRIMARY KEY,
    from_agent   INTEGER NOT NULL REFERENCES agents(id),
    to_agent     INTEGER NOT NULL REFERENCES agents(id),
    score        INTEGER NOT NULL,
    note         TEXT NOT NULL DEFAULT '',
    receipt_url  TEXT NOT NULL DEFAULT '',
    flags_count  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS vouches_by_pair ON vouches (from_agent, to_agent, id);
CREATE INDEX IF NOT EXISTS vouches_by_target ON vouches (to_agent, id);
CREATE INDEX IF NOT EXISTS vouches_by_source ON vouches (from_agent, id);

CREATE TABLE IF NOT EXISTS flags (
    id          INTEGER PRIMARY KEY,
    vouch_id    INTEGER NOT NULL REFERENCES vouches(id),
    flagger_id  INTEGER NOT NULL REFERENCES agents(id),
    reason      TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    UNIQUE (vouch_id, flagger_id)
);
`

func applySchema(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("ledger: applying schema: %w", err)
	}
	return nil
}
