// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agent-ethos/ethos/lib/apierror"
	"github.com/agent-ethos/ethos/lib/reputation"
)

// GraphSnapshot is a consistent view of the full vouch graph, used by
// the offline rebuild. Claimed has one entry per registered agent;
// Edges holds only active vouches.
type GraphSnapshot struct {
	Claimed map[int64]bool
	Edges   []reputation.GraphEdge
}

// Snapshot reads every agent and every active edge in one read
// transaction. It holds no lock that blocks live writers afterwards;
// the rebuild is drift correction over a point-in-time view, not a
// freeze of the ledger.
func (s *Store) Snapshot(ctx context.Context) (GraphSnapshot, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return GraphSnapshot{}, fmt.Errorf("ledger: snapshot: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction := sqlitex.Transaction(conn)
	defer endTransaction(&err)

	snap := GraphSnapshot{Claimed: make(map[int64]bool)}

	err = sqlitex.Execute(conn, `SELECT id, is_claimed FROM agents`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				snap.Claimed[stmt.ColumnInt64(0)] = stmt.ColumnInt64(1) != 0
				return nil
			},
		})
	if err != nil {
		return GraphSnapshot{}, fmt.Errorf("ledger: snapshot agents: %w", err)
	}

	err = sqlitex.Execute(conn, `
		SELECT v.from_agent, v.to_agent, v.score, v.flags_count, v.created_at
		FROM vouches v
		WHERE v.id = (
		    SELECT MAX(v2.id) FROM vouches v2
		    WHERE v2.from_agent = v.from_agent AND v2.to_agent = v.to_agent)`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				snap.Edges = append(snap.Edges, reputation.GraphEdge{
					From:      stmt.ColumnInt64(0),
					To:        stmt.ColumnInt64(1),
					Score:     int(stmt.ColumnInt64(2)),
					Flags:     int(stmt.ColumnInt64(3)),
					CreatedAt: nanosToTime(stmt.ColumnInt64(4)),
				})
				return nil
			},
		})
	if err != nil {
		return GraphSnapshot{}, fmt.Errorf("ledger: snapshot edges: %w", err)
	}

	return snap, nil
}

// ApplyReputations writes rebuilt reputation values in a single
// transaction. reps must cover every agent the rebuild scored,
// including zeros for agents with no incoming edges; edgeCounts may
// omit agents with no edges.
func (s *Store) ApplyReputations(ctx context.Context, reps map[int64]float64, edgeCounts map[int64]int) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return apierror.Internal(fmt.Errorf("ledger: apply reputations: %w", err))
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UTC().UnixNano()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return apierror.Internal(fmt.Errorf("ledger: begin transaction: %w", err))
	}
	defer endTransaction(&err)

	for id, rep := range reps {
		err = sqlitex.Execute(conn, `
			UPDATE agents
			SET reputation = ?, reputation_computed_at = ?, reputation_edge_count = ?
			WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{rep, now, edgeCounts[id], id},
			})
		if err != nil {
			err = apierror.Internal(fmt.Errorf("ledger: updating agent %d: %w", id, err))
			return err
		}
	}

	s.logger.Info("rebuilt reputations applied", "agents", len(reps))
	return nil
}
