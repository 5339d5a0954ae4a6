// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agent-ethos/ethos/lib/apierror"
	"github.com/agent-ethos/ethos/lib/reputation"
)

// SubmitVouch appends a vouch from fromID to the agent named toName
// and synchronously recomputes the target's reputation, all in one
// IMMEDIATE transaction. The new row supersedes any earlier vouch on
// the same ordered pair for scoring; earlier rows remain stored.
func (s *Store) SubmitVouch(ctx context.Context, fromID int64, toName string, score int, note, receiptURL string) (Vouch, error) {
	if score == 0 || score < -5 || score > 5 {
		return Vouch{}, apierror.InvalidVouch("score must be an integer in [-5, 5], excluding 0")
	}
	if len(note) > maxNoteLen {
		return Vouch{}, apierror.InvalidVouch("note must be at most %d characters", maxNoteLen)
	}
	if len(receiptURL) > maxReceiptLen {
		return Vouch{}, apierror.InvalidVouch("receipt_url must be at most %d characters", maxReceiptLen)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Vouch{}, apierror.Internal(fmt.Errorf("ledger: submit vouch: %w", err))
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UTC()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Vouch{}, apierror.Internal(fmt.Errorf("ledger: begin transaction: %w", err))
	}
	defer endTransaction(&err)

	var (
		fromName string
		toID     int64
	)
	found := false
	err = sqlitex.Execute(conn, `SELECT id, name FROM agents WHERE name_lower = ?`,
		&sqlitex.ExecOptions{
			Args: []any{strings.ToLower(toName)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				toID = stmt.ColumnInt64(0)
				toName = stmt.ColumnText(1)
				found = true
				return nil
			},
		})
	if err != nil {
		err = apierror.Internal(fmt.Errorf("ledger: resolving target: %w", err))
		return Vouch{}, err
	}
	if !found {
		err = apierror.NotFound("agent %q not found", toName)
		return Vouch{}, err
	}
	if toID == fromID {
		err = apierror.InvalidVouch("cannot vouch for yourself")
		return Vouch{}, err
	}

	err = sqlitex.Execute(conn, `SELECT name FROM agents WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{fromID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fromName = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		err = apierror.Internal(fmt.Errorf("ledger: resolving voucher: %w", err))
		return Vouch{}, err
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO vouches (from_agent, to_agent, score, note, receipt_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{fromID, toID, score, note, receiptURL, now.UnixNano()},
		})
	if err != nil {
		err = apierror.Internal(fmt.Errorf("ledger: inserting vouch: %w", err))
		return Vouch{}, err
	}
	vouchID := conn.LastInsertRowID()

	if err = s.recomputeTarget(conn, toID); err != nil {
		return Vouch{}, err
	}

	s.logger.Info("vouch submitted",
		"vouch_id", vouchID,
		"from", fromID,
		"to", toID,
		"score", score,
	)

	return Vouch{
		ID:         vouchID,
		FromID:     fromID,
		ToID:       toID,
		FromName:   fromName,
		ToName:     toName,
		Score:      score,
		Note:       note,
		ReceiptURL: receiptURL,
		CreatedAt:  now,
	}, nil
}

// ListVouches returns up to limit vouches touching the agent, newest
// first. Superseded vouches are included; the listing is an audit
// trail, not the scoring view.
func (s *Store) ListVouches(ctx context.Context, agentID int64, direction Direction, limit int) ([]Vouch, error) {
	if limit <= 0 {
		return nil, apierror.Validation("limit must be positive")
	}

	var column string
	switch direction {
	case Incoming:
		column = "to_agent"
	case Outgoing:
		column = "from_agent"
	default:
		return nil, apierror.Validation("direction must be %q or %q", Incoming, Outgoing)
	}

	var vouches []Vouch
	err := s.withReadConn(ctx, func(conn *sqlite.Conn) error {
		vouches = vouches[:0]
		err := sqlitex.Execute(conn, `
			SELECT v.id, v.from_agent, v.to_agent, v.score, v.note, v.receipt_url,
			       v.flags_count, v.created_at, fa.name, ta.name
			FROM vouches v
			JOIN agents fa ON fa.id = v.from_agent
			JOIN agents ta ON ta.id = v.to_agent
			WHERE v.`+column+` = ?
			ORDER BY v.id DESC
			LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{agentID, limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					vouches = append(vouches, scanVouch(stmt))
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("ledger: list vouches: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vouches, nil
}

// FlagVouch records a community flag against a vouch. At most one flag
// per (vouch, flagger), enforced by the database rather than
// read-then-write; a duplicate maps to Conflict. The flag count and
// the target's reputation update in the same transaction. Flags are
// never retracted.
func (s *Store) FlagVouch(ctx context.Context, vouchID, flaggerID int64, reason string) error {
	if reason == "" {
		return apierror.Validation("reason is required")
	}
	if len(reason) > maxReasonLen {
		return apierror.Validation("reason must be at most %d characters", maxReasonLen)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return apierror.Internal(fmt.Errorf("ledger: flag vouch: %w", err))
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UTC()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return apierror.Internal(fmt.Errorf("ledger: begin transaction: %w", err))
	}
	defer endTransaction(&err)

	var targetID int64
	found := false
	err = sqlitex.Execute(conn, `SELECT to_agent FROM vouches WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{vouchID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				targetID = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		err = apierror.Internal(fmt.Errorf("ledger: looking up vouch: %w", err))
		return err
	}
	if !found {
		err = apierror.NotFound("vouch %d not found", vouchID)
		return err
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO flags (vouch_id, flagger_id, reason, created_at)
		VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{vouchID, flaggerID, reason, now.UnixNano()},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			err = apierror.Conflict("vouch %d already flagged by this agent", vouchID)
			return err
		}
		err = apierror.Internal(fmt.Errorf("ledger: inserting flag: %w", err))
		return err
	}

	err = sqlitex.Execute(conn,
		`UPDATE vouches SET flags_count = flags_count + 1 WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{vouchID}})
	if err != nil {
		err = apierror.Internal(fmt.Errorf("ledger: bumping flag count: %w", err))
		return err
	}

	if err = s.recomputeTarget(conn, targetID); err != nil {
		return err
	}

	s.logger.Info("vouch flagged",
		"vouch_id", vouchID,
		"flagger", flaggerID,
		"target", targetID,
	)
	return nil
}

// activeEdgeQuery selects the active (newest per ordered pair) vouches
// pointing at one agent, joined with each voucher's cached reputation
// and claim status, plus the reverse active edge when one exists.
const activeEdgeQuery = `
	SELECT v.score, v.flags_count, v.created_at,
	       a.reputation, a.is_claimed,
	       r.score, r.created_at
	FROM vouches v
	JOIN agents a ON a.id = v.from_agent
	LEFT JOIN vouches r ON r.id = (
	    SELECT MAX(r2.id) FROM vouches r2
	    WHERE r2.from_agent = v.to_agent AND r2.to_agent = v.from_agent)
	WHERE v.to_agent = ?
	  AND v.id = (
	    SELECT MAX(v2.id) FROM vouches v2
	    WHERE v2.from_agent = v.from_agent AND v2.to_agent = v.to_agent)`

// recomputeTarget rescores one agent from its active incoming edges
// and stores the versioned result. Must run inside the caller's write
// transaction so that the recompute and the mutation that triggered it
// commit atomically.
func (s *Store) recomputeTarget(conn *sqlite.Conn, targetID int64) error {
	var edges []reputation.Edge
	err := sqlitex.Execute(conn, activeEdgeQuery, &sqlitex.ExecOptions{
		Args: []any{targetID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			edge := reputation.Edge{
				Score:             int(stmt.ColumnInt64(0)),
				Flags:             int(stmt.ColumnInt64(1)),
				CreatedAt:         nanosToTime(stmt.ColumnInt64(2)),
				VoucherReputation: stmt.ColumnFloat(3),
				VoucherClaimed:    stmt.ColumnInt64(4) != 0,
			}
			if stmt.ColumnType(5) != sqlite.TypeNull {
				edge.HasReverse = true
				edge.ReverseScore = int(stmt.ColumnInt64(5))
				edge.ReverseCreatedAt = nanosToTime(stmt.ColumnInt64(6))
			}
			edges = append(edges, edge)
			return nil
		},
	})
	if err != nil {
		return apierror.Internal(fmt.Errorf("ledger: loading active edges: %w", err))
	}

	score := s.params.Aggregate(edges)
	err = sqlitex.Execute(conn, `
		UPDATE agents
		SET reputation = ?, reputation_computed_at = ?, reputation_edge_count = ?
		WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{score, s.clock.Now().UTC().UnixNano(), len(edges), targetID},
		})
	if err != nil {
		return apierror.Internal(fmt.Errorf("ledger: storing reputation: %w", err))
	}
	return nil
}

func scanVouch(stmt *sqlite.Stmt) Vouch {
	return Vouch{
		ID:         stmt.ColumnInt64(0),
		FromID:     stmt.ColumnInt64(1),
		ToID:       stmt.ColumnInt64(2),
		Score:      int(stmt.ColumnInt64(3)),
		Note:       stmt.ColumnText(4),
		ReceiptURL: stmt.ColumnText(5),
		Flags:      int(stmt.ColumnInt64(6)),
		CreatedAt:  nanosToTime(stmt.ColumnInt64(7)),
		FromName:   stmt.ColumnText(8),
		ToName:     stmt.ColumnText(9),
	}
}
