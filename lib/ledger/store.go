// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agent-ethos/ethos/lib/apierror"
	"github.com/agent-ethos/ethos/lib/apikey"
	"github.com/agent-ethos/ethos/lib/clock"
	"github.com/agent-ethos/ethos/lib/reputation"
	"github.com/agent-ethos/ethos/lib/sqlitepool"
)

const (
	maxNameLen        = 64
	maxDescriptionLen = 500
	maxNoteLen        = 500
	maxReceiptLen     = 500
	maxReasonLen      = 500

	// readRetries bounds retries of read queries that lose the race
	// for the database despite the busy timeout.
	readRetries      = 3
	readRetryBackoff = 25 * time.Millisecond
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Agent is a registered identity with its cached reputation record.
type Agent struct {
	ID          int64
	Name        string
	Description string
	IsClaimed   bool

	// Reputation is the cached score, with the metadata that makes
	// its staleness explicit: when it was computed and from how many
	// active edges.
	Reputation           float64
	ReputationComputedAt time.Time
	ReputationEdgeCount  int

	CreatedAt time.Time
}

// Vouch is one ledger row, annotated with both agent names for
// rendering.
type Vouch struct {
	ID         int64
	FromID     int64
	ToID       int64
	FromName   string
	ToName     string
	Score      int
	Note       string
	ReceiptURL string
	Flags      int
	CreatedAt  time.Time
}

// Direction selects which side of the graph ListVouches walks.
type Direction string

const (
	// Incoming lists vouches received by the agent.
	Incoming Direction = "in"
	// Outgoing lists vouches given by the agent.
	Outgoing Direction = "out"
)

// Config holds the parameters for opening a ledger store.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// PoolSize is the connection pool size. Zero means the pool
	// default.
	PoolSize int

	// Clock provides timestamps for new rows. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger

	// Params are the scoring knobs used by recompute-on-write.
	Params reputation.Params
}

// Store is the SQLite-backed ledger. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
	params reputation.Params
}

// Open opens (creating if necessary) the ledger database and applies
// the schema. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("ledger: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("ledger: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      cfg.Path,
		PoolSize:  cfg.PoolSize,
		Logger:    cfg.Logger,
		OnConnect: applySchema,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		params: cfg.Params,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// CreateAgent registers a new agent and mints its credential. The
// agent row and the credential are inserted in one transaction, and
// the plaintext key is returned exactly once; it is never stored or
// logged.
func (s *Store) CreateAgent(ctx context.Context, name, description string) (Agent, string, error) {
	if !namePattern.MatchString(name) {
		return Agent{}, "", apierror.Validation(
			"name must be 1-%d characters of letters, digits, '.', '_', or '-'", maxNameLen)
	}
	if len(description) > maxDescriptionLen {
		return Agent{}, "", apierror.Validation("description must be at most %d characters", maxDescriptionLen)
	}

	plaintext, cred, err := apikey.Generate()
	if err != nil {
		return Agent{}, "", apierror.Internal(fmt.Errorf("ledger: create agent: %w", err))
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Agent{}, "", apierror.Internal(fmt.Errorf("ledger: create agent: %w", err))
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UTC()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Agent{}, "", apierror.Internal(fmt.Errorf("ledger: begin transaction: %w", err))
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		INSERT INTO agents (name, name_lower, description, key_id, key_salt, key_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				name, strings.ToLower(name), description,
				cred.KeyID, cred.Salt, cred.Hash,
				now.UnixNano(),
			},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			err = apierror.Conflict("agent name %q is already taken", name)
			return Agent{}, "", err
		}
		err = apierror.Internal(fmt.Errorf("ledger: inserting agent: %w", err))
		return Agent{}, "", err
	}

	agent := Agent{
		ID:          conn.LastInsertRowID(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}

	s.logger.Info("agent registered", "agent_id", agent.ID, "name", name)
	return agent, plaintext, nil
}

// AgentByName looks up an agent by case-insensitive exact name.
func (s *Store) AgentByName(ctx context.Context, name string) (Agent, error) {
	var agent Agent
	err := s.withReadConn(ctx, func(conn *sqlite.Conn) error {
		found := false
		err := sqlitex.Execute(conn,
			selectAgentColumns+` FROM agents WHERE name_lower = ?`,
			&sqlitex.ExecOptions{
				Args: []any{strings.ToLower(name)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					agent = scanAgent(stmt)
					found = true
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("ledger: agent by name: %w", err)
		}
		if !found {
			return apierror.NotFound("agent %q not found", name)
		}
		return nil
	})
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// AgentByID looks up an agent by id.
func (s *Store) AgentByID(ctx context.Context, id int64) (Agent, error) {
	var agent Agent
	err := s.withReadConn(ctx, func(conn *sqlite.Conn) error {
		found := false
		err := sqlitex.Execute(conn,
			selectAgentColumns+` FROM agents WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					agent = scanAgent(stmt)
					found = true
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("ledger: agent by id: %w", err)
		}
		if !found {
			return apierror.NotFound("agent %d not found", id)
		}
		return nil
	})
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// Authenticate resolves a presented bearer key to its agent. Every
// failure mode returns the same Unauthorized error so that responses
// carry no enumeration signal.
func (s *Store) Authenticate(ctx context.Context, key string) (Agent, error) {
	keyID, secret, err := apikey.Parse(key)
	if err != nil {
		return Agent{}, apierror.Unauthorized()
	}

	var (
		agent Agent
		cred  apikey.Credential
		found bool
	)
	err = s.withReadConn(ctx, func(conn *sqlite.Conn) error {
		found = false
		err := sqlitex.Execute(conn,
			selectAgentColumns+`, key_salt, key_hash FROM agents WHERE key_id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{keyID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					agent = scanAgent(stmt)
					salt := make([]byte, stmt.ColumnLen(9))
					stmt.ColumnBytes(9, salt)
					hash := make([]byte, stmt.ColumnLen(10))
					stmt.ColumnBytes(10, hash)
					cred = apikey.Credential{KeyID: keyID, Salt: salt, Hash: hash}
					found = true
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("ledger: authenticate: %w", err)
		}
		return nil
	})
	if err != nil {
		return Agent{}, apierror.Internal(err)
	}
	if !found || !apikey.Verify(cred, secret) {
		return Agent{}, apierror.Unauthorized()
	}
	return agent, nil
}

// Leaderboard returns the top agents by reputation. Ties break toward
// the agent registered earlier, then by id for full determinism.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Agent, error) {
	if limit <= 0 {
		return nil, apierror.Validation("limit must be positive")
	}

	var agents []Agent
	err := s.withReadConn(ctx, func(conn *sqlite.Conn) error {
		agents = agents[:0]
		err := sqlitex.Execute(conn,
			selectAgentColumns+` FROM agents
			ORDER BY reputation DESC, created_at ASC, id ASC
			LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					agents = append(agents, scanAgent(stmt))
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("ledger: leaderboard: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// selectAgentColumns is the shared column list consumed by scanAgent.
// Queries may append extra columns after these nine.
const selectAgentColumns = `SELECT id, name, description, is_claimed,
	reputation, reputation_computed_at, reputation_edge_count, created_at, name_lower`

func scanAgent(stmt *sqlite.Stmt) Agent {
	return Agent{
		ID:                   stmt.ColumnInt64(0),
		Name:                 stmt.ColumnText(1),
		Description:          stmt.ColumnText(2),
		IsClaimed:            stmt.ColumnInt64(3) != 0,
		Reputation:           stmt.ColumnFloat(4),
		ReputationComputedAt: nanosToTime(stmt.ColumnInt64(5)),
		ReputationEdgeCount:  int(stmt.ColumnInt64(6)),
		CreatedAt:            nanosToTime(stmt.ColumnInt64(7)),
	}
}

func nanosToTime(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}

// withReadConn runs fn on a pooled connection, retrying a bounded
// number of times when the database reports busy. The busy timeout
// pragma handles most contention; this catches the remainder on
// heavily loaded writers.
func (s *Store) withReadConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	defer s.pool.Put(conn)

	for attempt := 1; ; attempt++ {
		err := fn(conn)
		code := sqlite.ErrCode(err)
		if code != sqlite.ResultBusy && code != sqlite.ResultLocked {
			return err
		}
		if attempt >= readRetries {
			return fmt.Errorf("ledger: read still busy after %d attempts: %w", attempt, err)
		}
		s.clock.Sleep(readRetryBackoff)
	}
}
