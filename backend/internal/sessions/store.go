// Package sessions reads the append-only relational session store: rounds,
// per-player observations and per-player sessions kept in SQLite. Statistics
// are aggregated inside SQLite; raw observation rows are only streamed for
// co-play detection.
package sessions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

// timeLayout is the fixed-width UTC form all timestamps are stored in, so
// text comparison matches time order
const timeLayout = "2006-01-02T15:04:05Z"

const schema = `
CREATE TABLE IF NOT EXISTS servers (
	guid    TEXT PRIMARY KEY,
	name    TEXT NOT NULL DEFAULT '',
	game_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS rounds (
	round_id    TEXT PRIMARY KEY,
	server_guid TEXT NOT NULL,
	map_name    TEXT NOT NULL DEFAULT '',
	start_time  TEXT NOT NULL,
	end_time    TEXT
);

CREATE TABLE IF NOT EXISTS player_observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	round_id    TEXT NOT NULL,
	server_guid TEXT NOT NULL,
	player_name TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	kills       INTEGER NOT NULL DEFAULT 0,
	deaths      INTEGER NOT NULL DEFAULT 0,
	score       INTEGER NOT NULL DEFAULT 0,
	ping        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS player_sessions (
	session_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	round_id          TEXT NOT NULL,
	player_name       TEXT NOT NULL,
	server_guid       TEXT NOT NULL,
	map_name          TEXT NOT NULL DEFAULT '',
	start_time        TEXT NOT NULL,
	last_seen_time    TEXT NOT NULL,
	total_kills       INTEGER NOT NULL DEFAULT 0,
	total_deaths      INTEGER NOT NULL DEFAULT 0,
	total_score       INTEGER NOT NULL DEFAULT 0,
	average_ping      REAL NOT NULL DEFAULT 0,
	observation_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rounds_start ON rounds (start_time, round_id);
CREATE INDEX IF NOT EXISTS idx_observations_round ON player_observations (round_id);
CREATE INDEX IF NOT EXISTS idx_observations_player ON player_observations (player_name, timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_player ON player_sessions (player_name, server_guid);
CREATE INDEX IF NOT EXISTS idx_sessions_round ON player_sessions (round_id);
`

// Store is a pooled SQLite session store
type Store struct {
	pool   *sqlitex.Pool
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path with a pool of
// poolSize connections and ensures the schema exists
func Open(ctx context.Context, path string, poolSize int) (*Store, error) {
	if poolSize <= 0 {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout = 5000", nil); err != nil {
				return err
			}
			return sqlitex.ExecuteTransient(conn, "PRAGMA temp_store = MEMORY", nil)
		},
	})
	if err != nil {
		return nil, errors.NewStoreUnavailable("sessions", "open", err)
	}

	s := &Store{pool: pool, logger: logger.Named("sessions")}
	if err := s.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	s.logger.Info("Session store opened", zap.String("path", path), zap.Int("pool_size", poolSize))
	return s, nil
}

// Close releases every pooled connection
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	return s.withConn(ctx, "migrate", func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	})
}

// withConn borrows a connection for the duration of fn
func (s *Store) withConn(ctx context.Context, operation string, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewContextCancelled(operation, ctx.Err())
		}
		return errors.NewStoreUnavailable("sessions", operation, err)
	}
	defer s.pool.Put(conn)

	if err := fn(conn); err != nil {
		return fmt.Errorf("sessions %s: %w", operation, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// tolerate rows written with fractional seconds or offsets
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}
