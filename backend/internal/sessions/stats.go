package sessions

import (
	"context"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ============================================================================
// Server-side aggregates for behavioral fingerprints
// ============================================================================

// Totals returns lifetime combat totals from a player's sessions
func (s *Store) Totals(ctx context.Context, player string) (*PlayerTotals, error) {
	totals := &PlayerTotals{}
	err := s.withConn(ctx, "totals", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT count(DISTINCT round_id),
			       coalesce(sum(total_kills), 0),
			       coalesce(sum(total_deaths), 0),
			       coalesce(sum(total_score), 0),
			       coalesce(sum((julianday(last_seen_time) - julianday(start_time)) * 1440.0), 0)
			FROM player_sessions
			WHERE player_name = ?`,
			&sqlitex.ExecOptions{
				Args: []any{player},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					totals.Rounds = stmt.ColumnInt(0)
					totals.Kills = stmt.ColumnInt64(1)
					totals.Deaths = stmt.ColumnInt64(2)
					totals.Score = stmt.ColumnInt64(3)
					totals.PlayMinutes = stmt.ColumnFloat(4)
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// MapKD returns kills/deaths per map. Maps without deaths report raw kills.
func (s *Store) MapKD(ctx context.Context, player string) (map[string]float64, error) {
	return s.groupedKD(ctx, "map kd", "map_name", player)
}

// ServerKD returns kills/deaths per server
func (s *Store) ServerKD(ctx context.Context, player string) (map[string]float64, error) {
	return s.groupedKD(ctx, "server kd", "server_guid", player)
}

func (s *Store) groupedKD(ctx context.Context, operation, column, player string) (map[string]float64, error) {
	out := make(map[string]float64)
	err := s.withConn(ctx, operation, func(conn *sqlite.Conn) error {
		// column is one of two fixed identifiers
		return sqlitex.Execute(conn, `
			SELECT `+column+`,
			       CASE WHEN sum(total_deaths) = 0 THEN CAST(sum(total_kills) AS REAL)
			            ELSE CAST(sum(total_kills) AS REAL) / sum(total_deaths) END
			FROM player_sessions
			WHERE player_name = ? AND `+column+` <> ''
			GROUP BY `+column,
			&sqlitex.ExecOptions{
				Args: []any{player},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out[stmt.ColumnText(0)] = stmt.ColumnFloat(1)
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HourHistogram counts a player's observations per UTC hour of day within
// lookback of that player's own last observation
func (s *Store) HourHistogram(ctx context.Context, player string, lookback time.Duration) ([24]float64, error) {
	var hist [24]float64
	err := s.withConn(ctx, "hour histogram", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			WITH anchor AS (
				SELECT max(timestamp) AS last FROM player_observations WHERE player_name = ?
			)
			SELECT CAST(strftime('%H', o.timestamp) AS INTEGER), count(*)
			FROM player_observations o, anchor
			WHERE o.player_name = ?
			  AND julianday(o.timestamp) >= julianday(anchor.last) - ?
			GROUP BY 1`,
			&sqlitex.ExecOptions{
				Args: []any{player, player, lookback.Hours() / 24},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					h := stmt.ColumnInt(0)
					if h >= 0 && h < 24 {
						hist[h] = float64(stmt.ColumnInt64(1))
					}
					return nil
				},
			})
	})
	return hist, err
}

// ServerSet returns the distinct servers a player has sessions on
func (s *Store) ServerSet(ctx context.Context, player string) ([]string, error) {
	out := []string{}
	err := s.withConn(ctx, "server set", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT DISTINCT server_guid FROM player_sessions
			WHERE player_name = ? ORDER BY server_guid`,
			&sqlitex.ExecOptions{
				Args: []any{player},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, stmt.ColumnText(0))
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ServerPings returns the average ping per server, ignoring zero readings
func (s *Store) ServerPings(ctx context.Context, player string) (map[string]float64, error) {
	out := make(map[string]float64)
	err := s.withConn(ctx, "server pings", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT server_guid, avg(average_ping)
			FROM player_sessions
			WHERE player_name = ? AND average_ping > 0
			GROUP BY server_guid`,
			&sqlitex.ExecOptions{
				Args: []any{player},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out[stmt.ColumnText(0)] = stmt.ColumnFloat(1)
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pattern returns session count, mean duration and sessions per week over the
// player's active span
func (s *Store) Pattern(ctx context.Context, player string) (*SessionPattern, error) {
	p := &SessionPattern{}
	err := s.withConn(ctx, "session pattern", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT count(*),
			       coalesce(avg((julianday(last_seen_time) - julianday(start_time)) * 1440.0), 0),
			       coalesce(julianday(max(last_seen_time)) - julianday(min(start_time)), 0)
			FROM player_sessions
			WHERE player_name = ?`,
			&sqlitex.ExecOptions{
				Args: []any{player},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					p.Sessions = stmt.ColumnInt(0)
					p.AvgDurationMinutes = stmt.ColumnFloat(1)
					spanDays := stmt.ColumnFloat(2)
					weeks := spanDays / 7
					if weeks < 1 {
						weeks = 1
					}
					p.SessionsPerWeek = float64(p.Sessions) / weeks
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Activity returns first/last seen and session count. A player with no
// sessions yields a zero span, not an error.
func (s *Store) Activity(ctx context.Context, player string) (*ActivitySpan, error) {
	span := &ActivitySpan{Player: player}
	err := s.withConn(ctx, "activity", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT count(*), coalesce(min(start_time), ''), coalesce(max(last_seen_time), '')
			FROM player_sessions
			WHERE player_name = ?`,
			&sqlitex.ExecOptions{
				Args: []any{player},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					span.Sessions = stmt.ColumnInt(0)
					span.FirstSeen = parseTime(stmt.ColumnText(1))
					span.LastSeen = parseTime(stmt.ColumnText(2))
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return span, nil
}

// CoSessions counts rounds in which both players have a session
func (s *Store) CoSessions(ctx context.Context, playerA, playerB string) (int, error) {
	var n int
	err := s.withConn(ctx, "co-sessions", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT count(DISTINCT a.round_id)
			FROM player_sessions a
			JOIN player_sessions b ON b.round_id = a.round_id
			WHERE a.player_name = ? AND b.player_name = ?`,
			&sqlitex.ExecOptions{
				Args: []any{playerA, playerB},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					n = stmt.ColumnInt(0)
					return nil
				},
			})
	})
	return n, err
}
