package sessions

import (
	"context"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// RoundsPage returns up to limit rounds starting in [from, to) strictly after
// the cursor, ordered by (start_time, round_id), each with its observations.
// A zero cursor starts at the beginning of the range.
func (s *Store) RoundsPage(ctx context.Context, from, to time.Time, after RoundCursor, limit int) ([]Round, error) {
	var rounds []Round

	err := s.withConn(ctx, "rounds page", func(conn *sqlite.Conn) error {
		afterStart := ""
		if !after.StartTime.IsZero() {
			afterStart = formatTime(after.StartTime)
		}

		index := make(map[string]int)
		err := sqlitex.Execute(conn, `
			SELECT round_id, server_guid, map_name, start_time, coalesce(end_time, '')
			FROM rounds
			WHERE start_time >= ? AND start_time < ?
			  AND (start_time > ? OR (start_time = ? AND round_id > ?))
			ORDER BY start_time, round_id
			LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{formatTime(from), formatTime(to), afterStart, afterStart, after.RoundID, limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					index[stmt.ColumnText(0)] = len(rounds)
					rounds = append(rounds, Round{
						ID:        stmt.ColumnText(0),
						ServerID:  stmt.ColumnText(1),
						MapName:   stmt.ColumnText(2),
						StartTime: parseTime(stmt.ColumnText(3)),
						EndTime:   parseTime(stmt.ColumnText(4)),
					})
					return nil
				},
			})
		if err != nil || len(rounds) == 0 {
			return err
		}

		args := make([]any, 0, len(rounds))
		for _, r := range rounds {
			args = append(args, r.ID)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

		return sqlitex.Execute(conn, `
			SELECT round_id, server_guid, player_name, timestamp, kills, deaths, score, ping
			FROM player_observations
			WHERE round_id IN (`+placeholders+`)
			ORDER BY round_id, timestamp, id`,
			&sqlitex.ExecOptions{
				Args: args,
				ResultFunc: func(stmt *sqlite.Stmt) error {
					i, ok := index[stmt.ColumnText(0)]
					if !ok {
						return nil
					}
					rounds[i].Observations = append(rounds[i].Observations, Observation{
						RoundID:    stmt.ColumnText(0),
						ServerID:   stmt.ColumnText(1),
						PlayerName: stmt.ColumnText(2),
						Timestamp:  parseTime(stmt.ColumnText(3)),
						Kills:      stmt.ColumnInt(4),
						Deaths:     stmt.ColumnInt(5),
						Score:      stmt.ColumnInt(6),
						Ping:       stmt.ColumnInt(7),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return rounds, nil
}

// PlayerServerPage returns up to limit player+server aggregates over sessions
// starting in [from, to), keyset-paged by (player_name, server_guid)
func (s *Store) PlayerServerPage(ctx context.Context, from, to time.Time, after PlayerServerCursor, limit int) ([]PlayerServerActivity, error) {
	var out []PlayerServerActivity

	err := s.withConn(ctx, "player server page", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT ps.player_name, ps.server_guid,
			       coalesce(sv.name, ''), coalesce(sv.game_id, ''),
			       count(*), min(ps.start_time), max(ps.last_seen_time)
			FROM player_sessions ps
			LEFT JOIN servers sv ON sv.guid = ps.server_guid
			WHERE ps.start_time >= ? AND ps.start_time < ?
			  AND trim(ps.player_name) <> ''
			  AND (ps.player_name > ? OR (ps.player_name = ? AND ps.server_guid > ?))
			GROUP BY ps.player_name, ps.server_guid
			ORDER BY ps.player_name, ps.server_guid
			LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{formatTime(from), formatTime(to), after.PlayerName, after.PlayerName, after.ServerID, limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, PlayerServerActivity{
						PlayerName: stmt.ColumnText(0),
						ServerID:   stmt.ColumnText(1),
						ServerName: stmt.ColumnText(2),
						GameID:     stmt.ColumnText(3),
						Sessions:   stmt.ColumnInt64(4),
						FirstSeen:  parseTime(stmt.ColumnText(5)),
						LastSeen:   parseTime(stmt.ColumnText(6)),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
