package sessions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// UpsertServer records or renames a server
func (s *Store) UpsertServer(ctx context.Context, info ServerInfo) error {
	return s.withConn(ctx, "upsert server", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO servers (guid, name, game_id) VALUES (?, ?, ?)
			ON CONFLICT (guid) DO UPDATE SET name = excluded.name, game_id = excluded.game_id`,
			&sqlitex.ExecOptions{Args: []any{info.ID, info.Name, info.GameID}})
	})
}

// AppendRound writes a round with its observations and sessions in one
// transaction. The store is append-only; an existing round id is an error.
func (s *Store) AppendRound(ctx context.Context, round Round, sessions []Session) error {
	return s.withConn(ctx, "append round", func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer endFn(&err)

		end := any(nil)
		if !round.EndTime.IsZero() {
			end = formatTime(round.EndTime)
		}
		if err := sqlitex.Execute(conn,
			`INSERT INTO rounds (round_id, server_guid, map_name, start_time, end_time) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{round.ID, round.ServerID, round.MapName, formatTime(round.StartTime), end}},
		); err != nil {
			return fmt.Errorf("insert round %s: %w", round.ID, err)
		}

		obsStmt, err := conn.Prepare(`
			INSERT INTO player_observations
				(round_id, server_guid, player_name, timestamp, kills, deaths, score, ping)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare observation insert: %w", err)
		}
		for _, o := range round.Observations {
			serverID := o.ServerID
			if serverID == "" {
				serverID = round.ServerID
			}
			obsStmt.BindText(1, round.ID)
			obsStmt.BindText(2, serverID)
			obsStmt.BindText(3, o.PlayerName)
			obsStmt.BindText(4, formatTime(o.Timestamp))
			obsStmt.BindInt64(5, int64(o.Kills))
			obsStmt.BindInt64(6, int64(o.Deaths))
			obsStmt.BindInt64(7, int64(o.Score))
			obsStmt.BindInt64(8, int64(o.Ping))
			if _, err := obsStmt.Step(); err != nil {
				return fmt.Errorf("insert observation %s: %w", o.PlayerName, err)
			}
			if err := obsStmt.Reset(); err != nil {
				return err
			}
		}

		sessStmt, err := conn.Prepare(`
			INSERT INTO player_sessions
				(round_id, player_name, server_guid, map_name, start_time, last_seen_time,
				 total_kills, total_deaths, total_score, average_ping, observation_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare session insert: %w", err)
		}
		for _, ps := range sessions {
			serverID, mapName := ps.ServerID, ps.MapName
			if serverID == "" {
				serverID = round.ServerID
			}
			if mapName == "" {
				mapName = round.MapName
			}
			sessStmt.BindText(1, round.ID)
			sessStmt.BindText(2, ps.PlayerName)
			sessStmt.BindText(3, serverID)
			sessStmt.BindText(4, mapName)
			sessStmt.BindText(5, formatTime(ps.StartTime))
			sessStmt.BindText(6, formatTime(ps.LastSeenTime))
			sessStmt.BindInt64(7, int64(ps.TotalKills))
			sessStmt.BindInt64(8, int64(ps.TotalDeaths))
			sessStmt.BindInt64(9, int64(ps.TotalScore))
			sessStmt.BindFloat(10, ps.AveragePing)
			sessStmt.BindInt64(11, int64(ps.ObservationCount))
			if _, err := sessStmt.Step(); err != nil {
				return fmt.Errorf("insert session %s: %w", ps.PlayerName, err)
			}
			if err := sessStmt.Reset(); err != nil {
				return err
			}
		}

		s.logger.Debug("Round appended",
			zap.String("round_id", round.ID),
			zap.Int("observations", len(round.Observations)),
			zap.Int("sessions", len(sessions)),
		)
		return nil
	})
}

// SessionsFromRound folds a round's observations into one session per
// player: first/last timestamp, the last cumulative kills/deaths/score and
// the mean ping. Blank names are skipped.
func SessionsFromRound(round Round) []Session {
	byPlayer := make(map[string]*Session)
	pingSum := make(map[string]int)
	order := make([]string, 0)

	for _, o := range round.Observations {
		name := strings.TrimSpace(o.PlayerName)
		if name == "" {
			continue
		}
		s, ok := byPlayer[name]
		if !ok {
			s = &Session{
				RoundID:      round.ID,
				PlayerName:   name,
				ServerID:     round.ServerID,
				MapName:      round.MapName,
				StartTime:    o.Timestamp,
				LastSeenTime: o.Timestamp,
			}
			byPlayer[name] = s
			order = append(order, name)
		}
		if o.Timestamp.Before(s.StartTime) {
			s.StartTime = o.Timestamp
		}
		if !o.Timestamp.Before(s.LastSeenTime) {
			s.LastSeenTime = o.Timestamp
			s.TotalKills, s.TotalDeaths, s.TotalScore = o.Kills, o.Deaths, o.Score
		}
		s.ObservationCount++
		pingSum[name] += o.Ping
	}

	out := make([]Session, 0, len(order))
	for _, name := range order {
		s := byPlayer[name]
		s.AveragePing = float64(pingSum[name]) / float64(s.ObservationCount)
		out = append(out, *s)
	}
	return out
}
