package relationships

import (
	"context"
)

// ServerSocialStats describes how social a server's population is
type ServerSocialStats struct {
	ServerID                string  `json:"server_id"`
	ServerName              string  `json:"server_name"`
	UniquePlayers           int     `json:"unique_players"`
	AvgConnectionsPerPlayer float64 `json:"avg_connections_per_player"`
	Active30Days            int     `json:"active_30_days"`
	Active90Days            int     `json:"active_90_days"`
	RetentionRate           float64 `json:"retention_rate"`
}

// ServerSocialStats computes unique players, mean PLAYED_WITH degree among the
// server's players and the 30-vs-90-day retention ratio. Returns nil for an
// unknown server.
func (s *Service) ServerSocialStats(ctx context.Context, serverID string) (*ServerSocialStats, error) {
	activity, err := s.graph.ServerActivity(ctx, serverID, s.now().UTC())
	if err != nil {
		return nil, absent(err)
	}

	stats := &ServerSocialStats{
		ServerID:      activity.ServerID,
		ServerName:    activity.ServerName,
		UniquePlayers: activity.UniquePlayers,
		Active30Days:  activity.Active30,
		Active90Days:  activity.Active90,
	}
	if activity.UniquePlayers > 0 {
		stats.AvgConnectionsPerPlayer = 2 * float64(activity.InternalEdges) / float64(activity.UniquePlayers)
	}
	if activity.Active90 > 0 {
		stats.RetentionRate = float64(activity.Active30) / float64(activity.Active90)
	}
	return stats, nil
}
