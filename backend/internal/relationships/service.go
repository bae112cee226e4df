// Package relationships answers read-only questions about the co-play graph.
// Absent players, servers and pairs yield empty results; only store faults
// are returned as errors.
package relationships

import (
	"context"
	"time"

	"go.uber.org/zap"

	"squadgraph/backend/internal/constants"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

// GraphReader is the subset of the graph repository the service reads
type GraphReader interface {
	Teammates(ctx context.Context, player string, limit int) ([]graph.Teammate, error)
	PotentialConnections(ctx context.Context, player string, since time.Time, limit int) ([]graph.PotentialConnection, error)
	SharedServers(ctx context.Context, playerA, playerB string) ([]graph.SharedServer, error)
	RecentConnections(ctx context.Context, player string, since time.Time) ([]graph.RecentConnection, error)
	Relationship(ctx context.Context, playerA, playerB string) (*graph.Relationship, error)
	NetworkStats(ctx context.Context, player string) (*graph.NetworkStats, error)
	NetworkGraph(ctx context.Context, player string, depth, maxNodes int) (*graph.NetworkGraph, error)
	ServerActivity(ctx context.Context, serverID string, now time.Time) (*graph.ServerActivity, error)
	SquadCandidates(ctx context.Context, player string, limit int) ([]graph.SquadCandidate, error)
	PlayerServerVisits(ctx context.Context, from, to time.Time) ([]graph.PlayerServerVisit, error)
}

// Service implements the relationship queries
type Service struct {
	graph  GraphReader
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a query service
func NewService(reader GraphReader) *Service {
	return &Service{
		graph:  reader,
		logger: logger.Named("relationships"),
		now:    time.Now,
	}
}

func clamp(v, lo, hi, def int) int {
	if v <= 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// absent turns NotFound into a nil error so callers see a nil result
func absent(err error) error {
	if errors.IsNotFound(err) {
		return nil
	}
	return err
}

// TeammateLimit applies the default and ceiling to a teammate limit
func TeammateLimit(limit int) int {
	return clamp(limit, 1, constants.MaxTeammateLimit, constants.DefaultTeammateLimit)
}

// GraphBounds applies defaults and ceilings to network graph depth and size
func GraphBounds(depth, maxNodes int) (int, int) {
	return clamp(depth, constants.MinNetworkDepth, constants.MaxNetworkDepth, 2),
		clamp(maxNodes, 1, constants.MaxNetworkGraphNodes, constants.DefaultNetworkGraphNodes)
}

// Teammates returns the players most often seen with player
func (s *Service) Teammates(ctx context.Context, player string, limit int) ([]graph.Teammate, error) {
	limit = TeammateLimit(limit)
	out, err := s.graph.Teammates(ctx, player, limit)
	if err != nil {
		if errors.IsNotFound(err) {
			return []graph.Teammate{}, nil
		}
		return nil, err
	}
	return out, nil
}

// PotentialConnections suggests players from the same recent server cohort
// the player has never teamed with
func (s *Service) PotentialConnections(ctx context.Context, player string, days, limit int) ([]graph.PotentialConnection, error) {
	days = clamp(days, 1, 365, constants.DefaultRecentDays)
	limit = clamp(limit, 1, constants.MaxTeammateLimit, constants.DefaultSuggestionLimit)
	since := s.now().UTC().AddDate(0, 0, -days)

	out, err := s.graph.PotentialConnections(ctx, player, since, limit)
	if err != nil {
		if errors.IsNotFound(err) {
			return []graph.PotentialConnection{}, nil
		}
		return nil, err
	}
	return out, nil
}

// SharedServers lists the servers both players play on
func (s *Service) SharedServers(ctx context.Context, playerA, playerB string) ([]graph.SharedServer, error) {
	out, err := s.graph.SharedServers(ctx, playerA, playerB)
	if err != nil {
		if errors.IsNotFound(err) {
			return []graph.SharedServer{}, nil
		}
		return nil, err
	}
	return out, nil
}

// RecentConnections returns edges touched in the trailing window
func (s *Service) RecentConnections(ctx context.Context, player string, days int) ([]graph.RecentConnection, error) {
	days = clamp(days, 1, 365, constants.DefaultRecentDays)
	since := s.now().UTC().AddDate(0, 0, -days)

	out, err := s.graph.RecentConnections(ctx, player, since)
	if err != nil {
		if errors.IsNotFound(err) {
			return []graph.RecentConnection{}, nil
		}
		return nil, err
	}
	return out, nil
}

// Relationship looks up a pair in either order. Returns nil when the pair
// never played together.
func (s *Service) Relationship(ctx context.Context, playerA, playerB string) (*graph.Relationship, error) {
	if playerA == playerB {
		return nil, nil
	}
	rel, err := s.graph.Relationship(ctx, playerA, playerB)
	if err != nil {
		return nil, absent(err)
	}
	return rel, nil
}

// NetworkStats summarises a player's neighborhood. Returns nil for an
// unknown player.
func (s *Service) NetworkStats(ctx context.Context, player string) (*graph.NetworkStats, error) {
	stats, err := s.graph.NetworkStats(ctx, player)
	if err != nil {
		return nil, absent(err)
	}
	return stats, nil
}

// NetworkGraph extracts the ego network with depth clamped to 1..3 and the
// node count capped. Returns nil for an unknown player.
func (s *Service) NetworkGraph(ctx context.Context, player string, depth, maxNodes int) (*graph.NetworkGraph, error) {
	depth, maxNodes = GraphBounds(depth, maxNodes)

	g, err := s.graph.NetworkGraph(ctx, player, depth, maxNodes)
	if err != nil {
		return nil, absent(err)
	}
	return g, nil
}
