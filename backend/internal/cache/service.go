package cache

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"squadgraph/backend/internal/constants"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/metrics"
	"squadgraph/backend/internal/relationships"
	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

// Backend is the uncached relationship query surface
type Backend interface {
	Teammates(ctx context.Context, player string, limit int) ([]graph.Teammate, error)
	PotentialConnections(ctx context.Context, player string, days, limit int) ([]graph.PotentialConnection, error)
	SharedServers(ctx context.Context, playerA, playerB string) ([]graph.SharedServer, error)
	RecentConnections(ctx context.Context, player string, days int) ([]graph.RecentConnection, error)
	Relationship(ctx context.Context, playerA, playerB string) (*graph.Relationship, error)
	NetworkStats(ctx context.Context, player string) (*graph.NetworkStats, error)
	NetworkGraph(ctx context.Context, player string, depth, maxNodes int) (*graph.NetworkGraph, error)
	ServerSocialStats(ctx context.Context, serverID string) (*relationships.ServerSocialStats, error)
	SquadRecommendations(ctx context.Context, player string, limit int) ([]relationships.SquadRecommendation, error)
	MigrationFlow(ctx context.Context, from, to time.Time) (*relationships.MigrationFlow, error)
	ServerLifecycle(ctx context.Context, serverID string, from, to time.Time) (*relationships.ServerFlow, error)
}

// CommunitySource lists detected communities
type CommunitySource interface {
	Communities(ctx context.Context) ([]graph.Community, error)
}

const (
	keyPrefix      = "rel:"
	communitiesKey = "rel:communities:all"
)

// Service decorates a Backend with a TTL cache. Methods it does not
// override pass straight through to the embedded Backend.
type Service struct {
	Backend
	communities CommunitySource
	store       Store
	group       singleflight.Group
	logger      *zap.Logger
}

// NewService wraps backend and communities with store
func NewService(backend Backend, communities CommunitySource, store Store) *Service {
	return &Service{
		Backend:     backend,
		communities: communities,
		store:       store,
		logger:      logger.Named("cache"),
	}
}

// Key builds a cache key from an operation and its arguments. Arguments are
// escaped so a ':' inside a player name can never shift the key layout.
func Key(op string, args ...string) string {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = url.QueryEscape(arg)
	}
	return keyPrefix + op + ":" + strings.Join(escaped, ":")
}

func canonical(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func timeArg(t time.Time) string {
	return strconv.FormatInt(t.UTC().Unix(), 10)
}

// cached serves key from the store or loads, stores and returns it. Store
// faults are logged and treated as misses.
func cached[T any](ctx context.Context, s *Service, op, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	raw, found, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues(op, "error").Inc()
		s.logger.Warn("Cache read failed, falling through", zap.String("key", key), zap.Error(err))
	case found:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			metrics.CacheRequests.WithLabelValues(op, "hit").Inc()
			return v, nil
		}
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	}
	metrics.CacheRequests.WithLabelValues(op, "miss").Inc()

	// the shared load outlives any single caller; each caller still stops
	// waiting when its own context ends
	flight := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		val, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.put(loadCtx, key, val, ttl)
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, errors.NewContextCancelled("cache "+op, ctx.Err())
	case res := <-flight:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (s *Service) put(ctx context.Context, key string, val any, ttl time.Duration) {
	raw, err := json.Marshal(val)
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, key, raw, ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Teammates is cached for 30 minutes
func (s *Service) Teammates(ctx context.Context, player string, limit int) ([]graph.Teammate, error) {
	limit = relationships.TeammateLimit(limit)
	return cached(ctx, s, "teammates", Key("teammates", player, strconv.Itoa(limit)), constants.TTLTeammates,
		func(ctx context.Context) ([]graph.Teammate, error) {
			return s.Backend.Teammates(ctx, player, limit)
		})
}

// SharedServers is cached per unordered pair
func (s *Service) SharedServers(ctx context.Context, playerA, playerB string) ([]graph.SharedServer, error) {
	a, b := canonical(playerA, playerB)
	return cached(ctx, s, "shared_servers", Key("shared_servers", a, b), constants.TTLSharedServers,
		func(ctx context.Context) ([]graph.SharedServer, error) {
			return s.Backend.SharedServers(ctx, a, b)
		})
}

// Relationship is cached per unordered pair, including the absent answer
func (s *Service) Relationship(ctx context.Context, playerA, playerB string) (*graph.Relationship, error) {
	a, b := canonical(playerA, playerB)
	return cached(ctx, s, "relationship", Key("relationship", a, b), constants.TTLRelationship,
		func(ctx context.Context) (*graph.Relationship, error) {
			return s.Backend.Relationship(ctx, a, b)
		})
}

func (s *Service) NetworkStats(ctx context.Context, player string) (*graph.NetworkStats, error) {
	return cached(ctx, s, "network_stats", Key("network_stats", player), constants.TTLNetworkStats,
		func(ctx context.Context) (*graph.NetworkStats, error) {
			return s.Backend.NetworkStats(ctx, player)
		})
}

func (s *Service) NetworkGraph(ctx context.Context, player string, depth, maxNodes int) (*graph.NetworkGraph, error) {
	depth, maxNodes = relationships.GraphBounds(depth, maxNodes)
	key := Key("network_graph", player, strconv.Itoa(depth), strconv.Itoa(maxNodes))
	return cached(ctx, s, "network_graph", key, constants.TTLNetworkGraph,
		func(ctx context.Context) (*graph.NetworkGraph, error) {
			return s.Backend.NetworkGraph(ctx, player, depth, maxNodes)
		})
}

func (s *Service) MigrationFlow(ctx context.Context, from, to time.Time) (*relationships.MigrationFlow, error) {
	return cached(ctx, s, "migration", Key("migration", timeArg(from), timeArg(to)), constants.TTLMigrationFlow,
		func(ctx context.Context) (*relationships.MigrationFlow, error) {
			return s.Backend.MigrationFlow(ctx, from, to)
		})
}

func (s *Service) ServerLifecycle(ctx context.Context, serverID string, from, to time.Time) (*relationships.ServerFlow, error) {
	key := Key("lifecycle", serverID, timeArg(from), timeArg(to))
	return cached(ctx, s, "lifecycle", key, constants.TTLServerLifecycle,
		func(ctx context.Context) (*relationships.ServerFlow, error) {
			return s.Backend.ServerLifecycle(ctx, serverID, from, to)
		})
}

// Communities serves the community listing for 24 hours
func (s *Service) Communities(ctx context.Context) ([]graph.Community, error) {
	return cached(ctx, s, "communities", communitiesKey, constants.TTLCommunities,
		func(ctx context.Context) ([]graph.Community, error) {
			return s.communities.Communities(ctx)
		})
}

// RefreshCommunities replaces the cached listing after a detection run
func (s *Service) RefreshCommunities(ctx context.Context, communities []graph.Community) {
	if err := s.store.Delete(ctx, communitiesKey); err != nil {
		s.logger.Warn("Failed to clear community cache", zap.Error(err))
	}
	if communities == nil {
		communities = []graph.Community{}
	}
	s.put(ctx, communitiesKey, communities, constants.TTLCommunities)
}

// InvalidatePlayer drops every entry keyed by player alone
func (s *Service) InvalidatePlayer(ctx context.Context, player string) error {
	if err := s.store.DeletePrefix(ctx, Key("teammates", player)+":"); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Key("network_stats", player)); err != nil {
		return err
	}
	return s.store.DeletePrefix(ctx, Key("network_graph", player)+":")
}

// InvalidatePair drops the pair-keyed entries for a and b
func (s *Service) InvalidatePair(ctx context.Context, playerA, playerB string) error {
	a, b := canonical(playerA, playerB)
	if err := s.store.Delete(ctx, Key("relationship", a, b)); err != nil {
		return err
	}
	return s.store.Delete(ctx, Key("shared_servers", a, b))
}
