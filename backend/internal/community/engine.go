// Package community clusters players connected by strong PLAYED_WITH edges
// and rebuilds the Community nodes from scratch on every run.
package community

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"squadgraph/backend/internal/constants"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/metrics"
	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

// Algorithm names
const (
	AlgorithmLeader    = "leader"
	AlgorithmUnionFind = "union-find"
)

// Store is the graph access community detection needs
type Store interface {
	StrongEdges(ctx context.Context, minSessions int64) ([]graph.Relationship, error)
	PlayCounts(ctx context.Context, players []string) ([]graph.PlaysOn, error)
	ReplaceCommunities(ctx context.Context, communities []graph.Community) error
	Communities(ctx context.Context) ([]graph.Community, error)
	PlayerCommunity(ctx context.Context, player string) (*graph.Community, error)
}

// Refresher replaces the cached community listing after a run
type Refresher interface {
	RefreshCommunities(ctx context.Context, communities []graph.Community)
}

// Config tunes detection
type Config struct {
	MinSessions int64
	MinSize     int
	Algorithm   string
}

// RunResult summarises one detection run
type RunResult struct {
	Algorithm   string        `json:"algorithm"`
	StrongEdges int           `json:"strong_edges"`
	Communities int           `json:"communities"`
	Members     int           `json:"members"`
	Duration    time.Duration `json:"duration"`
}

// Engine runs community detection
type Engine struct {
	store     Store
	refresher Refresher
	cfg       Config
	logger    *zap.Logger
}

// NewEngine creates an engine. refresher may be nil.
func NewEngine(store Store, refresher Refresher, cfg Config) *Engine {
	if cfg.MinSessions <= 0 {
		cfg.MinSessions = constants.DefaultCommunityMinSessions
	}
	if cfg.MinSize <= 0 {
		cfg.MinSize = constants.DefaultCommunityMinSize
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmLeader
	}
	return &Engine{
		store:     store,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger.Named("community"),
	}
}

// Detect computes communities without writing them
func (e *Engine) Detect(ctx context.Context) ([]graph.Community, int, error) {
	edges, err := e.store.StrongEdges(ctx, e.cfg.MinSessions)
	if err != nil {
		return nil, 0, err
	}

	var groups Groups
	switch e.cfg.Algorithm {
	case AlgorithmUnionFind:
		groups = UnionFindDetect(edges, e.cfg.MinSize)
	default:
		groups = LeaderDetect(edges, e.cfg.MinSize)
	}

	members := make([]string, 0)
	for _, ms := range groups {
		members = append(members, ms...)
	}
	plays, err := e.store.PlayCounts(ctx, members)
	if err != nil {
		return nil, len(edges), err
	}

	return Build(groups, edges, plays), len(edges), nil
}

// Run detects communities, replaces every Community node in one transaction
// and refreshes the cached listing. A failed run leaves the previous
// communities in place.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	ctx, span := otel.Tracer("squadgraph").Start(ctx, "community.Engine.Run")
	span.SetAttributes(
		attribute.String("algorithm", e.cfg.Algorithm),
		attribute.Int64("min_sessions", e.cfg.MinSessions),
	)
	defer span.End()

	communities, edgeCount, err := e.Detect(ctx)
	if err != nil {
		metrics.CommunityRuns.WithLabelValues(e.cfg.Algorithm, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "detect failed")
		return nil, err
	}

	if err := e.store.ReplaceCommunities(ctx, communities); err != nil {
		metrics.CommunityRuns.WithLabelValues(e.cfg.Algorithm, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		return nil, err
	}

	if e.refresher != nil {
		e.refresher.RefreshCommunities(ctx, communities)
	}

	result := &RunResult{
		Algorithm:   e.cfg.Algorithm,
		StrongEdges: edgeCount,
		Communities: len(communities),
		Duration:    time.Since(started),
	}
	for _, c := range communities {
		result.Members += len(c.Members)
	}

	metrics.CommunityRuns.WithLabelValues(e.cfg.Algorithm, "ok").Inc()
	metrics.CommunitiesDetected.Set(float64(len(communities)))
	span.SetAttributes(attribute.Int("communities", result.Communities))
	span.SetStatus(codes.Ok, "replaced")

	e.logger.Info("Community detection finished",
		zap.String("algorithm", result.Algorithm),
		zap.Int("strong_edges", result.StrongEdges),
		zap.Int("communities", result.Communities),
		zap.Int("members", result.Members),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Communities lists the stored communities
func (e *Engine) Communities(ctx context.Context) ([]graph.Community, error) {
	return e.store.Communities(ctx)
}

// PlayerCommunity returns the player's community, or nil when the player is
// in none
func (e *Engine) PlayerCommunity(ctx context.Context, player string) (*graph.Community, error) {
	c, err := e.store.PlayerCommunity(ctx, player)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}
