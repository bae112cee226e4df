// Package app wires stores, services and engines from configuration. Both
// the HTTP server and the batch CLI build on it.
package app

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"squadgraph/backend/internal/alias"
	"squadgraph/backend/internal/cache"
	"squadgraph/backend/internal/community"
	"squadgraph/backend/internal/etl"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/relationships"
	"squadgraph/backend/internal/sessions"
	"squadgraph/backend/pkg/config"
	"squadgraph/backend/pkg/logger"
)

// App holds every long-lived component
type App struct {
	Config        *config.Config
	Graph         *graph.Repository
	Sessions      *sessions.Store
	CacheStore    cache.Store
	Relationships *relationships.Service
	Cached        *cache.Service
	Communities   *community.Engine
	Aliases       *alias.Engine
	Pipeline      *etl.Pipeline

	logger *zap.Logger
}

// New connects to Neo4j and SQLite, opens the cache and builds the services.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("app")
	a := &App{Config: cfg, logger: log}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}
	a.Graph = graph.NewRepository(driver, cfg.Neo4jDatabase)

	if err := a.Graph.EnsureIndexes(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Sessions, err = sessions.Open(ctx, cfg.SessionDBPath, cfg.SessionPoolSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.CacheEnabled {
		store, err := cache.OpenBadger(cfg.CacheDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.CacheStore = store
	} else {
		a.CacheStore = cache.NopStore{}
	}

	aliasCfg, err := alias.LoadConfig(cfg.AliasConfigPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Relationships = relationships.NewService(a.Graph)
	a.Cached = cache.NewService(a.Relationships, a.Graph, a.CacheStore)
	a.Communities = community.NewEngine(a.Graph, a.Cached, community.Config{
		MinSessions: int64(cfg.CommunityMinSessions),
		MinSize:     cfg.CommunityMinSize,
		Algorithm:   cfg.CommunityAlgorithm,
	})
	a.Aliases = alias.NewEngine(a.Sessions, a.Graph, aliasCfg)
	a.Pipeline = etl.NewPipeline(a.Sessions, a.Graph, etl.Options{
		RoundPageSize:    cfg.RoundPageSize,
		FlushEveryRounds: cfg.FlushEveryRounds,
		MaxPendingPairs:  cfg.MaxPendingPairs,
	})

	log.Info("Application wired",
		zap.String("neo4j_uri", cfg.Neo4jURI),
		zap.String("session_db", cfg.SessionDBPath),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
		zap.String("community_algorithm", cfg.CommunityAlgorithm),
	)
	return a, nil
}

// Close releases stores in reverse order of opening
func (a *App) Close() {
	if a.CacheStore != nil {
		if err := a.CacheStore.Close(); err != nil {
			a.logger.Warn("Failed to close cache", zap.Error(err))
		}
	}
	if a.Sessions != nil {
		if err := a.Sessions.Close(); err != nil {
			a.logger.Warn("Failed to close session store", zap.Error(err))
		}
	}
	if a.Graph != nil {
		if err := a.Graph.Close(); err != nil {
			a.logger.Warn("Failed to close Neo4j driver", zap.Error(err))
		}
	}
}
