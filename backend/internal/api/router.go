// Package api maps HTTP requests onto the relationship, community and alias
// operations.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"squadgraph/backend/internal/alias"
	"squadgraph/backend/internal/community"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/relationships"
	"squadgraph/backend/pkg/logger"
)

// Queries is the relationship read surface, cached or not
type Queries interface {
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
	Communities(ctx context.Context) ([]graph.Community, error)
}

// Communities runs detection and looks up memberships
type Communities interface {
	Run(ctx context.Context) (*community.RunResult, error)
	PlayerCommunity(ctx context.Context, player string) (*graph.Community, error)
}

// Aliases scores alias suspicion
type Aliases interface {
	Check(ctx context.Context, playerA, playerB string) (*alias.Report, error)
	Timeline(ctx context.Context, playerA, playerB string) (*alias.ActivityTimeline, error)
	RecordFeedback(ctx context.Context, fb graph.AliasFeedback) error
	Feedback(ctx context.Context, playerA, playerB string) ([]graph.AliasFeedback, error)
}

// Invalidator drops cached entries after out-of-band writes
type Invalidator interface {
	InvalidatePlayer(ctx context.Context, player string) error
	InvalidatePair(ctx context.Context, playerA, playerB string) error
}

// Deps are the handler dependencies. Invalidator may be nil.
type Deps struct {
	Queries      Queries
	Communities  Communities
	Aliases      Aliases
	Invalidator  Invalidator
	AliasTimeout time.Duration
}

// Handler serves the API
type Handler struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:   deps,
		logger: logger.Named("api"),
		now:    time.Now,
	}
}

// Register mounts every route on router
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		players := api.Group("/players/:name")
		players.GET("/teammates", h.teammates)
		players.GET("/potential-connections", h.potentialConnections)
		players.GET("/recent-connections", h.recentConnections)
		players.GET("/network", h.networkStats)
		players.GET("/graph", h.networkGraph)
		players.GET("/squads", h.squads)
		players.GET("/community", h.playerCommunity)

		pairs := api.Group("/pairs/:a/:b")
		pairs.GET("", h.relationship)
		pairs.GET("/shared-servers", h.sharedServers)

		servers := api.Group("/servers/:id")
		servers.GET("/social", h.serverSocial)
		servers.GET("/lifecycle", h.serverLifecycle)

		api.GET("/migration", h.migration)

		api.GET("/communities", h.communities)
		api.POST("/communities/refresh", h.refreshCommunities)

		api.GET("/alias/:a/:b", h.aliasCheck)
		api.GET("/alias/:a/:b/timeline", h.aliasTimeline)
		api.GET("/alias/:a/:b/feedback", h.aliasFeedbackList)
		api.POST("/alias/feedback", h.aliasFeedback)

		api.DELETE("/cache/players/:name", h.invalidatePlayer)
		api.DELETE("/cache/pairs/:a/:b", h.invalidatePair)
	}
}

// NewRouter builds a gin engine with logging, recovery and metrics
func NewRouter(h *Handler, production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(RequestLogger(h.logger))
	router.Use(gin.Recovery())
	router.Use(Metrics())
	h.Register(router)
	return router
}
