package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"squadgraph/backend/internal/constants"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/pkg/errors"
)

// fail maps core errors onto status codes
func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.IsErrorType(err, errors.ErrorTypeInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.IsStoreUnavailable(err):
		h.logger.Warn("Store unavailable", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Backing store unavailable"})
	case errors.IsErrorType(err, errors.ErrorTypeContext):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request cancelled"})
	default:
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidArgument(name, "must be an integer")
	}
	return v, nil
}

// timeRange reads from/to as RFC3339, defaulting to the trailing 30 days
func (h *Handler) timeRange(c *gin.Context) (time.Time, time.Time, error) {
	to := h.now().UTC()
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewInvalidArgument("to", "must be RFC3339")
		}
		to = t
	}
	from := to.AddDate(0, 0, -constants.DefaultRecentDays)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewInvalidArgument("from", "must be RFC3339")
		}
		from = t
	}
	return from, to, nil
}

func (h *Handler) teammates(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		h.fail(c, "teammates", err)
		return
	}
	out, err := h.deps.Queries.Teammates(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		h.fail(c, "teammates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": c.Param("name"), "teammates": out})
}

func (h *Handler) potentialConnections(c *gin.Context) {
	days, err := intQuery(c, "days")
	if err != nil {
		h.fail(c, "potential connections", err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		h.fail(c, "potential connections", err)
		return
	}
	out, err := h.deps.Queries.PotentialConnections(c.Request.Context(), c.Param("name"), days, limit)
	if err != nil {
		h.fail(c, "potential connections", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": c.Param("name"), "connections": out})
}

func (h *Handler) recentConnections(c *gin.Context) {
	days, err := intQuery(c, "days")
	if err != nil {
		h.fail(c, "recent connections", err)
		return
	}
	out, err := h.deps.Queries.RecentConnections(c.Request.Context(), c.Param("name"), days)
	if err != nil {
		h.fail(c, "recent connections", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": c.Param("name"), "connections": out})
}

func (h *Handler) networkStats(c *gin.Context) {
	out, err := h.deps.Queries.NetworkStats(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "network stats", err)
		return
	}
	if out == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) networkGraph(c *gin.Context) {
	depth, err := intQuery(c, "depth")
	if err != nil {
		h.fail(c, "network graph", err)
		return
	}
	maxNodes, err := intQuery(c, "max_nodes")
	if err != nil {
		h.fail(c, "network graph", err)
		return
	}
	out, err := h.deps.Queries.NetworkGraph(c.Request.Context(), c.Param("name"), depth, maxNodes)
	if err != nil {
		h.fail(c, "network graph", err)
		return
	}
	if out == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) squads(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		h.fail(c, "squads", err)
		return
	}
	out, err := h.deps.Queries.SquadRecommendations(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		h.fail(c, "squads", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": c.Param("name"), "recommendations": out})
}

func (h *Handler) playerCommunity(c *gin.Context) {
	out, err := h.deps.Communities.PlayerCommunity(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "player community", err)
		return
	}
	if out == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player is not in a community"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) relationship(c *gin.Context) {
	out, err := h.deps.Queries.Relationship(c.Request.Context(), c.Param("a"), c.Param("b"))
	if err != nil {
		h.fail(c, "relationship", err)
		return
	}
	if out == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Relationship not found"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) sharedServers(c *gin.Context) {
	out, err := h.deps.Queries.SharedServers(c.Request.Context(), c.Param("a"), c.Param("b"))
	if err != nil {
		h.fail(c, "shared servers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": out})
}

func (h *Handler) serverSocial(c *gin.Context) {
	out, err := h.deps.Queries.ServerSocialStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "server social stats", err)
		return
	}
	if out == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) serverLifecycle(c *gin.Context) {
	from, to, err := h.timeRange(c)
	if err != nil {
		h.fail(c, "server lifecycle", err)
		return
	}
	out, err := h.deps.Queries.ServerLifecycle(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.fail(c, "server lifecycle", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) migration(c *gin.Context) {
	from, to, err := h.timeRange(c)
	if err != nil {
		h.fail(c, "migration flow", err)
		return
	}
	out, err := h.deps.Queries.MigrationFlow(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, "migration flow", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) communities(c *gin.Context) {
	out, err := h.deps.Queries.Communities(c.Request.Context())
	if err != nil {
		h.fail(c, "communities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": out, "count": len(out)})
}

func (h *Handler) refreshCommunities(c *gin.Context) {
	result, err := h.deps.Communities.Run(c.Request.Context())
	if err != nil {
		h.fail(c, "community run", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) aliasContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.deps.AliasTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.deps.AliasTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

func (h *Handler) aliasCheck(c *gin.Context) {
	ctx, cancel := h.aliasContext(c)
	defer cancel()

	report, err := h.deps.Aliases.Check(ctx, c.Param("a"), c.Param("b"))
	if err != nil {
		h.fail(c, "alias check", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) aliasTimeline(c *gin.Context) {
	ctx, cancel := h.aliasContext(c)
	defer cancel()

	out, err := h.deps.Aliases.Timeline(ctx, c.Param("a"), c.Param("b"))
	if err != nil {
		h.fail(c, "alias timeline", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) aliasFeedback(c *gin.Context) {
	var req struct {
		PlayerA  string  `json:"player_a" binding:"required"`
		PlayerB  string  `json:"player_b" binding:"required"`
		Verdict  string  `json:"verdict" binding:"required"`
		Note     string  `json:"note"`
		Reviewer string  `json:"reviewer"`
		Score    float64 `json:"score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.deps.Aliases.RecordFeedback(c.Request.Context(), graph.AliasFeedback{
		PlayerA:  req.PlayerA,
		PlayerB:  req.PlayerB,
		Verdict:  req.Verdict,
		Note:     req.Note,
		Reviewer: req.Reviewer,
		Score:    req.Score,
	})
	if err != nil {
		h.fail(c, "alias feedback", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *Handler) aliasFeedbackList(c *gin.Context) {
	feedback, err := h.deps.Aliases.Feedback(c.Request.Context(), c.Param("a"), c.Param("b"))
	if err != nil {
		h.fail(c, "alias feedback list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": feedback})
}

func (h *Handler) invalidatePlayer(c *gin.Context) {
	if h.deps.Invalidator == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.deps.Invalidator.InvalidatePlayer(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, "invalidate player", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) invalidatePair(c *gin.Context) {
	if h.deps.Invalidator == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.deps.Invalidator.InvalidatePair(c.Request.Context(), c.Param("a"), c.Param("b")); err != nil {
		h.fail(c, "invalidate pair", err)
		return
	}
	c.Status(http.StatusNoContent)
}
