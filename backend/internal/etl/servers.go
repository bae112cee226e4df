package etl

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/metrics"
	"squadgraph/backend/internal/sessions"
	"squadgraph/backend/pkg/errors"
)

// SyncPlayerServers aggregates sessions starting in [from, to) per
// player+server and upserts Server nodes and PLAYS_ON edges, one
// transaction per page
func (p *Pipeline) SyncPlayerServers(ctx context.Context, from, to time.Time) (*SyncResult, error) {
	if !from.Before(to) {
		return nil, errors.NewInvalidArgument("range", "from must be before to")
	}

	started := time.Now()
	result := &SyncResult{RunID: uuid.NewString(), From: from, To: to}

	ctx, span := otel.Tracer("squadgraph").Start(ctx, "etl.Pipeline.SyncPlayerServers")
	span.SetAttributes(attribute.String("run_id", result.RunID))
	defer span.End()

	log := p.logger.With(zap.String("run_id", result.RunID), zap.String("pass", "plays_on"))
	log.Info("Player-server sync started", zap.Time("from", from), zap.Time("to", to))

	cursor := sessions.PlayerServerCursor{}
	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return result, errors.NewContextCancelled("sync player servers", err)
		}

		page, err := p.source.PlayerServerPage(ctx, from, to, cursor, p.opts.PlayerServerPageSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "page read failed")
			return result, err
		}
		if len(page) == 0 {
			break
		}

		servers, edges := playsOnBatch(page)
		flushStart := time.Now()
		if err := p.writer.UpsertPlaysOnBatch(ctx, servers, edges); err != nil {
			metrics.ETLFlushes.WithLabelValues("plays_on", "error").Inc()
			first, last := page[0], page[len(page)-1]
			batchErr := errors.NewBatchFailure(result.RunID, result.Flushes, len(edges),
				first.PlayerName+"@"+first.ServerID, last.PlayerName+"@"+last.ServerID,
				first.FirstSeen, last.FirstSeen, err)
			span.RecordError(batchErr)
			span.SetStatus(codes.Error, "flush failed")
			return result, batchErr
		}
		metrics.ETLFlushes.WithLabelValues("plays_on", "ok").Inc()
		metrics.ETLFlushDuration.WithLabelValues("plays_on").Observe(time.Since(flushStart).Seconds())

		result.Flushes++
		result.EdgesUpserted += len(edges)
		log.Debug("Plays-on page committed", zap.Int("edges", len(edges)), zap.Int("servers", len(servers)))

		last := page[len(page)-1]
		cursor = sessions.PlayerServerCursor{PlayerName: last.PlayerName, ServerID: last.ServerID}
		if len(page) < p.opts.PlayerServerPageSize {
			break
		}
	}

	result.Duration = time.Since(started)
	span.SetAttributes(attribute.Int("edges", result.EdgesUpserted))
	span.SetStatus(codes.Ok, "synced")
	log.Info("Player-server sync finished",
		zap.Int("edges", result.EdgesUpserted),
		zap.Int("flushes", result.Flushes),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func playsOnBatch(page []sessions.PlayerServerActivity) ([]graph.Server, []graph.PlaysOnUpsert) {
	seen := make(map[string]bool)
	servers := make([]graph.Server, 0)
	edges := make([]graph.PlaysOnUpsert, 0, len(page))
	for _, a := range page {
		if !seen[a.ServerID] {
			seen[a.ServerID] = true
			servers = append(servers, graph.Server{ID: a.ServerID, Name: a.ServerName, Game: a.GameID})
		}
		edges = append(edges, graph.PlaysOnUpsert{
			Player:     a.PlayerName,
			ServerID:   a.ServerID,
			Count:      a.Sessions,
			FirstSeen:  a.FirstSeen,
			LastPlayed: a.LastSeen,
		})
	}
	return servers, edges
}
