// Package etl turns per-round player observations into the undirected
// co-play graph and per-server play edges.
package etl

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"squadgraph/backend/internal/constants"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/metrics"
	"squadgraph/backend/internal/sessions"
	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

// SessionSource pages rounds and player+server aggregates out of the
// relational session store
type SessionSource interface {
	RoundsPage(ctx context.Context, from, to time.Time, after sessions.RoundCursor, limit int) ([]sessions.Round, error)
	PlayerServerPage(ctx context.Context, from, to time.Time, after sessions.PlayerServerCursor, limit int) ([]sessions.PlayerServerActivity, error)
}

// GraphWriter commits one flush atomically
type GraphWriter interface {
	UpsertCoPlayBatch(ctx context.Context, players []graph.PlayerUpsert, pairs []graph.RelationshipUpsert) error
	UpsertPlaysOnBatch(ctx context.Context, servers []graph.Server, edges []graph.PlaysOnUpsert) error
}

// Options bound memory use of a sync run
type Options struct {
	RoundPageSize        int
	FlushEveryRounds     int
	MaxPendingPairs      int
	PlayerServerPageSize int
}

func (o Options) withDefaults() Options {
	if o.RoundPageSize <= 0 {
		o.RoundPageSize = constants.DefaultRoundPageSize
	}
	if o.FlushEveryRounds <= 0 {
		o.FlushEveryRounds = constants.DefaultFlushEveryRounds
	}
	if o.MaxPendingPairs <= 0 {
		o.MaxPendingPairs = constants.DefaultMaxPendingPairs
	}
	if o.PlayerServerPageSize <= 0 {
		o.PlayerServerPageSize = constants.DefaultPlayerServerPageSize
	}
	return o
}

// SyncResult reports what a run committed
type SyncResult struct {
	RunID           string        `json:"run_id"`
	From            time.Time     `json:"from"`
	To              time.Time     `json:"to"`
	RoundsProcessed int           `json:"rounds_processed"`
	PairsUpserted   int           `json:"pairs_upserted"`
	PlayersUpserted int           `json:"players_upserted"`
	EdgesUpserted   int           `json:"edges_upserted,omitempty"`
	Flushes         int           `json:"flushes"`
	Duration        time.Duration `json:"duration"`
}

// Pipeline syncs the session store into the graph. Runs over overlapping
// ranges double-count sessions and must be serialized by the caller.
type Pipeline struct {
	source SessionSource
	writer GraphWriter
	opts   Options
	logger *zap.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(source SessionSource, writer GraphWriter, opts Options) *Pipeline {
	return &Pipeline{
		source: source,
		writer: writer,
		opts:   opts.withDefaults(),
		logger: logger.Named("etl"),
	}
}

// batch tracks the round range folded into the pending accumulator
type batch struct {
	rounds     int
	firstID    string
	lastID     string
	firstStart time.Time
	lastStart  time.Time
}

func (b *batch) add(r sessions.Round) {
	if b.rounds == 0 {
		b.firstID, b.firstStart = r.ID, r.StartTime
	}
	b.lastID, b.lastStart = r.ID, r.StartTime
	b.rounds++
}

// SyncRange processes every round starting in [from, to). Each flush commits
// on its own; on a flush failure the returned error is an
// *errors.ErrBatchFailure and the result reflects the flushes that committed.
func (p *Pipeline) SyncRange(ctx context.Context, from, to time.Time) (*SyncResult, error) {
	if !from.Before(to) {
		return nil, errors.NewInvalidArgument("range", "from must be before to")
	}

	started := time.Now()
	result := &SyncResult{RunID: uuid.NewString(), From: from, To: to}

	ctx, span := otel.Tracer("squadgraph").Start(ctx, "etl.Pipeline.SyncRange")
	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.String("from", from.UTC().Format(time.RFC3339)),
		attribute.String("to", to.UTC().Format(time.RFC3339)),
	)
	defer span.End()

	log := p.logger.With(zap.String("run_id", result.RunID))
	log.Info("Relationship sync started",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("page_size", p.opts.RoundPageSize),
		zap.Int("flush_every_rounds", p.opts.FlushEveryRounds),
	)

	acc := NewAccumulator()
	pending := &batch{}

	flush := func() error {
		if pending.rounds == 0 && acc.PairCount() == 0 {
			return nil
		}
		players, pairs := acc.Drain()
		flushStart := time.Now()

		if err := p.writer.UpsertCoPlayBatch(ctx, players, pairs); err != nil {
			metrics.ETLFlushes.WithLabelValues("coplay", "error").Inc()
			return errors.NewBatchFailure(result.RunID, result.Flushes, len(pairs),
				pending.firstID, pending.lastID, pending.firstStart, pending.lastStart, err)
		}

		metrics.ETLFlushes.WithLabelValues("coplay", "ok").Inc()
		metrics.ETLFlushDuration.WithLabelValues("coplay").Observe(time.Since(flushStart).Seconds())
		metrics.ETLPairs.Add(float64(len(pairs)))

		result.Flushes++
		result.PairsUpserted += len(pairs)
		result.PlayersUpserted += len(players)
		log.Info("Flush committed",
			zap.Int("flush", result.Flushes),
			zap.Int("rounds", pending.rounds),
			zap.Int("pairs", len(pairs)),
			zap.String("first_round", pending.firstID),
			zap.String("last_round", pending.lastID),
			zap.Duration("duration", time.Since(flushStart)),
		)
		*pending = batch{}
		return nil
	}

	cursor := sessions.RoundCursor{}
	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return result, errors.NewContextCancelled("sync range", err)
		}

		page, err := p.source.RoundsPage(ctx, from, to, cursor, p.opts.RoundPageSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "page read failed")
			return result, err
		}
		if len(page) == 0 {
			break
		}

		for _, round := range page {
			acc.AddRound(round)
			pending.add(round)
			result.RoundsProcessed++
			metrics.ETLRounds.Inc()

			if pending.rounds >= p.opts.FlushEveryRounds || acc.PairCount() > p.opts.MaxPendingPairs {
				if err := flush(); err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, "flush failed")
					return result, err
				}
			}
		}

		last := page[len(page)-1]
		cursor = sessions.RoundCursor{StartTime: last.StartTime, RoundID: last.ID}
		if len(page) < p.opts.RoundPageSize {
			break
		}
	}

	if err := flush(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "final flush failed")
		return result, err
	}

	result.Duration = time.Since(started)
	span.SetAttributes(
		attribute.Int("rounds", result.RoundsProcessed),
		attribute.Int("pairs", result.PairsUpserted),
		attribute.Int("flushes", result.Flushes),
	)
	span.SetStatus(codes.Ok, "synced")
	log.Info("Relationship sync finished",
		zap.Int("rounds", result.RoundsProcessed),
		zap.Int("pairs", result.PairsUpserted),
		zap.Int("flushes", result.Flushes),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
