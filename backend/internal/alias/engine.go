package alias

import (
	"context"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/metrics"
	"squadgraph/backend/internal/sessions"
	"squadgraph/backend/pkg/errors"
	"squadgraph/backend/pkg/logger"
)

// SessionStats is the session-store access the analyzers need
type SessionStats interface {
	Totals(ctx context.Context, player string) (*sessions.PlayerTotals, error)
	MapKD(ctx context.Context, player string) (map[string]float64, error)
	ServerKD(ctx context.Context, player string) (map[string]float64, error)
	HourHistogram(ctx context.Context, player string, lookback time.Duration) ([24]float64, error)
	ServerSet(ctx context.Context, player string) ([]string, error)
	ServerPings(ctx context.Context, player string) (map[string]float64, error)
	Pattern(ctx context.Context, player string) (*sessions.SessionPattern, error)
	Activity(ctx context.Context, player string) (*sessions.ActivitySpan, error)
	CoSessions(ctx context.Context, playerA, playerB string) (int, error)
}

// GraphSignals is the graph access the analyzers need
type GraphSignals interface {
	TeammateNames(ctx context.Context, player string) ([]string, error)
	Relationship(ctx context.Context, playerA, playerB string) (*graph.Relationship, error)
	RecordAliasFeedback(ctx context.Context, fb graph.AliasFeedback) error
	AliasFeedbackFor(ctx context.Context, playerA, playerB string) ([]graph.AliasFeedback, error)
}

// Report is the full alias assessment for a pair
type Report struct {
	PlayerA      string             `json:"player_a"`
	PlayerB      string             `json:"player_b"`
	Stats        StatAnalysis       `json:"stat_analysis"`
	Behavior     BehavioralAnalysis `json:"behavioral_analysis"`
	Network      NetworkAnalysis    `json:"network_analysis"`
	Temporal     TemporalAnalysis   `json:"temporal_analysis"`
	Timeline     ActivityTimeline   `json:"timeline"`
	Weights      Weights            `json:"weights"`
	OverallScore float64            `json:"overall_score"`
	Level        Level              `json:"suspicion_level"`
	Confidence   float64            `json:"confidence"`
	RedFlags     []Flag             `json:"red_flags"`
	GreenFlags   []Flag             `json:"green_flags"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// Verdicts accepted as operator feedback
const (
	VerdictConfirmed = "confirmed"
	VerdictRejected  = "rejected"
)

// Engine runs the analyzers and fuses their signals
type Engine struct {
	sessions SessionStats
	graph    GraphSignals
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an alias engine. The weights in cfg are normalised.
func NewEngine(stats SessionStats, g GraphSignals, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MinStatRounds <= 0 {
		cfg.MinStatRounds = def.MinStatRounds
	}
	if cfg.HourLookbackDays <= 0 {
		cfg.HourLookbackDays = def.HourLookbackDays
	}
	cfg.Weights = cfg.Weights.Normalized()

	return &Engine{
		sessions: stats,
		graph:    g,
		cfg:      cfg,
		logger:   logger.Named("alias"),
		now:      time.Now,
	}
}

// Weights returns the normalised weights in use
func (e *Engine) Weights() Weights {
	return e.cfg.Weights
}

func validatePair(a, b string) (string, string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" {
		return "", "", errors.NewInvalidArgument("player_a", "must not be empty")
	}
	if b == "" {
		return "", "", errors.NewInvalidArgument("player_b", "must not be empty")
	}
	if a == b {
		return "", "", errors.NewInvalidArgument("player_b", "must differ from player_a")
	}
	return a, b, nil
}

// Check runs all five analyzers concurrently and fuses the result. An
// analyzer that errors contributes its neutral score tagged Failed; only
// argument errors and cancellation fail the whole check.
func (e *Engine) Check(ctx context.Context, playerA, playerB string) (*Report, error) {
	a, b, err := validatePair(playerA, playerB)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("squadgraph").Start(ctx, "alias.Check")
	defer span.End()
	span.SetAttributes(attribute.String("player_a", a), attribute.String("player_b", b))

	report := &Report{PlayerA: a, PlayerB: b, Weights: e.cfg.Weights}

	// Analyzer errors are absorbed so the group never short-circuits
	var g errgroup.Group
	g.Go(func() error {
		res, err := e.analyzeStats(ctx, a, b)
		if err != nil {
			res = StatAnalysis{Signal: e.fallback("stat", statNeutral, err)}
		}
		report.Stats = res
		return nil
	})
	g.Go(func() error {
		res, err := e.analyzeBehavior(ctx, a, b)
		if err != nil {
			res = BehavioralAnalysis{Signal: e.fallback("behavioral", 0.5, err), PingSimilarity: pingNoData, CommonServers: []string{}}
		}
		report.Behavior = res
		return nil
	})
	g.Go(func() error {
		res, err := e.analyzeNetwork(ctx, a, b)
		if err != nil {
			res = NetworkAnalysis{Signal: e.fallback("network", networkNeutral, err)}
		}
		report.Network = res
		return nil
	})
	g.Go(func() error {
		res, err := e.analyzeTemporal(ctx, a, b)
		if err != nil {
			res = TemporalAnalysis{Signal: e.fallback("temporal", temporalNeutral, err)}
		}
		report.Temporal = res
		return nil
	})
	g.Go(func() error {
		res, err := e.analyzeTimeline(ctx, a, b)
		if err != nil {
			res = ActivityTimeline{Signal: e.fallback("timeline", timelineNeutral, err), Pattern: PatternUnknown}
		}
		report.Timeline = res
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, errors.NewContextCancelled("alias check", err)
	}

	for _, sig := range []struct {
		name string
		s    Signal
	}{
		{"stat", report.Stats.Signal},
		{"behavioral", report.Behavior.Signal},
		{"network", report.Network.Signal},
		{"temporal", report.Temporal.Signal},
		{"timeline", report.Timeline.Signal},
	} {
		if sig.s.Sufficiency == Insufficient {
			metrics.AliasAnalyzerFallbacks.WithLabelValues(sig.name, sig.s.Sufficiency.String()).Inc()
		}
	}

	report.OverallScore = round3(Fuse(Scores{
		Stat:       report.Stats.Score,
		Behavioral: report.Behavior.Score,
		Network:    report.Network.Score,
		Temporal:   report.Temporal.Score,
		Timeline:   report.Timeline.Score,
	}, e.cfg.Weights))
	report.Level = LevelFor(report.OverallScore)
	report.Confidence = round3(confidence(report))
	report.RedFlags = redFlags(report)
	report.GreenFlags = greenFlags(report)
	annotateConflicts(report)
	report.GeneratedAt = e.now().UTC()

	metrics.AliasChecks.WithLabelValues(string(report.Level)).Inc()
	span.SetAttributes(
		attribute.Float64("overall_score", report.OverallScore),
		attribute.String("level", string(report.Level)),
	)

	e.logger.Info("Alias check complete",
		zap.String("player_a", a),
		zap.String("player_b", b),
		zap.Float64("score", report.OverallScore),
		zap.String("level", string(report.Level)),
		zap.Int("red_flags", len(report.RedFlags)),
		zap.Int("green_flags", len(report.GreenFlags)),
	)
	return report, nil
}

func (e *Engine) fallback(analyzer string, neutral float64, err error) Signal {
	e.logger.Warn("Alias analyzer failed, using neutral score",
		zap.String("analyzer", analyzer),
		zap.Error(err),
	)
	metrics.AliasAnalyzerFallbacks.WithLabelValues(analyzer, Failed.String()).Inc()
	return failed(neutral, err)
}

// Timeline returns only the activity timeline for a pair
func (e *Engine) Timeline(ctx context.Context, playerA, playerB string) (*ActivityTimeline, error) {
	a, b, err := validatePair(playerA, playerB)
	if err != nil {
		return nil, err
	}
	t, err := e.analyzeTimeline(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if t.PlayerA.Sessions == 0 || t.PlayerB.Sessions == 0 {
		return nil, errors.NewInsufficientData("timeline", "no sessions recorded for one of the players")
	}
	return &t, nil
}

// RecordFeedback stores an operator verdict on a pair
func (e *Engine) RecordFeedback(ctx context.Context, fb graph.AliasFeedback) error {
	a, b, err := validatePair(fb.PlayerA, fb.PlayerB)
	if err != nil {
		return err
	}
	switch fb.Verdict {
	case VerdictConfirmed, VerdictRejected:
	default:
		return errors.NewInvalidArgument("verdict", "must be confirmed or rejected")
	}
	if fb.Score < 0 || fb.Score > 1 {
		return errors.NewInvalidArgument("score", "must be within [0, 1]")
	}

	fb.PlayerA, fb.PlayerB = a, b
	if fb.RecordedAt.IsZero() {
		fb.RecordedAt = e.now().UTC()
	}
	return e.graph.RecordAliasFeedback(ctx, fb)
}

// Feedback lists recorded verdicts for a pair, newest first
func (e *Engine) Feedback(ctx context.Context, playerA, playerB string) ([]graph.AliasFeedback, error) {
	a, b, err := validatePair(playerA, playerB)
	if err != nil {
		return nil, err
	}
	if b < a {
		a, b = b, a
	}
	out, err := e.graph.AliasFeedbackFor(ctx, a, b)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if out == nil {
		out = []graph.AliasFeedback{}
	}
	return out, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
