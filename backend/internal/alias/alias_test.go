package alias

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/sessions"
	"squadgraph/backend/pkg/errors"
)

// profile is everything the fake stores know about one player
type profile struct {
	totals    sessions.PlayerTotals
	maps      map[string]float64
	servers   map[string]float64
	hours     [24]float64
	serverSet []string
	pings     map[string]float64
	pattern   sessions.SessionPattern
	span      sessions.ActivitySpan
	teammates []string
}

type fakeStats struct {
	players   map[string]profile
	co        int
	totalsErr error
}

func (f *fakeStats) get(player string) profile {
	return f.players[player]
}

func (f *fakeStats) Totals(_ context.Context, player string) (*sessions.PlayerTotals, error) {
	if f.totalsErr != nil {
		return nil, f.totalsErr
	}
	t := f.get(player).totals
	return &t, nil
}

func (f *fakeStats) MapKD(_ context.Context, player string) (map[string]float64, error) {
	return f.get(player).maps, nil
}

func (f *fakeStats) ServerKD(_ context.Context, player string) (map[string]float64, error) {
	return f.get(player).servers, nil
}

func (f *fakeStats) HourHistogram(_ context.Context, player string, _ time.Duration) ([24]float64, error) {
	return f.get(player).hours, nil
}

func (f *fakeStats) ServerSet(_ context.Context, player string) ([]string, error) {
	return f.get(player).serverSet, nil
}

func (f *fakeStats) ServerPings(_ context.Context, player string) (map[string]float64, error) {
	return f.get(player).pings, nil
}

func (f *fakeStats) Pattern(_ context.Context, player string) (*sessions.SessionPattern, error) {
	p := f.get(player).pattern
	return &p, nil
}

func (f *fakeStats) Activity(_ context.Context, player string) (*sessions.ActivitySpan, error) {
	s := f.get(player).span
	s.Player = player
	return &s, nil
}

func (f *fakeStats) CoSessions(context.Context, string, string) (int, error) {
	return f.co, nil
}

type fakeGraph struct {
	stats    *fakeStats
	edge     *graph.Relationship
	feedback []graph.AliasFeedback
}

func (g *fakeGraph) TeammateNames(_ context.Context, player string) ([]string, error) {
	names := g.stats.get(player).teammates
	if len(names) == 0 {
		return nil, errors.NewNotFound("player", player)
	}
	return names, nil
}

func (g *fakeGraph) Relationship(_ context.Context, a, b string) (*graph.Relationship, error) {
	if g.edge == nil {
		return nil, errors.NewNotFound("pair", a+"|"+b)
	}
	return g.edge, nil
}

func (g *fakeGraph) RecordAliasFeedback(_ context.Context, fb graph.AliasFeedback) error {
	g.feedback = append(g.feedback, fb)
	return nil
}

func (g *fakeGraph) AliasFeedbackFor(_ context.Context, a, b string) ([]graph.AliasFeedback, error) {
	var out []graph.AliasFeedback
	for _, fb := range g.feedback {
		if fb.PlayerA == a && fb.PlayerB == b {
			out = append(out, fb)
		}
	}
	return out, nil
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 20, 0, 0, 0, time.UTC)
}

func hoursAt(h int) [24]float64 {
	var out [24]float64
	out[h] = 10
	return out
}

func newTestEngine(stats *fakeStats, g *fakeGraph) *Engine {
	e := NewEngine(stats, g, DefaultConfig())
	e.now = func() time.Time { return day(time.June, 1) }
	return e
}

func flagCodes(flags []Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Code)
	}
	return out
}

func TestRatioSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, RatioSimilarity(0, 0))
	assert.Equal(t, 0.0, RatioSimilarity(0, 3))
	assert.Equal(t, 1.0, RatioSimilarity(2, 2))
	assert.InDelta(t, math.Pow(0.5, 1.5), RatioSimilarity(1, 2), 1e-9)
	assert.Equal(t, RatioSimilarity(3, 7), RatioSimilarity(7, 3))
}

func TestJensenShannonBounds(t *testing.T) {
	morning, evening := hoursAt(8), hoursAt(20)

	js, ok := JensenShannon(morning, morning)
	require.True(t, ok)
	assert.InDelta(t, 0.0, js, 1e-12)

	js, ok = JensenShannon(morning, evening)
	require.True(t, ok)
	assert.InDelta(t, 1.0, js, 1e-12)

	sim, ok := PlaytimeSimilarity(morning, evening)
	require.True(t, ok)
	assert.InDelta(t, 0.0, sim, 1e-12)

	_, ok = JensenShannon([24]float64{}, morning)
	assert.False(t, ok)
}

func TestCosineOnCommon(t *testing.T) {
	_, _, ok := CosineOnCommon(map[string]float64{"a": 1}, map[string]float64{"b": 1})
	assert.False(t, ok)

	sim, common, ok := CosineOnCommon(
		map[string]float64{"a": 1, "b": 2, "x": 9},
		map[string]float64{"a": 2, "b": 4, "y": 1},
	)
	require.True(t, ok)
	assert.Equal(t, 2, common)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestJaccard(t *testing.T) {
	j, shared := Jaccard([]string{"a", "b", "c", "d", "e"}, []string{"a", "b", "c", "d"})
	assert.Equal(t, 4, shared)
	assert.InDelta(t, 0.8, j, 1e-9)

	j, shared = Jaccard(nil, nil)
	assert.Equal(t, 0.0, j)
	assert.Equal(t, 0, shared)
}

func TestPingAndGapSteps(t *testing.T) {
	assert.Equal(t, 0.95, PingScore(0.04))
	assert.Equal(t, 0.70, PingScore(0.10))
	assert.Equal(t, 0.40, PingScore(0.20))
	assert.Equal(t, 0.10, PingScore(0.50))

	assert.Equal(t, 0.9, GapScore(31))
	assert.Equal(t, 0.7, GapScore(20))
	assert.Equal(t, 0.5, GapScore(10))
	assert.Equal(t, 0.2, GapScore(2))

	assert.Equal(t, 0.95, SwitchoverScore(3))
	assert.Equal(t, 0.75, SwitchoverScore(20))
	assert.Equal(t, 0.50, SwitchoverScore(45))
	assert.Equal(t, 0.30, SwitchoverScore(-3))
	assert.Equal(t, 0.15, SwitchoverScore(-30))
}

func TestWeightsNormalized(t *testing.T) {
	w := Weights{Stat: 3, Behavioral: 1, Network: -2}.Normalized()
	assert.InDelta(t, 0.75, w.Stat, 1e-9)
	assert.InDelta(t, 0.25, w.Behavioral, 1e-9)
	assert.Equal(t, 0.0, w.Network)

	assert.Equal(t, DefaultWeights(), Weights{}.Normalized())
	assert.Equal(t, DefaultWeights(), DefaultWeights().Normalized())
}

func TestFuseIsMonotone(t *testing.T) {
	base := Scores{Stat: 0.4, Behavioral: 0.4, Network: 0.4, Temporal: 0.4, Timeline: 0.4}
	w := DefaultWeights()
	low := Fuse(base, w)

	base.Network = 0.9
	assert.Greater(t, Fuse(base, w), low)
	assert.InDelta(t, 0.4, low, 1e-9)
	assert.InDelta(t, 1.0, Fuse(Scores{Stat: 1, Behavioral: 1, Network: 1, Temporal: 1, Timeline: 1}, w), 1e-9)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelVeryLikely, LevelFor(0.85))
	assert.Equal(t, LevelLikely, LevelFor(0.70))
	assert.Equal(t, LevelPotential, LevelFor(0.50))
	assert.Equal(t, LevelUnrelated, LevelFor(0.49))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alias.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
weights:
  stat: 2
  behavioral: 2
min_stat_rounds: 25
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MinStatRounds)
	assert.Equal(t, 90, cfg.HourLookbackDays)
	assert.InDelta(t, 0.5, cfg.Weights.Stat, 1e-9)
	assert.InDelta(t, 0.5, cfg.Weights.Behavioral, 1e-9)
	assert.Equal(t, 0.0, cfg.Weights.Timeline)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// Same K/D, different hours, no shared circle, one round together
func TestCheckPlayedTogetherIsUnrelated(t *testing.T) {
	stats := &fakeStats{co: 1, players: map[string]profile{
		"Alpha": {
			totals:    sessions.PlayerTotals{Rounds: 20, Kills: 200, Deaths: 100, Score: 2000, PlayMinutes: 400},
			maps:      map[string]float64{"dust": 2},
			servers:   map[string]float64{"s1": 2},
			hours:     hoursAt(20),
			serverSet: []string{"s1", "s2"},
			pings:     map[string]float64{"s1": 50, "s2": 50},
			pattern:   sessions.SessionPattern{Sessions: 10, AvgDurationMinutes: 60, SessionsPerWeek: 5},
			span:      sessions.ActivitySpan{FirstSeen: day(time.January, 1), LastSeen: day(time.March, 10), Sessions: 10},
			teammates: []string{"Bravo", "x1", "x2"},
		},
		"Bravo": {
			totals:    sessions.PlayerTotals{Rounds: 15, Kills: 100, Deaths: 50, Score: 1500, PlayMinutes: 300},
			maps:      map[string]float64{"mirage": 2},
			servers:   map[string]float64{"s3": 2},
			hours:     hoursAt(8),
			serverSet: []string{"s2", "s3"},
			pings:     map[string]float64{"s2": 120, "s3": 120},
			pattern:   sessions.SessionPattern{Sessions: 10, AvgDurationMinutes: 60, SessionsPerWeek: 5},
			span:      sessions.ActivitySpan{FirstSeen: day(time.February, 1), LastSeen: day(time.March, 10), Sessions: 10},
			teammates: []string{"Alpha", "y1", "y2"},
		},
	}}
	g := &fakeGraph{stats: stats, edge: &graph.Relationship{PlayerA: "Alpha", PlayerB: "Bravo", SessionCount: 1}}

	report, err := newTestEngine(stats, g).Check(context.Background(), "Alpha", "Bravo")
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.Stats.KDSimilarity)
	assert.True(t, report.Temporal.Discounted)
	assert.InDelta(t, 0.114, report.Temporal.Score, 1e-9)
	assert.InDelta(t, 0.402, report.OverallScore, 1e-9)
	assert.Equal(t, LevelUnrelated, report.Level)
	assert.Equal(t, PatternOverlap, report.Timeline.Pattern)

	assert.Contains(t, flagCodes(report.GreenFlags), "played_together")
	assert.Contains(t, flagCodes(report.GreenFlags), "different_play_hours")
	assert.Equal(t, []string{"near_identical_kd", conflictingSignals}, flagCodes(report.RedFlags))
	assert.InDelta(t, 0.9, report.Confidence, 1e-9)
}

// Shared circle, matching ping, quick switchover, never together
func TestCheckSwitchoverIsVeryLikely(t *testing.T) {
	common := profile{
		totals:    sessions.PlayerTotals{Rounds: 20, Kills: 200, Deaths: 100, Score: 2000, PlayMinutes: 400},
		maps:      map[string]float64{"dust": 2, "mirage": 1.5},
		servers:   map[string]float64{"s1": 2, "s2": 1.8},
		hours:     hoursAt(21),
		serverSet: []string{"s1", "s2", "s3", "s4"},
		pattern:   sessions.SessionPattern{Sessions: 20, AvgDurationMinutes: 30, SessionsPerWeek: 5},
	}
	a, b := common, common
	a.pings = map[string]float64{"s1": 40, "s2": 40, "s3": 40, "s4": 40}
	b.pings = map[string]float64{"s1": 41, "s2": 41, "s3": 41, "s4": 41}
	a.span = sessions.ActivitySpan{FirstSeen: day(time.January, 1), LastSeen: day(time.March, 1), Sessions: 20}
	b.span = sessions.ActivitySpan{FirstSeen: day(time.March, 2), LastSeen: day(time.March, 3), Sessions: 20}
	b.pattern.SessionsPerWeek = 4
	a.teammates = []string{"t1", "t2", "t3", "t4", "t5"}
	b.teammates = []string{"t1", "t2", "t3", "t4"}

	stats := &fakeStats{players: map[string]profile{"Ghost": a, "Gh0st": b}}
	g := &fakeGraph{stats: stats}

	report, err := newTestEngine(stats, g).Check(context.Background(), "Ghost", "Gh0st")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, report.Stats.Score, 1e-9)
	assert.Equal(t, 0.95, report.Behavior.PingSimilarity)
	assert.Len(t, report.Behavior.CommonServers, 4)
	assert.InDelta(t, 0.8, report.Network.TeammateJaccard, 1e-9)
	assert.False(t, report.Network.DirectEdge)
	assert.InDelta(t, 0.95, report.Timeline.Score, 1e-9)

	assert.InDelta(t, 0.897, report.OverallScore, 1e-9)
	assert.Equal(t, LevelVeryLikely, report.Level)

	codes := flagCodes(report.RedFlags)
	assert.Contains(t, codes, "quick_switchover")
	assert.Contains(t, codes, "shared_circle_never_together")
	assert.Contains(t, codes, "matching_ping")
	assert.Empty(t, report.GreenFlags)
}

func TestCheckPlayerWithoutSessions(t *testing.T) {
	stats := &fakeStats{players: map[string]profile{
		"Known": {
			totals:  sessions.PlayerTotals{Rounds: 30, Kills: 30, Deaths: 30},
			pattern: sessions.SessionPattern{Sessions: 30},
			span:    sessions.ActivitySpan{FirstSeen: day(time.January, 1), LastSeen: day(time.May, 1), Sessions: 30},
		},
	}}
	g := &fakeGraph{stats: stats}

	report, err := newTestEngine(stats, g).Check(context.Background(), "Known", "Nobody")
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.Behavior.Score)
	assert.Equal(t, 0.5, report.Behavior.PingSimilarity)
	assert.Equal(t, Insufficient, report.Behavior.Sufficiency)
	assert.Equal(t, "Insufficient session data", report.Behavior.Explanation)
	assert.NotNil(t, report.Behavior.CommonServers)

	assert.Equal(t, Insufficient, report.Stats.Sufficiency)
	assert.Equal(t, 0.5, report.Stats.Score)
	assert.Equal(t, Insufficient, report.Network.Sufficiency)
	assert.Equal(t, PatternUnknown, report.Timeline.Pattern)
	assert.InDelta(t, 0.375, report.OverallScore, 1e-9)
	assert.InDelta(t, 0.5, report.Confidence, 1e-9)

	_, err = newTestEngine(stats, g).Timeline(context.Background(), "Known", "Nobody")
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeInsufficientData))
}

func TestCheckAnalyzerFailureIsNeutral(t *testing.T) {
	stats := &fakeStats{
		players:   map[string]profile{},
		totalsErr: errors.NewStoreUnavailable("sessions", "totals", fmt.Errorf("disk gone")),
	}
	report, err := newTestEngine(stats, &fakeGraph{stats: stats}).Check(context.Background(), "a", "b")
	require.NoError(t, err)

	assert.Equal(t, Failed, report.Stats.Sufficiency)
	assert.Equal(t, 0.5, report.Stats.Score)
	assert.Contains(t, report.Stats.Explanation, "disk gone")
}

func TestCheckRejectsBadPairs(t *testing.T) {
	stats := &fakeStats{}
	e := newTestEngine(stats, &fakeGraph{stats: stats})

	_, err := e.Check(context.Background(), "same", "same")
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = e.Check(context.Background(), " ", "b")
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCheckCancelled(t *testing.T) {
	stats := &fakeStats{players: map[string]profile{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(stats, &fakeGraph{stats: stats}).Check(ctx, "a", "b")
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrorTypeContext))
}

func TestRecordFeedback(t *testing.T) {
	stats := &fakeStats{}
	g := &fakeGraph{stats: stats}
	e := newTestEngine(stats, g)

	err := e.RecordFeedback(context.Background(), graph.AliasFeedback{PlayerA: "a", PlayerB: "b", Verdict: "maybe"})
	assert.True(t, errors.IsInvalidArgument(err))

	err = e.RecordFeedback(context.Background(), graph.AliasFeedback{PlayerA: "a", PlayerB: "b", Verdict: VerdictRejected, Score: 0.4})
	require.NoError(t, err)
	require.Len(t, g.feedback, 1)
	assert.Equal(t, day(time.June, 1), g.feedback[0].RecordedAt)

	list, err := e.Feedback(context.Background(), "b", "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, VerdictRejected, list[0].Verdict)

	list, err = e.Feedback(context.Background(), "a", "c")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTimelineSequential(t *testing.T) {
	tl := BuildTimeline(
		sessions.ActivitySpan{FirstSeen: day(time.January, 1), LastSeen: day(time.February, 1), Sessions: 5},
		sessions.ActivitySpan{FirstSeen: day(time.February, 21), LastSeen: day(time.April, 1), Sessions: 5},
	)
	assert.Equal(t, PatternSequential, tl.Pattern)
	assert.InDelta(t, 20.0, tl.SwitchoverDays, 1e-9)
	assert.Equal(t, 0.75, tl.Score)
}
