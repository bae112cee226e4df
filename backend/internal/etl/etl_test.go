package etl

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/sessions"
	"squadgraph/backend/pkg/errors"
)

var t0 = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func obs(player, server string, at time.Time) sessions.Observation {
	return sessions.Observation{PlayerName: player, ServerID: server, Timestamp: at}
}

func TestDetectCoPlay_ThreePlayers(t *testing.T) {
	pairs := DetectCoPlay([]sessions.Observation{
		obs("P1", "S", t0),
		obs("P2", "S", t0),
		obs("P3", "S", t0),
		obs("P4", "OTHER", t0),
	})

	assert.Equal(t, []PairKey{
		{A: "P1", B: "P2"},
		{A: "P1", B: "P3"},
		{A: "P2", B: "P3"},
	}, pairs)
}

func TestDetectCoPlay_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		input    []sessions.Observation
		expected []PairKey
	}{
		{
			name:     "single player",
			input:    []sessions.Observation{obs("P1", "S", t0)},
			expected: []PairKey{},
		},
		{
			name:     "blank names ignored",
			input:    []sessions.Observation{obs("P1", "S", t0), obs("   ", "S", t0), obs("", "S", t0)},
			expected: []PairKey{},
		},
		{
			name:     "names are trimmed",
			input:    []sessions.Observation{obs(" P2 ", "S", t0), obs("P1", "S", t0)},
			expected: []PairKey{{A: "P1", B: "P2"}},
		},
		{
			name:     "duplicate observation of same player",
			input:    []sessions.Observation{obs("P1", "S", t0), obs("P1", "S", t0)},
			expected: []PairKey{},
		},
		{
			name:     "different timestamps do not pair",
			input:    []sessions.Observation{obs("P1", "S", t0), obs("P2", "S", t0.Add(time.Second))},
			expected: []PairKey{},
		},
		{
			name: "pair counted once per round",
			input: []sessions.Observation{
				obs("B", "S", t0), obs("A", "S", t0),
				obs("B", "S", t0.Add(time.Minute)), obs("A", "S", t0.Add(time.Minute)),
			},
			expected: []PairKey{{A: "A", B: "B"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectCoPlay(tt.input))
		})
	}
}

func TestNewPairKey_Canonical(t *testing.T) {
	assert.Equal(t, NewPairKey("zed", "amy"), NewPairKey("amy", "zed"))
	assert.Equal(t, "amy", NewPairKey("zed", "amy").A)
}

func TestRelationshipMetrics_MergeCommutesAndAssociates(t *testing.T) {
	a := NewRelationshipMetrics("s1", t0, t0.Add(time.Hour))
	b := NewRelationshipMetrics("s2", t0.Add(-time.Hour), t0)
	b.Count = 4
	c := NewRelationshipMetrics("s1", t0.Add(2*time.Hour), t0.Add(5*time.Hour))
	c.Count = 2

	ab := a.Merge(b)
	ba := b.Merge(a)
	assert.Equal(t, ab, ba)

	left := a.Merge(b).Merge(c)
	right := a.Merge(b.Merge(c))
	assert.Equal(t, left, right)

	assert.Equal(t, int64(7), left.Count)
	assert.Equal(t, t0.Add(-time.Hour), left.FirstSeen)
	assert.Equal(t, t0.Add(5*time.Hour), left.LastSeen)
	assert.Equal(t, []string{"s1", "s2"}, left.ServerIDs())

	// inputs are untouched
	assert.Equal(t, int64(1), a.Count)
	assert.Len(t, a.Servers, 1)
}

func TestRelationshipMetrics_MergeWithEmpty(t *testing.T) {
	a := NewRelationshipMetrics("s1", t0, t0)
	merged := a.Merge(RelationshipMetrics{})
	assert.Equal(t, a.FirstSeen, merged.FirstSeen)
	assert.Equal(t, a.LastSeen, merged.LastSeen)
	assert.Equal(t, a.Count, merged.Count)
}

func TestAccumulator_AddRoundAndDrain(t *testing.T) {
	acc := NewAccumulator()
	acc.AddRound(sessions.Round{ID: "r1", Observations: []sessions.Observation{
		obs("alpha", "s1", t0), obs("bravo", "s1", t0),
	}})
	acc.AddRound(sessions.Round{ID: "r2", Observations: []sessions.Observation{
		obs("bravo", "s2", t0.Add(time.Hour)), obs("alpha", "s2", t0.Add(time.Hour)), obs("charlie", "s2", t0.Add(2*time.Hour)),
	}})

	m, ok := acc.Get(NewPairKey("bravo", "alpha"))
	require.True(t, ok)
	assert.Equal(t, int64(2), m.Count)
	assert.Equal(t, t0, m.FirstSeen)
	assert.Equal(t, t0.Add(time.Hour), m.LastSeen)

	players, pairs := acc.Drain()
	require.Len(t, pairs, 1)
	assert.Equal(t, "alpha", pairs[0].PlayerA)
	assert.Equal(t, []string{"s1", "s2"}, pairs[0].ServerIDs)

	require.Len(t, players, 3)
	assert.Equal(t, "charlie", players[2].Name)
	assert.Equal(t, t0.Add(2*time.Hour), players[2].FirstSeen)

	assert.Zero(t, acc.PairCount())
}

// ============================================================================
// Pipeline
// ============================================================================

type fakeSource struct {
	rounds     []sessions.Round
	activities []sessions.PlayerServerActivity
}

func (f *fakeSource) RoundsPage(_ context.Context, from, to time.Time, after sessions.RoundCursor, limit int) ([]sessions.Round, error) {
	var out []sessions.Round
	for _, r := range f.rounds {
		if r.StartTime.Before(from) || !r.StartTime.Before(to) {
			continue
		}
		if !after.StartTime.IsZero() {
			if r.StartTime.Before(after.StartTime) || (r.StartTime.Equal(after.StartTime) && r.ID <= after.RoundID) {
				continue
			}
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) PlayerServerPage(_ context.Context, _, _ time.Time, after sessions.PlayerServerCursor, limit int) ([]sessions.PlayerServerActivity, error) {
	var out []sessions.PlayerServerActivity
	for _, a := range f.activities {
		if a.PlayerName < after.PlayerName || (a.PlayerName == after.PlayerName && a.ServerID <= after.ServerID) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeWriter struct {
	batches   [][]graph.RelationshipUpsert
	playsOn   [][]graph.PlaysOnUpsert
	servers   []graph.Server
	failOnNth int // 1-based co-play flush to fail, 0 never
	calls     int
}

func (f *fakeWriter) UpsertCoPlayBatch(_ context.Context, _ []graph.PlayerUpsert, pairs []graph.RelationshipUpsert) error {
	f.calls++
	if f.calls == f.failOnNth {
		return fmt.Errorf("neo4j went away")
	}
	f.batches = append(f.batches, pairs)
	return nil
}

func (f *fakeWriter) UpsertPlaysOnBatch(_ context.Context, servers []graph.Server, edges []graph.PlaysOnUpsert) error {
	f.servers = append(f.servers, servers...)
	f.playsOn = append(f.playsOn, edges)
	return nil
}

// committed sums every committed pair across batches
func (f *fakeWriter) committed() map[PairKey]int64 {
	out := make(map[PairKey]int64)
	for _, b := range f.batches {
		for _, p := range b {
			out[PairKey{A: p.PlayerA, B: p.PlayerB}] += p.Count
		}
	}
	return out
}

func makeRounds(n int) []sessions.Round {
	rounds := make([]sessions.Round, 0, n)
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i) * time.Minute)
		rounds = append(rounds, sessions.Round{
			ID:        fmt.Sprintf("r%03d", i),
			ServerID:  "s1",
			StartTime: at,
			Observations: []sessions.Observation{
				obs("alpha", "s1", at),
				obs("bravo", "s1", at),
				obs(fmt.Sprintf("guest%d", i%3), "s1", at),
			},
		})
	}
	return rounds
}

func TestPipeline_SyncRange_FlushesEveryNRounds(t *testing.T) {
	source := &fakeSource{rounds: makeRounds(10)}
	writer := &fakeWriter{}
	p := NewPipeline(source, writer, Options{RoundPageSize: 3, FlushEveryRounds: 4, MaxPendingPairs: 1000})

	result, err := p.SyncRange(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 10, result.RoundsProcessed)
	assert.Equal(t, 3, result.Flushes) // 4 + 4 + final 2
	assert.Len(t, writer.batches, 3)
	assert.Equal(t, int64(10), writer.committed()[NewPairKey("alpha", "bravo")])
	assert.NotEmpty(t, result.RunID)
}

func TestPipeline_SyncRange_FlushesOnPendingPairs(t *testing.T) {
	source := &fakeSource{rounds: makeRounds(6)}
	writer := &fakeWriter{}
	p := NewPipeline(source, writer, Options{RoundPageSize: 100, FlushEveryRounds: 1000, MaxPendingPairs: 4})

	result, err := p.SyncRange(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)

	// rounds 0-1 add 5 distinct pairs, exceeding 4
	assert.Greater(t, result.Flushes, 1)
	for _, b := range writer.batches {
		assert.LessOrEqual(t, len(b), 5)
	}
	assert.Equal(t, int64(6), writer.committed()[NewPairKey("alpha", "bravo")])
}

func TestPipeline_SyncRange_BatchFailureKeepsEarlierFlushes(t *testing.T) {
	source := &fakeSource{rounds: makeRounds(10)}
	writer := &fakeWriter{failOnNth: 2}
	p := NewPipeline(source, writer, Options{RoundPageSize: 5, FlushEveryRounds: 4, MaxPendingPairs: 1000})

	result, err := p.SyncRange(context.Background(), t0, t0.Add(time.Hour))
	require.Error(t, err)

	batchErr, ok := errors.AsBatchFailure(err)
	require.True(t, ok)
	assert.Equal(t, result.RunID, batchErr.RunID)
	assert.Equal(t, 1, batchErr.FlushIndex)
	assert.Equal(t, "r004", batchErr.FirstRoundID)
	assert.Equal(t, "r007", batchErr.LastRoundID)
	assert.Greater(t, batchErr.PairCount, 0)

	assert.Equal(t, 1, result.Flushes)
	assert.Equal(t, int64(4), writer.committed()[NewPairKey("alpha", "bravo")])
}

func TestPipeline_SyncRange_RejectsEmptyRange(t *testing.T) {
	p := NewPipeline(&fakeSource{}, &fakeWriter{}, Options{})
	_, err := p.SyncRange(context.Background(), t0, t0)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestPipeline_SyncRange_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := &fakeWriter{}
	p := NewPipeline(&fakeSource{rounds: makeRounds(3)}, writer, Options{})
	_, err := p.SyncRange(ctx, t0, t0.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Empty(t, writer.batches)
}

func TestPipeline_SyncPlayerServers(t *testing.T) {
	activities := []sessions.PlayerServerActivity{
		{PlayerName: "alpha", ServerID: "s1", ServerName: "One", Sessions: 3, FirstSeen: t0, LastSeen: t0.Add(time.Hour)},
		{PlayerName: "alpha", ServerID: "s2", ServerName: "Two", Sessions: 1, FirstSeen: t0, LastSeen: t0},
		{PlayerName: "bravo", ServerID: "s1", ServerName: "One", Sessions: 2, FirstSeen: t0, LastSeen: t0},
	}
	sort.Slice(activities, func(i, j int) bool { return activities[i].PlayerName < activities[j].PlayerName })

	writer := &fakeWriter{}
	p := NewPipeline(&fakeSource{activities: activities}, writer, Options{PlayerServerPageSize: 2})

	result, err := p.SyncPlayerServers(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3, result.EdgesUpserted)
	assert.Equal(t, 2, result.Flushes)
	require.Len(t, writer.playsOn, 2)
	assert.Equal(t, int64(3), writer.playsOn[0][0].Count)
	assert.Len(t, writer.servers, 3) // s1,s2 in page one, s1 again in page two
}
