package sessions

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRound(t *testing.T, store *Store, id, server, mapName string, start time.Time, players ...string) {
	t.Helper()
	round := Round{ID: id, ServerID: server, MapName: mapName, StartTime: start, EndTime: start.Add(30 * time.Minute)}
	var sessions []Session
	for i, p := range players {
		round.Observations = append(round.Observations,
			Observation{PlayerName: p, Timestamp: start},
			Observation{PlayerName: p, Timestamp: start.Add(time.Minute)},
		)
		sessions = append(sessions, Session{
			PlayerName:   p,
			StartTime:    start,
			LastSeenTime: start.Add(30 * time.Minute),
			TotalKills:   10 + i,
			TotalDeaths:  5,
			TotalScore:   100,
			AveragePing:  float64(40 + i),
		})
	}
	require.NoError(t, store.AppendRound(context.Background(), round, sessions))
}

func TestRoundsPage_KeysetOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedRound(t, store, fmt.Sprintf("r%d", i), "s1", "dust", base.Add(time.Duration(i)*time.Hour), "alpha", "bravo")
	}
	// same start time, ordered by id
	seedRound(t, store, "r2b", "s1", "dust", base.Add(2*time.Hour), "charlie")

	var ids []string
	cursor := RoundCursor{}
	for {
		page, err := store.RoundsPage(ctx, base, base.Add(24*time.Hour), cursor, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, r := range page {
			ids = append(ids, r.ID)
		}
		last := page[len(page)-1]
		cursor = RoundCursor{StartTime: last.StartTime, RoundID: last.ID}
	}

	assert.Equal(t, []string{"r0", "r1", "r2", "r2b", "r3", "r4"}, ids)
}

func TestRoundsPage_IncludesObservations(t *testing.T) {
	store := openTestStore(t)
	seedRound(t, store, "r1", "s1", "dust", base, "alpha", "bravo")
	seedRound(t, store, "r-out", "s1", "dust", base.Add(48*time.Hour), "alpha")

	page, err := store.RoundsPage(context.Background(), base, base.Add(time.Hour), RoundCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)

	r := page[0]
	assert.Equal(t, "s1", r.ServerID)
	assert.Equal(t, base, r.StartTime)
	require.Len(t, r.Observations, 4)
	assert.Equal(t, "s1", r.Observations[0].ServerID)
	assert.Equal(t, base, r.Observations[0].Timestamp)
}

func TestPlayerServerPage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertServer(ctx, ServerInfo{ID: "s1", Name: "Alpha Server", GameID: "bf1942"}))

	seedRound(t, store, "r1", "s1", "dust", base, "alpha", "bravo")
	seedRound(t, store, "r2", "s1", "dust", base.Add(time.Hour), "alpha")
	seedRound(t, store, "r3", "s2", "dust", base.Add(2*time.Hour), "alpha")

	page, err := store.PlayerServerPage(ctx, base, base.Add(24*time.Hour), PlayerServerCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Equal(t, "alpha", page[0].PlayerName)
	assert.Equal(t, "s1", page[0].ServerID)
	assert.Equal(t, "Alpha Server", page[0].ServerName)
	assert.Equal(t, int64(2), page[0].Sessions)
	assert.Equal(t, base, page[0].FirstSeen)
	assert.Equal(t, base.Add(time.Hour+30*time.Minute), page[0].LastSeen)
	assert.Equal(t, "s2", page[1].ServerID)

	next, err := store.PlayerServerPage(ctx, base, base.Add(24*time.Hour),
		PlayerServerCursor{PlayerName: page[1].PlayerName, ServerID: page[1].ServerID}, 2)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "bravo", next[0].PlayerName)
}

func TestAggregates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedRound(t, store, "r1", "s1", "dust", base, "alpha", "bravo")
	seedRound(t, store, "r2", "s2", "port", base.Add(24*time.Hour), "alpha")

	totals, err := store.Totals(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Rounds)
	assert.Equal(t, int64(20), totals.Kills)
	assert.Equal(t, int64(10), totals.Deaths)
	assert.InDelta(t, 60.0, totals.PlayMinutes, 0.01)

	kd, err := store.MapKD(ctx, "alpha")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, kd["dust"], 1e-9)
	assert.InDelta(t, 2.0, kd["port"], 1e-9)

	hist, err := store.HourHistogram(ctx, "alpha", 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4.0, hist[20])

	servers, err := store.ServerSet(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, servers)

	pings, err := store.ServerPings(ctx, "bravo")
	require.NoError(t, err)
	assert.InDelta(t, 41.0, pings["s1"], 1e-9)

	pattern, err := store.Pattern(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, pattern.Sessions)
	assert.InDelta(t, 30.0, pattern.AvgDurationMinutes, 0.01)
	assert.InDelta(t, 2.0, pattern.SessionsPerWeek, 1e-9)

	span, err := store.Activity(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, base, span.FirstSeen)
	assert.Equal(t, base.Add(24*time.Hour+30*time.Minute), span.LastSeen)

	co, err := store.CoSessions(ctx, "alpha", "bravo")
	require.NoError(t, err)
	assert.Equal(t, 1, co)
}

func TestAggregates_UnknownPlayer(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	span, err := store.Activity(ctx, "ghost")
	require.NoError(t, err)
	assert.Zero(t, span.Sessions)
	assert.True(t, span.FirstSeen.IsZero())

	hist, err := store.HourHistogram(ctx, "ghost", 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, [24]float64{}, hist)

	totals, err := store.Totals(ctx, "ghost")
	require.NoError(t, err)
	assert.Zero(t, totals.Rounds)
}

func TestAppendRound_DuplicateRejected(t *testing.T) {
	store := openTestStore(t)
	seedRound(t, store, "r1", "s1", "dust", base, "alpha")

	err := store.AppendRound(context.Background(), Round{ID: "r1", ServerID: "s1", StartTime: base}, nil)
	assert.Error(t, err)
}

func TestSessionsFromRound(t *testing.T) {
	round := Round{
		ID: "r1", ServerID: "s1", MapName: "dust",
		Observations: []Observation{
			{PlayerName: "alpha", Timestamp: base.Add(time.Minute), Kills: 3, Deaths: 1, Score: 30, Ping: 40},
			{PlayerName: "alpha", Timestamp: base, Kills: 1, Deaths: 0, Score: 10, Ping: 60},
			{PlayerName: "  ", Timestamp: base},
			{PlayerName: "bravo", Timestamp: base, Kills: 2, Ping: 80},
		},
	}

	out := SessionsFromRound(round)
	require.Len(t, out, 2)

	alpha := out[0]
	assert.Equal(t, "alpha", alpha.PlayerName)
	assert.Equal(t, base, alpha.StartTime)
	assert.Equal(t, base.Add(time.Minute), alpha.LastSeenTime)
	assert.Equal(t, 3, alpha.TotalKills)
	assert.Equal(t, 30, alpha.TotalScore)
	assert.Equal(t, 50.0, alpha.AveragePing)
	assert.Equal(t, 2, alpha.ObservationCount)
	assert.Equal(t, "s1", alpha.ServerID)

	assert.Equal(t, "bravo", out[1].PlayerName)
	assert.Equal(t, 1, out[1].ObservationCount)
}
