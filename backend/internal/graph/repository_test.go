package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadgraph/backend/pkg/errors"
)

func TestTimeParam(t *testing.T) {
	assert.Nil(t, timeParam(time.Time{}))

	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-01T11:30:00Z", timeParam(ts))
}

func TestAsTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, ts, asTime(ts))
	assert.Equal(t, ts, asTime(neo4j.LocalDateTime(ts)))
	assert.True(t, asTime("not a time").IsZero())
	assert.True(t, asTime(nil).IsZero())
}

func TestAsStringSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, asStringSlice([]interface{}{"a", "", 3, "b"}))
	assert.Equal(t, []string{}, asStringSlice("nope"))
}

func TestRelationshipOther(t *testing.T) {
	rel := Relationship{PlayerA: "alpha", PlayerB: "bravo"}
	assert.Equal(t, "bravo", rel.Other("alpha"))
	assert.Equal(t, "alpha", rel.Other("bravo"))
}

// The tests below require a running Neo4j instance at NEO4J_URI
// (default bolt://localhost:7687).

func TestRepository_CoPlayUpsertMergesEdges(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	repo, cleanup := createTestRepository(t)
	defer cleanup()

	prefix := "test-" + time.Now().Format("20060102150405") + "-"
	a, b := prefix+"alpha", prefix+"bravo"
	t1 := time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 1, 20, 20, 0, 0, 0, time.UTC)

	players := []PlayerUpsert{{Name: a, FirstSeen: t1, LastSeen: t1}, {Name: b, FirstSeen: t1, LastSeen: t1}}
	require.NoError(t, repo.UpsertCoPlayBatch(ctx, players, []RelationshipUpsert{
		{PlayerA: a, PlayerB: b, Count: 2, First: t1, Last: t1, ServerIDs: []string{"s1"}},
	}))
	require.NoError(t, repo.UpsertCoPlayBatch(ctx, players, []RelationshipUpsert{
		{PlayerA: a, PlayerB: b, Count: 3, First: t2, Last: t3, ServerIDs: []string{"s1", "s2"}},
	}))

	forward, err := repo.Relationship(ctx, a, b)
	require.NoError(t, err)
	backward, err := repo.Relationship(ctx, b, a)
	require.NoError(t, err)

	assert.Equal(t, forward, backward)
	assert.Equal(t, int64(5), forward.SessionCount)
	assert.Equal(t, t2, forward.FirstPlayedTogether)
	assert.Equal(t, t3, forward.LastPlayedTogether)
	assert.ElementsMatch(t, []string{"s1", "s2"}, forward.ServerIDs)

	_, err = repo.Relationship(ctx, a, prefix+"nobody")
	assert.True(t, errors.IsNotFound(err))
}

func TestRepository_NetworkStatsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	repo, cleanup := createTestRepository(t)
	defer cleanup()

	_, err := repo.NetworkStats(context.Background(), "non-existent-player-"+time.Now().Format("150405"))
	assert.True(t, errors.IsNotFound(err))
}

func TestRepository_PlaysOnWidensPlayerWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	repo, cleanup := createTestRepository(t)
	defer cleanup()

	prefix := "test-" + time.Now().Format("20060102150405") + "-"
	player, server := prefix+"charlie", prefix+"srv"
	t1 := time.Date(2024, 2, 10, 20, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 2, 1, 20, 0, 0, 0, time.UTC)
	later := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertCoPlayBatch(ctx, []PlayerUpsert{{Name: player, FirstSeen: t1, LastSeen: t1}}, nil))
	require.NoError(t, repo.UpsertPlaysOnBatch(ctx, []Server{{ID: server}}, []PlaysOnUpsert{
		{Player: player, ServerID: server, Count: 1, FirstSeen: earlier, LastPlayed: later},
	}))
	defer func() {
		session := repo.writeSession(ctx)
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (s:Server {id: $id}) DETACH DELETE s", map[string]interface{}{"id": server})
	}()

	records, err := repo.collect(ctx, "read player", `
		MATCH (p:Player {name: $name})
		RETURN p.firstSeen AS first, p.lastSeen AS last
	`, map[string]interface{}{"name": player})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, earlier, getTimeFromRecord(records[0], "first"))
	assert.Equal(t, later, getTimeFromRecord(records[0], "last"))
}

func TestRepository_NetworkGraphLevels(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	repo, cleanup := createTestRepository(t)
	defer cleanup()

	prefix := "test-" + time.Now().Format("20060102150405") + "-"
	center := prefix + "center"
	n1, n2, n3, far := prefix+"n1", prefix+"n2", prefix+"n3", prefix+"n4far"
	ts := time.Date(2024, 4, 1, 20, 0, 0, 0, time.UTC)

	var players []PlayerUpsert
	for _, name := range []string{center, n1, n2, n3, far} {
		players = append(players, PlayerUpsert{Name: name, FirstSeen: ts, LastSeen: ts})
	}
	edge := func(a, b string) RelationshipUpsert {
		return RelationshipUpsert{PlayerA: a, PlayerB: b, Count: 1, First: ts, Last: ts, ServerIDs: []string{"s1"}}
	}
	// center, n1, n2 and n3 sort before n4far
	require.NoError(t, repo.UpsertCoPlayBatch(ctx, players, []RelationshipUpsert{
		edge(center, n1), edge(center, n2), edge(center, n3), edge(n1, n2), edge(n3, far),
	}))

	g, err := repo.NetworkGraph(ctx, center, 2, 10)
	require.NoError(t, err)
	assert.False(t, g.Truncated)
	require.Len(t, g.Nodes, 5)
	assert.Equal(t, NetworkNode{Name: center, Depth: 0}, g.Nodes[0])
	assert.Equal(t, []string{n1, n2, n3}, []string{g.Nodes[1].Name, g.Nodes[2].Name, g.Nodes[3].Name})
	assert.Equal(t, far, g.Nodes[4].Name)
	assert.Equal(t, 2, g.Nodes[4].Depth)
	assert.Len(t, g.Edges, 5)

	g, err = repo.NetworkGraph(ctx, center, 1, 10)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)
	assert.False(t, g.Truncated)

	g, err = repo.NetworkGraph(ctx, center, 2, 3)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, n2, g.Nodes[2].Name)
	assert.True(t, g.Truncated)
	assert.Len(t, g.Edges, 3)

	// the cap is reached exactly at level 1; level 2 still has a node
	g, err = repo.NetworkGraph(ctx, center, 2, 4)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)
	assert.True(t, g.Truncated)
}

func createTestRepository(t *testing.T) (*Repository, func()) {
	t.Helper()

	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}

	ctx := context.Background()
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	require.NoError(t, err)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		t.Skipf("Neo4j not reachable: %v", err)
	}

	cleanup := func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (p:Player) WHERE p.name STARTS WITH 'test-' DETACH DELETE p", nil)
		driver.Close(ctx)
	}
	return NewRepository(driver, ""), cleanup
}
