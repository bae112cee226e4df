package graph

import (
	"context"
	"time"

	"squadgraph/backend/pkg/errors"
)

// ============================================================================
// Relationship Reads
// ============================================================================

// Teammates returns a player's neighbors ordered by session count
func (r *Repository) Teammates(ctx context.Context, player string, limit int) ([]Teammate, error) {
	query := `
		MATCH (p:Player {name: $name})-[r:PLAYED_WITH]-(t:Player)
		RETURN t.name AS name,
		       r.sessionCount AS sessions,
		       r.firstPlayedTogether AS first,
		       r.lastPlayedTogether AS last,
		       r.servers AS servers
		ORDER BY sessions DESC, name ASC
		LIMIT $limit
	`

	records, err := r.collect(ctx, "query teammates", query, map[string]interface{}{
		"name":  player,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	teammates := make([]Teammate, 0, len(records))
	for _, record := range records {
		teammates = append(teammates, Teammate{
			Name:                getStringFromRecord(record, "name"),
			SessionCount:        getInt64FromRecord(record, "sessions"),
			FirstPlayedTogether: getTimeFromRecord(record, "first"),
			LastPlayedTogether:  getTimeFromRecord(record, "last"),
			ServerIDs:           getStringSliceFromRecord(record, "servers"),
		})
	}
	return teammates, nil
}

// TeammateNames returns every neighbor of a player, unordered
func (r *Repository) TeammateNames(ctx context.Context, player string) ([]string, error) {
	query := `
		MATCH (p:Player {name: $name})-[:PLAYED_WITH]-(t:Player)
		RETURN collect(DISTINCT t.name) AS names
	`

	records, err := r.collect(ctx, "query teammate names", query, map[string]interface{}{"name": player})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []string{}, nil
	}
	return getStringSliceFromRecord(records[0], "names"), nil
}

// PotentialConnections finds players active on the player's servers since
// the cutoff who are not yet neighbors
func (r *Repository) PotentialConnections(ctx context.Context, player string, since time.Time, limit int) ([]PotentialConnection, error) {
	query := `
		MATCH (me:Player {name: $name})-[:PLAYS_ON]->(s:Server)<-[po:PLAYS_ON]-(c:Player)
		WHERE c <> me
		  AND po.lastPlayed >= datetime($since)
		  AND NOT (me)-[:PLAYED_WITH]-(c)
		WITH c, collect(DISTINCT s.id) AS servers, max(po.lastPlayed) AS lastActive
		RETURN c.name AS name, servers, lastActive
		ORDER BY size(servers) DESC, lastActive DESC, name ASC
		LIMIT $limit
	`

	records, err := r.collect(ctx, "query potential connections", query, map[string]interface{}{
		"name":  player,
		"since": timeParam(since),
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]PotentialConnection, 0, len(records))
	for _, record := range records {
		out = append(out, PotentialConnection{
			Name:          getStringFromRecord(record, "name"),
			SharedServers: getStringSliceFromRecord(record, "servers"),
			LastActive:    getTimeFromRecord(record, "lastActive"),
		})
	}
	return out, nil
}

// SharedServers lists servers both players have PLAYS_ON edges to
func (r *Repository) SharedServers(ctx context.Context, playerA, playerB string) ([]SharedServer, error) {
	query := `
		MATCH (a:Player {name: $a})-[ra:PLAYS_ON]->(s:Server)<-[rb:PLAYS_ON]-(b:Player {name: $b})
		RETURN s.id AS id, s.name AS name,
		       ra.sessionCount AS a_sessions, rb.sessionCount AS b_sessions,
		       ra.lastPlayed AS a_last, rb.lastPlayed AS b_last
		ORDER BY a_sessions + b_sessions DESC, id ASC
	`

	records, err := r.collect(ctx, "query shared servers", query, map[string]interface{}{
		"a": playerA,
		"b": playerB,
	})
	if err != nil {
		return nil, err
	}

	out := make([]SharedServer, 0, len(records))
	for _, record := range records {
		out = append(out, SharedServer{
			ServerID:          getStringFromRecord(record, "id"),
			ServerName:        getStringFromRecord(record, "name"),
			PlayerASessions:   getInt64FromRecord(record, "a_sessions"),
			PlayerBSessions:   getInt64FromRecord(record, "b_sessions"),
			PlayerALastPlayed: getTimeFromRecord(record, "a_last"),
			PlayerBLastPlayed: getTimeFromRecord(record, "b_last"),
		})
	}
	return out, nil
}

// RecentConnections returns edges whose first or last timestamp is at or
// after the cutoff
func (r *Repository) RecentConnections(ctx context.Context, player string, since time.Time) ([]RecentConnection, error) {
	query := `
		MATCH (p:Player {name: $name})-[r:PLAYED_WITH]-(t:Player)
		WHERE r.firstPlayedTogether >= datetime($since)
		   OR r.lastPlayedTogether >= datetime($since)
		RETURN t.name AS name,
		       r.sessionCount AS sessions,
		       r.firstPlayedTogether AS first,
		       r.lastPlayedTogether AS last
		ORDER BY last DESC, name ASC
	`

	records, err := r.collect(ctx, "query recent connections", query, map[string]interface{}{
		"name":  player,
		"since": timeParam(since),
	})
	if err != nil {
		return nil, err
	}

	out := make([]RecentConnection, 0, len(records))
	for _, record := range records {
		first := getTimeFromRecord(record, "first")
		out = append(out, RecentConnection{
			Name:                getStringFromRecord(record, "name"),
			SessionCount:        getInt64FromRecord(record, "sessions"),
			FirstPlayedTogether: first,
			LastPlayedTogether:  getTimeFromRecord(record, "last"),
			IsNew:               !first.Before(since),
		})
	}
	return out, nil
}

// Relationship looks up the PLAYED_WITH edge of a pair regardless of the
// stored direction. Returns ErrNotFound when the pair never played together.
func (r *Repository) Relationship(ctx context.Context, playerA, playerB string) (*Relationship, error) {
	query := `
		MATCH (a:Player {name: $a})-[r:PLAYED_WITH]-(b:Player {name: $b})
		RETURN r.sessionCount AS sessions,
		       r.firstPlayedTogether AS first,
		       r.lastPlayedTogether AS last,
		       r.servers AS servers
		LIMIT 1
	`

	records, err := r.collect(ctx, "query relationship", query, map[string]interface{}{
		"a": playerA,
		"b": playerB,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewNotFound("pair", playerA+"|"+playerB)
	}

	a, b := playerA, playerB
	if b < a {
		a, b = b, a
	}
	record := records[0]
	return &Relationship{
		PlayerA:             a,
		PlayerB:             b,
		SessionCount:        getInt64FromRecord(record, "sessions"),
		FirstPlayedTogether: getTimeFromRecord(record, "first"),
		LastPlayedTogether:  getTimeFromRecord(record, "last"),
		ServerIDs:           getStringSliceFromRecord(record, "servers"),
	}, nil
}

// NetworkStats summarises a player's neighborhood. Returns ErrNotFound when
// the player node does not exist.
func (r *Repository) NetworkStats(ctx context.Context, player string) (*NetworkStats, error) {
	query := `
		MATCH (p:Player {name: $name})
		OPTIONAL MATCH (p)-[r:PLAYED_WITH]-(:Player)
		WITH p, count(r) AS connections, coalesce(sum(r.sessionCount), 0) AS sessions
		OPTIONAL MATCH (p)-[:PLAYS_ON]->(s:Server)
		RETURN connections, sessions, count(DISTINCT s) AS servers
	`

	records, err := r.collect(ctx, "query network stats", query, map[string]interface{}{"name": player})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewNotFound("player", player)
	}

	record := records[0]
	return &NetworkStats{
		Player:          player,
		ConnectionCount: getIntFromRecord(record, "connections"),
		TotalSessions:   getInt64FromRecord(record, "sessions"),
		DistinctServers: getIntFromRecord(record, "servers"),
	}, nil
}

// NetworkGraph extracts the ego network of a player one level at a time, so
// the node cap bounds the work as well as the output. depth must already be
// clamped to 1..3 and maxNodes includes the center.
func (r *Repository) NetworkGraph(ctx context.Context, player string, depth, maxNodes int) (*NetworkGraph, error) {
	centerQuery := `
		MATCH (c:Player {name: $name})
		RETURN c.communityId AS community
	`
	records, err := r.collect(ctx, "query network graph", centerQuery, map[string]interface{}{"name": player})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewNotFound("player", player)
	}

	g := &NetworkGraph{
		Center: player,
		Depth:  depth,
		Nodes: []NetworkNode{{
			Name:        player,
			Depth:       0,
			CommunityID: getStringFromRecord(records[0], "community"),
		}},
		Edges: []NetworkEdge{},
	}

	levelQuery := `
		MATCH (f:Player)-[:PLAYED_WITH]-(p:Player)
		WHERE f.name IN $frontier AND NOT p.name IN $visited
		WITH DISTINCT p
		ORDER BY p.name ASC
		LIMIT $limit
		RETURN p.name AS name, p.communityId AS community
	`

	names := []string{player}
	frontier := []string{player}
	remaining := maxNodes - 1
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		// one extra row tells us whether the cap cut this level short
		found, err := r.collect(ctx, "query network level", levelQuery, map[string]interface{}{
			"frontier": frontier,
			"visited":  names,
			"limit":    remaining + 1,
		})
		if err != nil {
			return nil, err
		}
		if len(found) > remaining {
			g.Truncated = true
			found = found[:remaining]
		}

		var next []string
		for _, record := range found {
			name := getStringFromRecord(record, "name")
			if name == "" {
				continue
			}
			g.Nodes = append(g.Nodes, NetworkNode{
				Name:        name,
				Depth:       level,
				CommunityID: getStringFromRecord(record, "community"),
			})
			names = append(names, name)
			next = append(next, name)
		}
		frontier = next
		remaining -= len(next)
		if g.Truncated {
			break
		}
	}

	edgeQuery := `
		MATCH (a:Player)-[r:PLAYED_WITH]->(b:Player)
		WHERE a.name IN $names AND b.name IN $names
		RETURN a.name AS source, b.name AS target, r.sessionCount AS sessions
	`
	edgeRecords, err := r.collect(ctx, "query network edges", edgeQuery, map[string]interface{}{"names": names})
	if err != nil {
		return nil, err
	}
	for _, er := range edgeRecords {
		g.Edges = append(g.Edges, NetworkEdge{
			Source:       getStringFromRecord(er, "source"),
			Target:       getStringFromRecord(er, "target"),
			SessionCount: getInt64FromRecord(er, "sessions"),
		})
	}

	return g, nil
}

// ServerActivity returns the raw counts for server social stats. Returns
// ErrNotFound for an unknown server.
func (r *Repository) ServerActivity(ctx context.Context, serverID string, now time.Time) (*ServerActivity, error) {
	query := `
		MATCH (s:Server {id: $id})
		OPTIONAL MATCH (p:Player)-[po:PLAYS_ON]->(s)
		WITH s, collect(DISTINCT p) AS players,
		     sum(CASE WHEN po.lastPlayed >= datetime($since30) THEN 1 ELSE 0 END) AS active30,
		     sum(CASE WHEN po.lastPlayed >= datetime($since90) THEN 1 ELSE 0 END) AS active90
		OPTIONAL MATCH (a:Player)-[r:PLAYED_WITH]->(b:Player)
		WHERE a IN players AND b IN players
		RETURN s.name AS name, size(players) AS unique_players, active30, active90, count(r) AS internal_edges
	`

	records, err := r.collect(ctx, "query server activity", query, map[string]interface{}{
		"id":      serverID,
		"since30": timeParam(now.AddDate(0, 0, -30)),
		"since90": timeParam(now.AddDate(0, 0, -90)),
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewNotFound("server", serverID)
	}

	record := records[0]
	return &ServerActivity{
		ServerID:      serverID,
		ServerName:    getStringFromRecord(record, "name"),
		UniquePlayers: getIntFromRecord(record, "unique_players"),
		Active30:      getIntFromRecord(record, "active30"),
		Active90:      getIntFromRecord(record, "active90"),
		InternalEdges: getInt64FromRecord(record, "internal_edges"),
	}, nil
}

// SquadCandidates gathers non-neighbors sharing a server or a teammate with
// the player, with the raw signals used for scoring
func (r *Repository) SquadCandidates(ctx context.Context, player string, limit int) ([]SquadCandidate, error) {
	query := `
		MATCH (me:Player {name: $name})
		CALL {
			WITH me
			MATCH (me)-[:PLAYS_ON]->(:Server)<-[:PLAYS_ON]-(c:Player)
			RETURN c
			UNION
			WITH me
			MATCH (me)-[:PLAYED_WITH]-(:Player)-[:PLAYED_WITH]-(c:Player)
			RETURN c
		}
		WITH DISTINCT me, c
		WHERE c <> me AND NOT (me)-[:PLAYED_WITH]-(c)
		OPTIONAL MATCH (me)-[mine:PLAYS_ON]->(s:Server)<-[theirs:PLAYS_ON]-(c)
		WITH me, c, count(DISTINCT s) AS common_servers,
		     sum(CASE WHEN s IS NOT NULL
		               AND abs(duration.inDays(mine.lastPlayed, theirs.lastPlayed).days) <= 7
		              THEN 1 ELSE 0 END) AS overlap_servers
		OPTIONAL MATCH (me)-[:PLAYED_WITH]-(m:Player)-[:PLAYED_WITH]-(c)
		WITH c, common_servers, overlap_servers, count(DISTINCT m) AS mutual
		RETURN c.name AS name, common_servers, overlap_servers, mutual
		ORDER BY common_servers + mutual DESC, name ASC
		LIMIT $limit
	`

	records, err := r.collect(ctx, "query squad candidates", query, map[string]interface{}{
		"name":  player,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]SquadCandidate, 0, len(records))
	for _, record := range records {
		out = append(out, SquadCandidate{
			Name:              getStringFromRecord(record, "name"),
			CommonServers:     getIntFromRecord(record, "common_servers"),
			OverlapServers:    getIntFromRecord(record, "overlap_servers"),
			MutualConnections: getIntFromRecord(record, "mutual"),
		})
	}
	return out, nil
}

// PlayerServerVisits lists PLAYS_ON edges last played inside [from, to),
// ordered per player by time
func (r *Repository) PlayerServerVisits(ctx context.Context, from, to time.Time) ([]PlayerServerVisit, error) {
	query := `
		MATCH (p:Player)-[po:PLAYS_ON]->(s:Server)
		WHERE po.lastPlayed >= datetime($from) AND po.lastPlayed < datetime($to)
		RETURN p.name AS player, s.id AS server, po.lastPlayed AS last, po.sessionCount AS sessions
		ORDER BY player ASC, last ASC
	`

	records, err := r.collect(ctx, "query player server visits", query, map[string]interface{}{
		"from": timeParam(from),
		"to":   timeParam(to),
	})
	if err != nil {
		return nil, err
	}

	out := make([]PlayerServerVisit, 0, len(records))
	for _, record := range records {
		out = append(out, PlayerServerVisit{
			Player:       getStringFromRecord(record, "player"),
			ServerID:     getStringFromRecord(record, "server"),
			LastPlayed:   getTimeFromRecord(record, "last"),
			SessionCount: getInt64FromRecord(record, "sessions"),
		})
	}
	return out, nil
}
