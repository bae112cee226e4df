package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Co-play Upserts
// ============================================================================

const upsertPlayersQuery = `
	UNWIND $players AS p
	MERGE (n:Player {name: p.name})
	ON CREATE SET
		n.firstSeen = datetime(p.firstSeen),
		n.lastSeen = datetime(p.lastSeen)
	ON MATCH SET
		n.firstSeen = CASE
			WHEN n.firstSeen IS NULL OR datetime(p.firstSeen) < n.firstSeen THEN datetime(p.firstSeen)
			ELSE n.firstSeen
		END,
		n.lastSeen = CASE
			WHEN n.lastSeen IS NULL OR datetime(p.lastSeen) > n.lastSeen THEN datetime(p.lastSeen)
			ELSE n.lastSeen
		END
`

const upsertRelationshipsQuery = `
	UNWIND $pairs AS pair
	MATCH (a:Player {name: pair.a})
	MATCH (b:Player {name: pair.b})
	MERGE (a)-[r:PLAYED_WITH]->(b)
	ON CREATE SET
		r.sessionCount = pair.count,
		r.firstPlayedTogether = datetime(pair.first),
		r.lastPlayedTogether = datetime(pair.last),
		r.servers = pair.servers
	ON MATCH SET
		r.sessionCount = r.sessionCount + pair.count,
		r.firstPlayedTogether = CASE
			WHEN datetime(pair.first) < r.firstPlayedTogether THEN datetime(pair.first)
			ELSE r.firstPlayedTogether
		END,
		r.lastPlayedTogether = CASE
			WHEN datetime(pair.last) > r.lastPlayedTogether THEN datetime(pair.last)
			ELSE r.lastPlayedTogether
		END,
		r.servers = r.servers + [s IN pair.servers WHERE NOT s IN r.servers]
`

const upsertServersQuery = `
	UNWIND $servers AS s
	MERGE (n:Server {id: s.id})
	SET n.name = CASE WHEN s.name <> '' THEN s.name ELSE n.name END,
		n.game = CASE WHEN s.game <> '' THEN s.game ELSE n.game END
`

const upsertPlaysOnQuery = `
	UNWIND $edges AS e
	MERGE (p:Player {name: e.player})
	ON CREATE SET p.firstSeen = datetime(e.firstSeen), p.lastSeen = datetime(e.lastPlayed)
	ON MATCH SET
		p.firstSeen = CASE
			WHEN p.firstSeen IS NULL OR datetime(e.firstSeen) < p.firstSeen THEN datetime(e.firstSeen)
			ELSE p.firstSeen
		END,
		p.lastSeen = CASE
			WHEN p.lastSeen IS NULL OR datetime(e.lastPlayed) > p.lastSeen THEN datetime(e.lastPlayed)
			ELSE p.lastSeen
		END
	WITH p, e
	MATCH (s:Server {id: e.server})
	MERGE (p)-[r:PLAYS_ON]->(s)
	ON CREATE SET
		r.sessionCount = e.count,
		r.lastPlayed = datetime(e.lastPlayed)
	ON MATCH SET
		r.sessionCount = r.sessionCount + e.count,
		r.lastPlayed = CASE
			WHEN datetime(e.lastPlayed) > r.lastPlayed THEN datetime(e.lastPlayed)
			ELSE r.lastPlayed
		END
`

// UpsertCoPlayBatch writes one ETL flush: player nodes first, then
// PLAYED_WITH edges, all inside a single write transaction. Either the whole
// flush commits or none of it does.
func (r *Repository) UpsertCoPlayBatch(ctx context.Context, players []PlayerUpsert, pairs []RelationshipUpsert) error {
	if len(players) == 0 && len(pairs) == 0 {
		return nil
	}

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		for start := 0; start < len(players); start += upsertChunkSize {
			end := min(start+upsertChunkSize, len(players))
			params := make([]map[string]interface{}, 0, end-start)
			for _, p := range players[start:end] {
				params = append(params, map[string]interface{}{
					"name":      p.Name,
					"firstSeen": timeParam(p.FirstSeen),
					"lastSeen":  timeParam(p.LastSeen),
				})
			}
			if _, err := tx.Run(ctx, upsertPlayersQuery, map[string]interface{}{"players": params}); err != nil {
				return nil, err
			}
		}

		for start := 0; start < len(pairs); start += upsertChunkSize {
			end := min(start+upsertChunkSize, len(pairs))
			params := make([]map[string]interface{}, 0, end-start)
			for _, p := range pairs[start:end] {
				params = append(params, map[string]interface{}{
					"a":       p.PlayerA,
					"b":       p.PlayerB,
					"count":   p.Count,
					"first":   timeParam(p.First),
					"last":    timeParam(p.Last),
					"servers": p.ServerIDs,
				})
			}
			if _, err := tx.Run(ctx, upsertRelationshipsQuery, map[string]interface{}{"pairs": params}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return r.wrap("upsert co-play batch", err)
	}

	r.logger.Debug("Co-play batch committed",
		zap.Int("players", len(players)),
		zap.Int("pairs", len(pairs)),
	)
	return nil
}

// UpsertPlaysOnBatch writes Server nodes and PLAYS_ON edges in one transaction
func (r *Repository) UpsertPlaysOnBatch(ctx context.Context, servers []Server, edges []PlaysOnUpsert) error {
	if len(servers) == 0 && len(edges) == 0 {
		return nil
	}

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		serverParams := make([]map[string]interface{}, 0, len(servers))
		for _, s := range servers {
			serverParams = append(serverParams, map[string]interface{}{
				"id":   s.ID,
				"name": s.Name,
				"game": s.Game,
			})
		}
		if len(serverParams) > 0 {
			if _, err := tx.Run(ctx, upsertServersQuery, map[string]interface{}{"servers": serverParams}); err != nil {
				return nil, err
			}
		}

		for start := 0; start < len(edges); start += upsertChunkSize {
			end := min(start+upsertChunkSize, len(edges))
			params := make([]map[string]interface{}, 0, end-start)
			for _, e := range edges[start:end] {
				params = append(params, map[string]interface{}{
					"player":     e.Player,
					"server":     e.ServerID,
					"count":      e.Count,
					"firstSeen":  timeParam(e.FirstSeen),
					"lastPlayed": timeParam(e.LastPlayed),
				})
			}
			if _, err := tx.Run(ctx, upsertPlaysOnQuery, map[string]interface{}{"edges": params}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return r.wrap("upsert plays-on batch", err)
	}

	r.logger.Debug("Plays-on batch committed",
		zap.Int("servers", len(servers)),
		zap.Int("edges", len(edges)),
	)
	return nil
}
