package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"squadgraph/backend/pkg/errors"
)

// ============================================================================
// Community Operations
// ============================================================================

// StrongEdges returns every PLAYED_WITH edge with at least minSessions
// sessions, in canonical (a < b) orientation
func (r *Repository) StrongEdges(ctx context.Context, minSessions int64) ([]Relationship, error) {
	query := `
		MATCH (a:Player)-[r:PLAYED_WITH]->(b:Player)
		WHERE r.sessionCount >= $min
		RETURN a.name AS a, b.name AS b,
		       r.sessionCount AS sessions,
		       r.firstPlayedTogether AS first,
		       r.lastPlayedTogether AS last
	`

	records, err := r.collect(ctx, "query strong edges", query, map[string]interface{}{"min": minSessions})
	if err != nil {
		return nil, err
	}

	edges := make([]Relationship, 0, len(records))
	for _, record := range records {
		a := getStringFromRecord(record, "a")
		b := getStringFromRecord(record, "b")
		if b < a {
			a, b = b, a
		}
		edges = append(edges, Relationship{
			PlayerA:             a,
			PlayerB:             b,
			SessionCount:        getInt64FromRecord(record, "sessions"),
			FirstPlayedTogether: getTimeFromRecord(record, "first"),
			LastPlayedTogether:  getTimeFromRecord(record, "last"),
		})
	}
	return edges, nil
}

// PlayCounts returns the PLAYS_ON edges of the given players
func (r *Repository) PlayCounts(ctx context.Context, players []string) ([]PlaysOn, error) {
	if len(players) == 0 {
		return []PlaysOn{}, nil
	}

	query := `
		MATCH (p:Player)-[po:PLAYS_ON]->(s:Server)
		WHERE p.name IN $names
		RETURN p.name AS player, s.id AS server, po.sessionCount AS sessions, po.lastPlayed AS last
	`

	records, err := r.collect(ctx, "query play counts", query, map[string]interface{}{"names": players})
	if err != nil {
		return nil, err
	}

	out := make([]PlaysOn, 0, len(records))
	for _, record := range records {
		out = append(out, PlaysOn{
			Player:       getStringFromRecord(record, "player"),
			ServerID:     getStringFromRecord(record, "server"),
			SessionCount: getInt64FromRecord(record, "sessions"),
			LastPlayed:   getTimeFromRecord(record, "last"),
		})
	}
	return out, nil
}

// ReplaceCommunities drops every Community node and membership and writes the
// new set, all in one transaction
func (r *Repository) ReplaceCommunities(ctx context.Context, communities []Community) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	params := make([]map[string]interface{}, 0, len(communities))
	for _, c := range communities {
		params = append(params, map[string]interface{}{
			"id":                 c.ID,
			"leader":             c.Leader,
			"members":            c.Members,
			"coreMembers":        c.CoreMembers,
			"primaryServers":     c.PrimaryServers,
			"formationDate":      timeParam(c.FormationDate),
			"lastActiveDate":     timeParam(c.LastActiveDate),
			"avgSessionsPerPair": c.AvgSessionsPerPair,
			"cohesionScore":      c.CohesionScore,
		})
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if _, err := tx.Run(ctx, `MATCH (c:Community) DETACH DELETE c`, nil); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `MATCH (p:Player) WHERE p.communityId IS NOT NULL REMOVE p.communityId`, nil); err != nil {
			return nil, err
		}
		if len(params) == 0 {
			return nil, nil
		}

		query := `
			UNWIND $communities AS c
			CREATE (n:Community {
				id: c.id,
				leader: c.leader,
				coreMembers: c.coreMembers,
				primaryServers: c.primaryServers,
				formationDate: datetime(c.formationDate),
				lastActiveDate: datetime(c.lastActiveDate),
				avgSessionsPerPair: c.avgSessionsPerPair,
				cohesionScore: c.cohesionScore,
				size: size(c.members)
			})
			WITH n, c
			UNWIND c.members AS member
			MATCH (p:Player {name: member})
			MERGE (p)-[:MEMBER_OF]->(n)
			SET p.communityId = c.id
		`
		if _, err := tx.Run(ctx, query, map[string]interface{}{"communities": params}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return r.wrap("replace communities", err)
	}

	r.logger.Info("Communities replaced", zap.Int("count", len(communities)))
	return nil
}

const communityReturn = `
	RETURN c.id AS id, c.leader AS leader,
	       members,
	       c.coreMembers AS core,
	       c.primaryServers AS servers,
	       c.formationDate AS formed,
	       c.lastActiveDate AS last_active,
	       c.avgSessionsPerPair AS avg_sessions,
	       c.cohesionScore AS cohesion
`

// Communities lists every community, largest first
func (r *Repository) Communities(ctx context.Context) ([]Community, error) {
	query := `
		MATCH (c:Community)
		OPTIONAL MATCH (p:Player)-[:MEMBER_OF]->(c)
		WITH c, collect(p.name) AS members
	` + communityReturn + `
		ORDER BY size(members) DESC, id ASC
	`

	records, err := r.collect(ctx, "query communities", query, nil)
	if err != nil {
		return nil, err
	}

	out := make([]Community, 0, len(records))
	for _, record := range records {
		out = append(out, communityFromRecord(record))
	}
	return out, nil
}

// PlayerCommunity returns the community a player belongs to. Returns
// ErrNotFound when the player is in none.
func (r *Repository) PlayerCommunity(ctx context.Context, player string) (*Community, error) {
	query := `
		MATCH (:Player {name: $name})-[:MEMBER_OF]->(c:Community)
		MATCH (p:Player)-[:MEMBER_OF]->(c)
		WITH c, collect(p.name) AS members
	` + communityReturn

	records, err := r.collect(ctx, "query player community", query, map[string]interface{}{"name": player})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewNotFound("community", player)
	}

	c := communityFromRecord(records[0])
	return &c, nil
}

func communityFromRecord(record *neo4j.Record) Community {
	return Community{
		ID:                 getStringFromRecord(record, "id"),
		Leader:             getStringFromRecord(record, "leader"),
		Members:            getStringSliceFromRecord(record, "members"),
		CoreMembers:        getStringSliceFromRecord(record, "core"),
		PrimaryServers:     getStringSliceFromRecord(record, "servers"),
		FormationDate:      getTimeFromRecord(record, "formed"),
		LastActiveDate:     getTimeFromRecord(record, "last_active"),
		AvgSessionsPerPair: getFloat64FromRecord(record, "avg_sessions"),
		CohesionScore:      getFloat64FromRecord(record, "cohesion"),
	}
}
