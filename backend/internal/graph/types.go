package graph

import "time"

// ============================================================================
// Graph Node and Edge Types
// ============================================================================

// Player is keyed by the exact in-game name
type Player struct {
	Name        string    `json:"name"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	CommunityID string    `json:"community_id,omitempty"`
}

// Server is keyed by the server id from the session store
type Server struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Game string `json:"game,omitempty"`
}

// Relationship is an undirected PLAYED_WITH edge. PlayerA < PlayerB.
type Relationship struct {
	PlayerA             string    `json:"player_a"`
	PlayerB             string    `json:"player_b"`
	SessionCount        int64     `json:"session_count"`
	FirstPlayedTogether time.Time `json:"first_played_together"`
	LastPlayedTogether  time.Time `json:"last_played_together"`
	ServerIDs           []string  `json:"server_ids"`
}

// Other returns the endpoint that is not name.
func (r Relationship) Other(name string) string {
	if r.PlayerA == name {
		return r.PlayerB
	}
	return r.PlayerA
}

// PlaysOn is a directed Player -> Server edge
type PlaysOn struct {
	Player       string    `json:"player"`
	ServerID     string    `json:"server_id"`
	SessionCount int64     `json:"session_count"`
	LastPlayed   time.Time `json:"last_played"`
}

// Community is rebuilt from scratch on every detection run
type Community struct {
	ID                 string    `json:"id"`
	Leader             string    `json:"leader"`
	Members            []string  `json:"members"`
	CoreMembers        []string  `json:"core_members"`
	PrimaryServers     []string  `json:"primary_servers"`
	FormationDate      time.Time `json:"formation_date"`
	LastActiveDate     time.Time `json:"last_active_date"`
	AvgSessionsPerPair float64   `json:"avg_sessions_per_pair"`
	CohesionScore      float64   `json:"cohesion_score"`
}

// ============================================================================
// Write Batches
// ============================================================================

// PlayerUpsert widens a Player's first/last seen window
type PlayerUpsert struct {
	Name      string
	FirstSeen time.Time
	LastSeen  time.Time
}

// RelationshipUpsert adds Count sessions to a PLAYED_WITH edge and widens its
// timestamps. PlayerA must sort before PlayerB.
type RelationshipUpsert struct {
	PlayerA   string
	PlayerB   string
	Count     int64
	First     time.Time
	Last      time.Time
	ServerIDs []string
}

// PlaysOnUpsert adds Count sessions to a PLAYS_ON edge
type PlaysOnUpsert struct {
	Player     string
	ServerID   string
	Count      int64
	FirstSeen  time.Time
	LastPlayed time.Time
}

// AliasFeedback is an operator verdict on an alias suspicion
type AliasFeedback struct {
	PlayerA    string    `json:"player_a"`
	PlayerB    string    `json:"player_b"`
	Verdict    string    `json:"verdict"` // confirmed, rejected
	Note       string    `json:"note,omitempty"`
	Reviewer   string    `json:"reviewer,omitempty"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ============================================================================
// Read Projections
// ============================================================================

// Teammate is one neighbor of a player on the co-play graph
type Teammate struct {
	Name                string    `json:"name"`
	SessionCount        int64     `json:"session_count"`
	FirstPlayedTogether time.Time `json:"first_played_together"`
	LastPlayedTogether  time.Time `json:"last_played_together"`
	ServerIDs           []string  `json:"server_ids"`
}

// PotentialConnection is a player seen on the same servers but never teamed with
type PotentialConnection struct {
	Name          string    `json:"name"`
	SharedServers []string  `json:"shared_servers"`
	LastActive    time.Time `json:"last_active"`
}

// SharedServer describes a server both players of a pair play on
type SharedServer struct {
	ServerID          string    `json:"server_id"`
	ServerName        string    `json:"server_name"`
	PlayerASessions   int64     `json:"player_a_sessions"`
	PlayerBSessions   int64     `json:"player_b_sessions"`
	PlayerALastPlayed time.Time `json:"player_a_last_played"`
	PlayerBLastPlayed time.Time `json:"player_b_last_played"`
}

// RecentConnection is an edge touched inside a trailing window
type RecentConnection struct {
	Name                string    `json:"name"`
	SessionCount        int64     `json:"session_count"`
	FirstPlayedTogether time.Time `json:"first_played_together"`
	LastPlayedTogether  time.Time `json:"last_played_together"`
	IsNew               bool      `json:"is_new"`
}

// NetworkStats summarises one player's neighborhood
type NetworkStats struct {
	Player          string `json:"player"`
	ConnectionCount int    `json:"connection_count"`
	TotalSessions   int64  `json:"total_sessions"`
	DistinctServers int    `json:"distinct_servers"`
}

// NetworkNode is a player reached by a bounded traversal
type NetworkNode struct {
	Name        string `json:"name"`
	Depth       int    `json:"depth"`
	CommunityID string `json:"community_id,omitempty"`
}

// NetworkEdge connects two returned nodes
type NetworkEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SessionCount int64  `json:"session_count"`
}

// NetworkGraph is a depth- and node-capped ego network
type NetworkGraph struct {
	Center    string        `json:"center"`
	Depth     int           `json:"depth"`
	Nodes     []NetworkNode `json:"nodes"`
	Edges     []NetworkEdge `json:"edges"`
	Truncated bool          `json:"truncated"`
}

// ServerActivity holds the raw counts behind server social stats
type ServerActivity struct {
	ServerID      string
	ServerName    string
	UniquePlayers int
	Active30      int
	Active90      int
	InternalEdges int64
}

// SquadCandidate holds the raw signals behind a squad recommendation
type SquadCandidate struct {
	Name              string
	CommonServers     int
	OverlapServers    int // shared servers where both were active within a week of each other
	MutualConnections int
}

// PlayerServerVisit is one PLAYS_ON edge, used to derive migrations
type PlayerServerVisit struct {
	Player       string
	ServerID     string
	LastPlayed   time.Time
	SessionCount int64
}
