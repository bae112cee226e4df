package constants

import "time"

// Graph labels and relationship types
const (
	LabelPlayer    = "Player"
	LabelServer    = "Server"
	LabelCommunity = "Community"

	RelPlayedWith    = "PLAYED_WITH"
	RelPlaysOn       = "PLAYS_ON"
	RelMemberOf      = "MEMBER_OF"
	RelAliasFeedback = "ALIAS_FEEDBACK"
)

// ETL batching defaults
const (
	DefaultRoundPageSize    = 500
	DefaultFlushEveryRounds = 5000
	DefaultMaxPendingPairs  = 50000
	// DefaultPlayerServerPageSize bounds one page of player+server aggregates
	DefaultPlayerServerPageSize = 2000
)

// Community detection defaults
const (
	DefaultCommunityMinSessions = 3
	DefaultCommunityMinSize     = 3
	CommunityTopN               = 5
)

// Query limits
const (
	DefaultTeammateLimit     = 10
	MaxTeammateLimit         = 100
	DefaultNetworkGraphNodes = 100
	MaxNetworkGraphNodes     = 500
	MinNetworkDepth          = 1
	MaxNetworkDepth          = 3
	DefaultRecentDays        = 30
	DefaultSuggestionLimit   = 10
)

// Cache TTLs
const (
	TTLTeammates       = 30 * time.Minute
	TTLRelationship    = time.Hour
	TTLSharedServers   = time.Hour
	TTLNetworkStats    = 2 * time.Hour
	TTLNetworkGraph    = 15 * time.Minute
	TTLCommunities     = 24 * time.Hour
	TTLMigrationFlow   = 6 * time.Hour
	TTLServerLifecycle = 12 * time.Hour
)
