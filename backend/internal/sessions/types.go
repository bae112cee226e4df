package sessions

import "time"

// Observation is one sighting of a player on a server at a timestamp
type Observation struct {
	RoundID    string
	ServerID   string
	PlayerName string
	Timestamp  time.Time
	Kills      int
	Deaths     int
	Score      int
	Ping       int
}

// Round is one match on one server with its observations
type Round struct {
	ID           string
	ServerID     string
	MapName      string
	StartTime    time.Time
	EndTime      time.Time
	Observations []Observation
}

// RoundCursor is the keyset position after the last round of a page
type RoundCursor struct {
	StartTime time.Time
	RoundID   string
}

// Session is a player's stay in one round
type Session struct {
	RoundID          string
	PlayerName       string
	ServerID         string
	MapName          string
	StartTime        time.Time
	LastSeenTime     time.Time
	TotalKills       int
	TotalDeaths      int
	TotalScore       int
	AveragePing      float64
	ObservationCount int
}

// ServerInfo describes a server row
type ServerInfo struct {
	ID     string
	Name   string
	GameID string
}

// PlayerServerActivity aggregates a player's sessions on one server
type PlayerServerActivity struct {
	PlayerName string
	ServerID   string
	ServerName string
	GameID     string
	Sessions   int64
	FirstSeen  time.Time
	LastSeen   time.Time
}

// PlayerServerCursor is the keyset position after the last aggregate of a page
type PlayerServerCursor struct {
	PlayerName string
	ServerID   string
}

// PlayerTotals are lifetime combat totals
type PlayerTotals struct {
	Rounds      int
	Kills       int64
	Deaths      int64
	Score       int64
	PlayMinutes float64
}

// SessionPattern summarises session length and frequency
type SessionPattern struct {
	Sessions           int
	AvgDurationMinutes float64
	SessionsPerWeek    float64
}

// ActivitySpan is a player's first and last recorded activity
type ActivitySpan struct {
	Player    string
	FirstSeen time.Time
	LastSeen  time.Time
	Sessions  int
}
