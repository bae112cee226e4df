package etl

import (
	"sort"
	"time"
)

// PairKey identifies an unordered player pair. A always sorts before B.
type PairKey struct {
	A string
	B string
}

// NewPairKey orders two names canonically
func NewPairKey(x, y string) PairKey {
	if y < x {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

// RelationshipMetrics aggregates co-play between one pair within a batch
type RelationshipMetrics struct {
	Count     int64
	FirstSeen time.Time
	LastSeen  time.Time
	Servers   map[string]struct{}
}

// NewRelationshipMetrics records a single co-play observation
func NewRelationshipMetrics(serverID string, first, last time.Time) RelationshipMetrics {
	m := RelationshipMetrics{
		Count:     1,
		FirstSeen: first,
		LastSeen:  last,
		Servers:   make(map[string]struct{}, 1),
	}
	if serverID != "" {
		m.Servers[serverID] = struct{}{}
	}
	return m
}

// Merge combines two metrics without mutating either: counts add, the time
// window widens and server sets union
func (m RelationshipMetrics) Merge(other RelationshipMetrics) RelationshipMetrics {
	out := RelationshipMetrics{
		Count:     m.Count + other.Count,
		FirstSeen: earliest(m.FirstSeen, other.FirstSeen),
		LastSeen:  latest(m.LastSeen, other.LastSeen),
		Servers:   make(map[string]struct{}, len(m.Servers)+len(other.Servers)),
	}
	for s := range m.Servers {
		out.Servers[s] = struct{}{}
	}
	for s := range other.Servers {
		out.Servers[s] = struct{}{}
	}
	return out
}

// absorb merges other into m in place
func (m *RelationshipMetrics) absorb(other RelationshipMetrics) {
	m.Count += other.Count
	m.FirstSeen = earliest(m.FirstSeen, other.FirstSeen)
	m.LastSeen = latest(m.LastSeen, other.LastSeen)
	if m.Servers == nil {
		m.Servers = make(map[string]struct{}, len(other.Servers))
	}
	for s := range other.Servers {
		m.Servers[s] = struct{}{}
	}
}

// ServerIDs returns the server set sorted
func (m RelationshipMetrics) ServerIDs() []string {
	ids := make([]string, 0, len(m.Servers))
	for s := range m.Servers {
		ids = append(ids, s)
	}
	sort.Strings(ids)
	return ids
}

// earliest treats the zero time as absent
func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
