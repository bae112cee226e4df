package etl

import (
	"sort"
	"strings"
	"time"

	"squadgraph/backend/internal/graph"
	"squadgraph/backend/internal/sessions"
)

type playerSpan struct {
	first time.Time
	last  time.Time
}

// Accumulator folds rounds into per-pair metrics keyed by canonical pair.
// It is owned by a single sync run and is not safe for concurrent use.
type Accumulator struct {
	pairs   map[PairKey]*RelationshipMetrics
	players map[string]*playerSpan
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		pairs:   make(map[PairKey]*RelationshipMetrics),
		players: make(map[string]*playerSpan),
	}
}

// AddRound detects co-play in one round and merges it in. Returns the number
// of pairs the round contributed.
func (a *Accumulator) AddRound(round sessions.Round) int {
	for _, o := range round.Observations {
		name := strings.TrimSpace(o.PlayerName)
		if name == "" {
			continue
		}
		a.seePlayer(name, o.Timestamp)
	}

	events := detect(round.Observations)
	for _, e := range events {
		a.Add(e.pair, e.metrics)
	}
	return len(events)
}

// Add merges metrics for a pair
func (a *Accumulator) Add(pair PairKey, m RelationshipMetrics) {
	if existing, ok := a.pairs[pair]; ok {
		existing.absorb(m)
		return
	}
	fresh := m.Merge(RelationshipMetrics{})
	a.pairs[pair] = &fresh
}

func (a *Accumulator) seePlayer(name string, at time.Time) {
	if span, ok := a.players[name]; ok {
		span.first = earliest(span.first, at)
		span.last = latest(span.last, at)
		return
	}
	a.players[name] = &playerSpan{first: at, last: at}
}

// PairCount is the number of distinct pending pairs
func (a *Accumulator) PairCount() int {
	return len(a.pairs)
}

// Get returns the pending metrics of a pair
func (a *Accumulator) Get(pair PairKey) (RelationshipMetrics, bool) {
	m, ok := a.pairs[pair]
	if !ok {
		return RelationshipMetrics{}, false
	}
	return *m, true
}

// Drain converts pending state into graph upserts, sorted for stable lock
// ordering, and resets the accumulator
func (a *Accumulator) Drain() ([]graph.PlayerUpsert, []graph.RelationshipUpsert) {
	players := make([]graph.PlayerUpsert, 0, len(a.players))
	for name, span := range a.players {
		players = append(players, graph.PlayerUpsert{Name: name, FirstSeen: span.first, LastSeen: span.last})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })

	pairs := make([]graph.RelationshipUpsert, 0, len(a.pairs))
	for key, m := range a.pairs {
		pairs = append(pairs, graph.RelationshipUpsert{
			PlayerA:   key.A,
			PlayerB:   key.B,
			Count:     m.Count,
			First:     m.FirstSeen,
			Last:      m.LastSeen,
			ServerIDs: m.ServerIDs(),
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].PlayerA != pairs[j].PlayerA {
			return pairs[i].PlayerA < pairs[j].PlayerA
		}
		return pairs[i].PlayerB < pairs[j].PlayerB
	})

	a.pairs = make(map[PairKey]*RelationshipMetrics)
	a.players = make(map[string]*playerSpan)
	return players, pairs
}
