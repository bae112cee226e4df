package etl

import (
	"sort"
	"strings"
	"time"

	"squadgraph/backend/internal/sessions"
)

// coPlay is one pair detected in one round; metrics.Count is always 1
type coPlay struct {
	pair    PairKey
	metrics RelationshipMetrics
}

type slot struct {
	server string
	at     int64
}

// DetectCoPlay returns every pair of distinct players observed on the same
// server at the same timestamp within one round. Each pair appears once,
// canonically ordered, however often it co-occurs.
func DetectCoPlay(observations []sessions.Observation) []PairKey {
	events := detect(observations)
	pairs := make([]PairKey, 0, len(events))
	for _, e := range events {
		pairs = append(pairs, e.pair)
	}
	return pairs
}

func detect(observations []sessions.Observation) []coPlay {
	groups := make(map[slot]map[string]struct{})
	for _, o := range observations {
		name := strings.TrimSpace(o.PlayerName)
		if name == "" {
			continue
		}
		key := slot{server: o.ServerID, at: o.Timestamp.UnixNano()}
		if groups[key] == nil {
			groups[key] = make(map[string]struct{})
		}
		groups[key][name] = struct{}{}
	}

	found := make(map[PairKey]*coPlay)
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		names := make([]string, 0, len(members))
		for n := range members {
			names = append(names, n)
		}
		sort.Strings(names)

		at := time.Unix(0, key.at).UTC()
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				pk := PairKey{A: names[i], B: names[j]}
				if e, ok := found[pk]; ok {
					e.metrics.FirstSeen = earliest(e.metrics.FirstSeen, at)
					e.metrics.LastSeen = latest(e.metrics.LastSeen, at)
					if key.server != "" {
						e.metrics.Servers[key.server] = struct{}{}
					}
					continue
				}
				found[pk] = &coPlay{pair: pk, metrics: NewRelationshipMetrics(key.server, at, at)}
			}
		}
	}

	out := make([]coPlay, 0, len(found))
	for _, e := range found {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].pair.A != out[j].pair.A {
			return out[i].pair.A < out[j].pair.A
		}
		return out[i].pair.B < out[j].pair.B
	})
	return out
}
