package alias

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// BehavioralAnalysis compares when, where and how long players play
type BehavioralAnalysis struct {
	Signal
	PlaytimeSimilarity       float64  `json:"playtime_similarity"`
	ServerOverlap            float64  `json:"server_overlap"`
	PingSimilarity           float64  `json:"ping_similarity"`
	SessionPatternSimilarity float64  `json:"session_pattern_similarity"`
	CommonServers            []string `json:"common_servers"`
	AvgPingDifference        float64  `json:"avg_ping_difference"`
}

const (
	behaviorPlaytimeWeight = 0.30
	behaviorServerWeight   = 0.30
	behaviorPingWeight     = 0.20
	behaviorPatternWeight  = 0.20

	pingNoData          = 0.5
	pingNoCommonServers = 0.3
)

// PingScore steps the mean relative ping difference on common servers
func PingScore(relativeDiff float64) float64 {
	switch {
	case relativeDiff < 0.05:
		return 0.95
	case relativeDiff < 0.15:
		return 0.70
	case relativeDiff < 0.30:
		return 0.40
	}
	return 0.10
}

// insufficientBehavior is the documented fallback when either player has no
// sessions at all
func insufficientBehavior() BehavioralAnalysis {
	return BehavioralAnalysis{
		Signal:         insufficient(0.0, "Insufficient session data"),
		PingSimilarity: pingNoData,
		CommonServers:  []string{},
	}
}

func (e *Engine) analyzeBehavior(ctx context.Context, a, b string) (BehavioralAnalysis, error) {
	pa, err := e.sessions.Pattern(ctx, a)
	if err != nil {
		return BehavioralAnalysis{}, err
	}
	pb, err := e.sessions.Pattern(ctx, b)
	if err != nil {
		return BehavioralAnalysis{}, err
	}
	if pa.Sessions == 0 || pb.Sessions == 0 {
		return insufficientBehavior(), nil
	}

	lookback := e.cfg.hourLookback()
	ha, err := e.sessions.HourHistogram(ctx, a, lookback)
	if err != nil {
		return BehavioralAnalysis{}, err
	}
	hb, err := e.sessions.HourHistogram(ctx, b, lookback)
	if err != nil {
		return BehavioralAnalysis{}, err
	}
	sa, err := e.sessions.ServerSet(ctx, a)
	if err != nil {
		return BehavioralAnalysis{}, err
	}
	sb, err := e.sessions.ServerSet(ctx, b)
	if err != nil {
		return BehavioralAnalysis{}, err
	}
	pingA, err := e.sessions.ServerPings(ctx, a)
	if err != nil {
		return BehavioralAnalysis{}, err
	}
	pingB, err := e.sessions.ServerPings(ctx, b)
	if err != nil {
		return BehavioralAnalysis{}, err
	}

	out := BehavioralAnalysis{CommonServers: intersect(sa, sb)}

	playtime, ok := PlaytimeSimilarity(ha, hb)
	if !ok {
		playtime = 0.5
	}
	out.PlaytimeSimilarity = playtime
	out.ServerOverlap, _ = Jaccard(sa, sb)
	out.PingSimilarity, out.AvgPingDifference = pingSimilarity(pingA, pingB)
	out.SessionPatternSimilarity = (RatioSimilarity(pa.AvgDurationMinutes, pb.AvgDurationMinutes) +
		RatioSimilarity(pa.SessionsPerWeek, pb.SessionsPerWeek)) / 2

	score := behaviorPlaytimeWeight*out.PlaytimeSimilarity +
		behaviorServerWeight*out.ServerOverlap +
		behaviorPingWeight*out.PingSimilarity +
		behaviorPatternWeight*out.SessionPatternSimilarity

	out.Signal = sufficient(score, fmt.Sprintf("%d common servers, play-hour similarity %.2f",
		len(out.CommonServers), out.PlaytimeSimilarity))
	return out, nil
}

// pingSimilarity returns the stepped score and the mean absolute ping
// difference over common servers
func pingSimilarity(a, b map[string]float64) (float64, float64) {
	if len(a) == 0 || len(b) == 0 {
		return pingNoData, 0
	}

	var relSum, absSum float64
	common := 0
	for server, pa := range a {
		pb, ok := b[server]
		if !ok {
			continue
		}
		common++
		absSum += math.Abs(pa - pb)
		if hi := math.Max(pa, pb); hi > 0 {
			relSum += math.Abs(pa-pb) / hi
		}
	}
	if common == 0 {
		return pingNoCommonServers, 0
	}
	return PingScore(relSum / float64(common)), absSum / float64(common)
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
			delete(set, s)
		}
	}
	sort.Strings(out)
	return out
}
