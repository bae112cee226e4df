package alias

import (
	"context"
	"fmt"
	"math"
	"time"
)

// TemporalAnalysis checks whether the accounts are ever online together
type TemporalAnalysis struct {
	Signal
	CoSessions        int     `json:"co_sessions"`
	LastActiveGapDays float64 `json:"last_active_gap_days"`
	OverlapScore      float64 `json:"overlap_score"`
	GapScore          float64 `json:"gap_score"`
	Discounted        bool    `json:"discounted"`
}

const (
	temporalOverlapWeight = 0.6
	temporalGapWeight     = 0.4
	// coSessionDiscount applies when the players were seen in the same round
	coSessionDiscount = 0.3

	temporalNeutral = 0.5
)

// GapScore rewards long gaps between the two accounts' last activity
func GapScore(days float64) float64 {
	switch {
	case days > 30:
		return 0.9
	case days > 14:
		return 0.7
	case days > 7:
		return 0.5
	}
	return 0.2
}

func (e *Engine) analyzeTemporal(ctx context.Context, a, b string) (TemporalAnalysis, error) {
	spanA, err := e.sessions.Activity(ctx, a)
	if err != nil {
		return TemporalAnalysis{}, err
	}
	spanB, err := e.sessions.Activity(ctx, b)
	if err != nil {
		return TemporalAnalysis{}, err
	}
	co, err := e.sessions.CoSessions(ctx, a, b)
	if err != nil {
		return TemporalAnalysis{}, err
	}

	out := TemporalAnalysis{CoSessions: co}
	if spanA.Sessions == 0 || spanB.Sessions == 0 {
		out.Signal = insufficient(temporalNeutral, "No activity recorded for one of the players")
		return out, nil
	}

	out.LastActiveGapDays = math.Abs(spanA.LastSeen.Sub(spanB.LastSeen).Hours()) / 24
	out.OverlapScore = 1 / (1 + float64(co))
	out.GapScore = GapScore(out.LastActiveGapDays)

	score := temporalOverlapWeight*out.OverlapScore + temporalGapWeight*out.GapScore
	explanation := fmt.Sprintf("Never seen in the same round; last activity %.0f days apart", out.LastActiveGapDays)
	if co > 0 {
		score *= coSessionDiscount
		out.Discounted = true
		explanation = fmt.Sprintf("Seen together in %d rounds", co)
	}
	out.Signal = sufficient(score, explanation)
	return out, nil
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}
