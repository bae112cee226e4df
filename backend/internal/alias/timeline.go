package alias

import (
	"context"
	"fmt"

	"squadgraph/backend/internal/sessions"
)

// TimelinePattern names the shape of two activity spans
type TimelinePattern string

const (
	PatternSequential TimelinePattern = "sequential"
	PatternOverlap    TimelinePattern = "overlapping"
	PatternUnknown    TimelinePattern = "unknown"
)

// ActivityTimeline lines up the two accounts' activity spans
type ActivityTimeline struct {
	Signal
	PlayerA        sessions.ActivitySpan `json:"player_a"`
	PlayerB        sessions.ActivitySpan `json:"player_b"`
	SwitchoverDays float64               `json:"switchover_days"`
	OverlapDays    float64               `json:"overlap_days"`
	Pattern        TimelinePattern       `json:"pattern"`
}

const timelineNeutral = 0.5

// SwitchoverScore scores the gap between one account going quiet and the
// other appearing; negative values are overlaps
func SwitchoverScore(switchoverDays float64) float64 {
	switch {
	case switchoverDays >= 0 && switchoverDays <= 7:
		return 0.95
	case switchoverDays > 7 && switchoverDays <= 30:
		return 0.75
	case switchoverDays > 30:
		return 0.50
	case -switchoverDays < 7:
		return 0.30
	}
	return 0.15
}

// BuildTimeline compares two activity spans
func BuildTimeline(a, b sessions.ActivitySpan) ActivityTimeline {
	out := ActivityTimeline{PlayerA: a, PlayerB: b, Pattern: PatternUnknown}
	if a.Sessions == 0 || b.Sessions == 0 {
		out.Signal = insufficient(timelineNeutral, "No activity recorded for one of the players")
		return out
	}

	earlierEnd := a.LastSeen
	if b.LastSeen.Before(earlierEnd) {
		earlierEnd = b.LastSeen
	}
	laterStart := a.FirstSeen
	if b.FirstSeen.After(laterStart) {
		laterStart = b.FirstSeen
	}

	out.SwitchoverDays = days(laterStart.Sub(earlierEnd))
	if out.SwitchoverDays < 0 {
		out.OverlapDays = -out.SwitchoverDays
		out.Pattern = PatternOverlap
		out.Signal = sufficient(SwitchoverScore(out.SwitchoverDays),
			fmt.Sprintf("Accounts were active concurrently for %.0f days", out.OverlapDays))
		return out
	}

	out.Pattern = PatternSequential
	out.Signal = sufficient(SwitchoverScore(out.SwitchoverDays),
		fmt.Sprintf("One account appeared %.1f days after the other went quiet", out.SwitchoverDays))
	return out
}

func (e *Engine) analyzeTimeline(ctx context.Context, a, b string) (ActivityTimeline, error) {
	spanA, err := e.sessions.Activity(ctx, a)
	if err != nil {
		return ActivityTimeline{}, err
	}
	spanB, err := e.sessions.Activity(ctx, b)
	if err != nil {
		return ActivityTimeline{}, err
	}
	return BuildTimeline(*spanA, *spanB), nil
}
