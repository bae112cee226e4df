package alias

import "fmt"

// Flag is a human-readable piece of evidence
type Flag struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const conflictingSignals = "conflicting_signals"

func redFlags(r *Report) []Flag {
	flags := []Flag{}
	if r.Stats.IsSufficient() && r.Stats.KDSimilarity >= 0.95 {
		flags = append(flags, Flag{"near_identical_kd", fmt.Sprintf("Near-identical K/D (%.2f vs %.2f)", r.Stats.KDA, r.Stats.KDB)})
	}
	if r.Behavior.IsSufficient() && r.Behavior.PlaytimeSimilarity >= 0.90 {
		flags = append(flags, Flag{"matching_play_hours", "Play the same hours of the day"})
	}
	if r.Behavior.IsSufficient() && r.Behavior.PingSimilarity >= 0.95 {
		flags = append(flags, Flag{"matching_ping", "Near-identical ping on common servers"})
	}
	if r.Network.IsSufficient() && r.Network.TeammateJaccard >= 0.5 && r.Temporal.CoSessions == 0 {
		flags = append(flags, Flag{"shared_circle_never_together",
			fmt.Sprintf("Share %d teammates but never played together", r.Network.SharedTeammates)})
	}
	if r.Timeline.IsSufficient() && r.Timeline.Pattern == PatternSequential && r.Timeline.SwitchoverDays <= 7 {
		flags = append(flags, Flag{"quick_switchover",
			fmt.Sprintf("New account appeared %.1f days after the other went quiet", r.Timeline.SwitchoverDays)})
	}
	return flags
}

func greenFlags(r *Report) []Flag {
	flags := []Flag{}
	if r.Temporal.CoSessions > 0 {
		flags = append(flags, Flag{"played_together", fmt.Sprintf("Played together in %d rounds", r.Temporal.CoSessions)})
	}
	if r.Behavior.IsSufficient() && len(r.Behavior.CommonServers) > 0 && r.Behavior.PingSimilarity <= 0.10 {
		flags = append(flags, Flag{"different_ping", "Very different ping on common servers"})
	}
	if r.Behavior.IsSufficient() && r.Behavior.PlaytimeSimilarity <= 0.30 {
		flags = append(flags, Flag{"different_play_hours", "Play at different hours of the day"})
	}
	if r.Timeline.IsSufficient() && r.Timeline.OverlapDays >= 30 {
		flags = append(flags, Flag{"long_concurrent_activity",
			fmt.Sprintf("Both accounts active concurrently for %.0f days", r.Timeline.OverlapDays)})
	}
	return flags
}

// annotateConflicts marks the weaker side when both red and green flags are
// present. Ties count against the side the overall score disagrees with.
func annotateConflicts(r *Report) {
	if len(r.RedFlags) == 0 || len(r.GreenFlags) == 0 {
		return
	}

	redWeaker := len(r.RedFlags) < len(r.GreenFlags)
	if len(r.RedFlags) == len(r.GreenFlags) {
		redWeaker = r.OverallScore < 0.5
	}

	if redWeaker {
		r.RedFlags = append(r.RedFlags, Flag{conflictingSignals,
			fmt.Sprintf("Outweighed by %d contrary indicator(s)", len(r.GreenFlags))})
		return
	}
	r.GreenFlags = append(r.GreenFlags, Flag{conflictingSignals,
		fmt.Sprintf("Outweighed by %d contrary indicator(s)", len(r.RedFlags))})
}

// confidence grows with the amount of data behind the report
func confidence(r *Report) float64 {
	c := 0.5
	if r.Stats.IsSufficient() {
		c += 0.25
	}
	if r.Behavior.IsSufficient() {
		c += 0.15
	}
	if r.Network.SharedTeammates > 5 {
		c += 0.10
	}
	if c > 1 {
		c = 1
	}
	return c
}
