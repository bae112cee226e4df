package alias

import (
	"context"
	"fmt"

	"squadgraph/backend/internal/sessions"
)

// StatAnalysis compares combat profiles
type StatAnalysis struct {
	Signal
	KDA                     float64 `json:"kd_a"`
	KDB                     float64 `json:"kd_b"`
	RoundsA                 int     `json:"rounds_a"`
	RoundsB                 int     `json:"rounds_b"`
	KDSimilarity            float64 `json:"kd_similarity"`
	KillRateSimilarity      float64 `json:"kill_rate_similarity"`
	ScorePerRoundSimilarity float64 `json:"score_per_round_similarity"`
	MapSimilarity           float64 `json:"map_similarity"`
	ServerSimilarity        float64 `json:"server_similarity"`
	CommonMaps              int     `json:"common_maps"`
	CommonServers           int     `json:"common_servers"`
}

const (
	statKDWeight       = 0.40
	statKillRateWeight = 0.25
	statScoreWeight    = 0.15
	statMapWeight      = 0.15
	statServerWeight   = 0.05

	statNeutral = 0.5
)

func kd(t *sessions.PlayerTotals) float64 {
	if t.Deaths == 0 {
		return float64(t.Kills)
	}
	return float64(t.Kills) / float64(t.Deaths)
}

func killRate(t *sessions.PlayerTotals) float64 {
	if t.PlayMinutes <= 0 {
		return 0
	}
	return float64(t.Kills) / t.PlayMinutes
}

func scorePerRound(t *sessions.PlayerTotals) float64 {
	if t.Rounds == 0 {
		return 0
	}
	return float64(t.Score) / float64(t.Rounds)
}

func (e *Engine) analyzeStats(ctx context.Context, a, b string) (StatAnalysis, error) {
	ta, err := e.sessions.Totals(ctx, a)
	if err != nil {
		return StatAnalysis{}, err
	}
	tb, err := e.sessions.Totals(ctx, b)
	if err != nil {
		return StatAnalysis{}, err
	}

	out := StatAnalysis{KDA: kd(ta), KDB: kd(tb), RoundsA: ta.Rounds, RoundsB: tb.Rounds}
	if ta.Rounds < e.cfg.MinStatRounds || tb.Rounds < e.cfg.MinStatRounds {
		out.Signal = insufficient(statNeutral, fmt.Sprintf(
			"Insufficient round history (%d and %d rounds, need %d)", ta.Rounds, tb.Rounds, e.cfg.MinStatRounds))
		return out, nil
	}

	mapsA, err := e.sessions.MapKD(ctx, a)
	if err != nil {
		return StatAnalysis{}, err
	}
	mapsB, err := e.sessions.MapKD(ctx, b)
	if err != nil {
		return StatAnalysis{}, err
	}
	serversA, err := e.sessions.ServerKD(ctx, a)
	if err != nil {
		return StatAnalysis{}, err
	}
	serversB, err := e.sessions.ServerKD(ctx, b)
	if err != nil {
		return StatAnalysis{}, err
	}

	out.KDSimilarity = RatioSimilarity(out.KDA, out.KDB)
	out.KillRateSimilarity = RatioSimilarity(killRate(ta), killRate(tb))
	out.ScorePerRoundSimilarity = RatioSimilarity(scorePerRound(ta), scorePerRound(tb))

	var ok bool
	if out.MapSimilarity, out.CommonMaps, ok = CosineOnCommon(mapsA, mapsB); !ok {
		out.MapSimilarity = statNeutral
	}
	if out.ServerSimilarity, out.CommonServers, ok = CosineOnCommon(serversA, serversB); !ok {
		out.ServerSimilarity = statNeutral
	}

	score := statKDWeight*out.KDSimilarity +
		statKillRateWeight*out.KillRateSimilarity +
		statScoreWeight*out.ScorePerRoundSimilarity +
		statMapWeight*out.MapSimilarity +
		statServerWeight*out.ServerSimilarity

	out.Signal = sufficient(score, fmt.Sprintf("K/D %.2f vs %.2f over %d common maps", out.KDA, out.KDB, out.CommonMaps))
	return out, nil
}
