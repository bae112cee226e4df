package alias

import (
	"context"
	"fmt"
	"math"

	"squadgraph/backend/pkg/errors"
)

// NetworkAnalysis compares who the two players team up with
type NetworkAnalysis struct {
	Signal
	TeammatesA      int     `json:"teammates_a"`
	TeammatesB      int     `json:"teammates_b"`
	SharedTeammates int     `json:"shared_teammates"`
	TeammateJaccard float64 `json:"teammate_jaccard"`
	SizeRatio       float64 `json:"size_ratio"`
	DirectEdge      bool    `json:"direct_edge"`
	DirectSessions  int64   `json:"direct_sessions"`
}

const (
	networkJaccardWeight = 0.7
	networkSizeWeight    = 0.3
	// directEdgeDiscount applies when the pair has played together
	directEdgeDiscount = 0.9

	networkNeutral = 0.5
)

func (e *Engine) analyzeNetwork(ctx context.Context, a, b string) (NetworkAnalysis, error) {
	ta, err := e.graph.TeammateNames(ctx, a)
	if err != nil && !errors.IsNotFound(err) {
		return NetworkAnalysis{}, err
	}
	tb, err := e.graph.TeammateNames(ctx, b)
	if err != nil && !errors.IsNotFound(err) {
		return NetworkAnalysis{}, err
	}

	out := NetworkAnalysis{}
	rel, err := e.graph.Relationship(ctx, a, b)
	switch {
	case err == nil && rel != nil:
		out.DirectEdge = true
		out.DirectSessions = rel.SessionCount
	case err != nil && !errors.IsNotFound(err):
		return NetworkAnalysis{}, err
	}

	ta, tb = without(ta, b), without(tb, a)
	out.TeammatesA, out.TeammatesB = len(ta), len(tb)
	if len(ta) == 0 || len(tb) == 0 {
		out.Signal = insufficient(networkNeutral, "No teammate history for one of the players")
		return out, nil
	}

	out.TeammateJaccard, out.SharedTeammates = Jaccard(ta, tb)
	out.SizeRatio = math.Min(float64(len(ta)), float64(len(tb))) / math.Max(float64(len(ta)), float64(len(tb)))

	score := networkJaccardWeight*out.TeammateJaccard + networkSizeWeight*out.SizeRatio
	if out.DirectEdge {
		score *= directEdgeDiscount
	}
	out.Signal = sufficient(score, fmt.Sprintf("%d shared teammates (Jaccard %.2f)", out.SharedTeammates, out.TeammateJaccard))
	return out, nil
}

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}
