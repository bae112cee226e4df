package relationships

import (
	"context"
	"fmt"
	"math"
	"sort"

	"squadgraph/backend/internal/constants"
	"squadgraph/backend/internal/graph"
	"squadgraph/backend/pkg/errors"
)

// Squad score weights
const (
	squadServerWeight   = 0.40
	squadTemporalWeight = 0.30
	squadMutualWeight   = 0.30
	// squadSaturation is the count at which a signal maxes out
	squadSaturation = 5.0
)

// SquadRecommendation is a scored teammate suggestion
type SquadRecommendation struct {
	Player            string   `json:"player"`
	Score             float64  `json:"score"`
	CommonServers     int      `json:"common_servers"`
	MutualConnections int      `json:"mutual_connections"`
	TemporalOverlap   float64  `json:"temporal_overlap"`
	Reasons           []string `json:"reasons"`
}

// SquadRecommendations ranks non-teammates by shared servers, overlapping
// activity and mutual teammates
func (s *Service) SquadRecommendations(ctx context.Context, player string, limit int) ([]SquadRecommendation, error) {
	limit = clamp(limit, 1, constants.MaxTeammateLimit, constants.DefaultSuggestionLimit)

	// over-fetch so re-ranking by score has room
	candidates, err := s.graph.SquadCandidates(ctx, player, limit*3)
	if err != nil {
		if errors.IsNotFound(err) {
			return []SquadRecommendation{}, nil
		}
		return nil, err
	}

	out := make([]SquadRecommendation, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, scoreCandidate(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Player < out[j].Player
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func scoreCandidate(c graph.SquadCandidate) SquadRecommendation {
	temporal := 0.0
	if c.CommonServers > 0 {
		temporal = float64(c.OverlapServers) / float64(c.CommonServers)
	}

	score := squadServerWeight*math.Min(float64(c.CommonServers)/squadSaturation, 1) +
		squadTemporalWeight*temporal +
		squadMutualWeight*math.Min(float64(c.MutualConnections)/squadSaturation, 1)

	reasons := []string{}
	if c.CommonServers > 0 {
		reasons = append(reasons, fmt.Sprintf("Plays on %d common server%s", c.CommonServers, plural(c.CommonServers)))
	}
	if temporal >= 0.5 {
		reasons = append(reasons, "Active at similar times")
	}
	if c.MutualConnections > 0 {
		reasons = append(reasons, fmt.Sprintf("%d mutual connection%s", c.MutualConnections, plural(c.MutualConnections)))
	}

	return SquadRecommendation{
		Player:            c.Name,
		Score:             math.Round(score*1000) / 1000,
		CommonServers:     c.CommonServers,
		MutualConnections: c.MutualConnections,
		TemporalOverlap:   temporal,
		Reasons:           reasons,
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
