package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// RecordAliasFeedback stores an operator verdict as an ALIAS_FEEDBACK edge
// between the pair, replacing any earlier verdict by the same reviewer
func (r *Repository) RecordAliasFeedback(ctx context.Context, fb AliasFeedback) error {
	if fb.RecordedAt.IsZero() {
		fb.RecordedAt = time.Now().UTC()
	}
	a, b := fb.PlayerA, fb.PlayerB
	if b < a {
		a, b = b, a
	}

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MERGE (a:Player {name: $a})
		MERGE (b:Player {name: $b})
		MERGE (a)-[f:ALIAS_FEEDBACK {reviewer: $reviewer}]->(b)
		SET f.verdict = $verdict,
		    f.note = $note,
		    f.score = $score,
		    f.recordedAt = datetime($recordedAt)
	`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return tx.Run(ctx, query, map[string]interface{}{
			"a":          a,
			"b":          b,
			"reviewer":   fb.Reviewer,
			"verdict":    fb.Verdict,
			"note":       fb.Note,
			"score":      fb.Score,
			"recordedAt": timeParam(fb.RecordedAt),
		})
	})
	if err != nil {
		return r.wrap("record alias feedback", err)
	}

	r.logger.Info("Alias feedback recorded",
		zap.String("player_a", a),
		zap.String("player_b", b),
		zap.String("verdict", fb.Verdict),
	)
	return nil
}

// AliasFeedbackFor returns every verdict recorded for the pair
func (r *Repository) AliasFeedbackFor(ctx context.Context, playerA, playerB string) ([]AliasFeedback, error) {
	query := `
		MATCH (a:Player {name: $a})-[f:ALIAS_FEEDBACK]-(b:Player {name: $b})
		RETURN f.verdict AS verdict, f.note AS note, f.reviewer AS reviewer,
		       f.score AS score, f.recordedAt AS recorded
		ORDER BY recorded DESC
	`

	records, err := r.collect(ctx, "query alias feedback", query, map[string]interface{}{
		"a": playerA,
		"b": playerB,
	})
	if err != nil {
		return nil, err
	}

	out := make([]AliasFeedback, 0, len(records))
	for _, record := range records {
		out = append(out, AliasFeedback{
			PlayerA:    playerA,
			PlayerB:    playerB,
			Verdict:    getStringFromRecord(record, "verdict"),
			Note:       getStringFromRecord(record, "note"),
			Reviewer:   getStringFromRecord(record, "reviewer"),
			Score:      getFloat64FromRecord(record, "score"),
			RecordedAt: getTimeFromRecord(record, "recorded"),
		})
	}
	return out, nil
}
