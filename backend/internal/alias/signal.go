// Package alias scores how likely two player names belong to the same person.
// Five independent analyzers each yield a bounded Signal; a weighted fusion
// turns them into a suspicion level with supporting red and green flags. The
// output is probabilistic and never merges identities.
package alias

import (
	"encoding/json"
	"fmt"
)

// Sufficiency tags how much an analyzer's score can be trusted
type Sufficiency int

const (
	// Sufficient means the score was computed from enough data
	Sufficient Sufficiency = iota
	// Insufficient means the analyzer fell back to its neutral score
	Insufficient
	// Failed means the analyzer errored and fell back to its neutral score
	Failed
)

func (s Sufficiency) String() string {
	switch s {
	case Sufficient:
		return "sufficient"
	case Insufficient:
		return "insufficient"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// MarshalJSON renders the tag by name
func (s Sufficiency) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the names written by MarshalJSON
func (s *Sufficiency) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "sufficient":
		*s = Sufficient
	case "insufficient":
		*s = Insufficient
	case "failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown sufficiency %q", name)
	}
	return nil
}

// Signal is one analyzer's verdict
type Signal struct {
	Score       float64     `json:"score"`
	Sufficiency Sufficiency `json:"sufficiency"`
	Explanation string      `json:"explanation,omitempty"`
}

// IsSufficient reports whether the score came from real data
func (s Signal) IsSufficient() bool {
	return s.Sufficiency == Sufficient
}

func sufficient(score float64, explanation string) Signal {
	return Signal{Score: clamp01(score), Sufficiency: Sufficient, Explanation: explanation}
}

func insufficient(neutral float64, explanation string) Signal {
	return Signal{Score: neutral, Sufficiency: Insufficient, Explanation: explanation}
}

func failed(neutral float64, err error) Signal {
	return Signal{Score: neutral, Sufficiency: Failed, Explanation: "analysis failed: " + err.Error()}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
