package alias

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Weights is the fusion configuration. It is a value type: every call gets
// its own copy and nothing in the package mutates it.
type Weights struct {
	Stat       float64 `yaml:"stat" json:"stat"`
	Behavioral float64 `yaml:"behavioral" json:"behavioral"`
	Network    float64 `yaml:"network" json:"network"`
	Temporal   float64 `yaml:"temporal" json:"temporal"`
	Timeline   float64 `yaml:"timeline" json:"timeline"`
}

// DefaultWeights returns the stock fusion weights
func DefaultWeights() Weights {
	return Weights{Stat: 0.30, Behavioral: 0.25, Network: 0.20, Temporal: 0.15, Timeline: 0.10}
}

func (w Weights) sum() float64 {
	return w.Stat + w.Behavioral + w.Network + w.Temporal + w.Timeline
}

// Normalized clamps negative weights to zero and rescales to sum to 1. An
// all-zero set falls back to the defaults.
func (w Weights) Normalized() Weights {
	w.Stat = math.Max(w.Stat, 0)
	w.Behavioral = math.Max(w.Behavioral, 0)
	w.Network = math.Max(w.Network, 0)
	w.Temporal = math.Max(w.Temporal, 0)
	w.Timeline = math.Max(w.Timeline, 0)

	total := w.sum()
	if total == 0 {
		return DefaultWeights()
	}
	if math.Abs(total-1) < 1e-9 {
		return w
	}
	return Weights{
		Stat:       w.Stat / total,
		Behavioral: w.Behavioral / total,
		Network:    w.Network / total,
		Temporal:   w.Temporal / total,
		Timeline:   w.Timeline / total,
	}
}

// Scores are the five sub-scores fed into fusion
type Scores struct {
	Stat       float64
	Behavioral float64
	Network    float64
	Temporal   float64
	Timeline   float64
}

// Fuse returns the weighted overall score in [0, 1]
func Fuse(s Scores, w Weights) float64 {
	w = w.Normalized()
	return clamp01(s.Stat*w.Stat +
		s.Behavioral*w.Behavioral +
		s.Network*w.Network +
		s.Temporal*w.Temporal +
		s.Timeline*w.Timeline)
}

// Level buckets the overall score
type Level string

const (
	LevelVeryLikely Level = "very_likely"
	LevelLikely     Level = "likely"
	LevelPotential  Level = "potential"
	LevelUnrelated  Level = "unrelated"
)

// LevelFor maps an overall score to a suspicion level
func LevelFor(score float64) Level {
	switch {
	case score >= 0.85:
		return LevelVeryLikely
	case score >= 0.70:
		return LevelLikely
	case score >= 0.50:
		return LevelPotential
	}
	return LevelUnrelated
}

// Config tunes the engine
type Config struct {
	Weights          Weights `yaml:"weights"`
	MinStatRounds    int     `yaml:"min_stat_rounds"`
	HourLookbackDays int     `yaml:"hour_lookback_days"`
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		Weights:          DefaultWeights(),
		MinStatRounds:    10,
		HourLookbackDays: 90,
	}
}

func (c Config) hourLookback() time.Duration {
	return time.Duration(c.HourLookbackDays) * 24 * time.Hour
}

// LoadConfig reads a YAML config file on top of the defaults. Missing keys
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read alias config: %w", err)
	}

	var file struct {
		Weights          *Weights `yaml:"weights"`
		MinStatRounds    int      `yaml:"min_stat_rounds"`
		HourLookbackDays int      `yaml:"hour_lookback_days"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse alias config: %w", err)
	}

	if file.Weights != nil {
		cfg.Weights = file.Weights.Normalized()
	}
	if file.MinStatRounds > 0 {
		cfg.MinStatRounds = file.MinStatRounds
	}
	if file.HourLookbackDays > 0 {
		cfg.HourLookbackDays = file.HourLookbackDays
	}
	return cfg, nil
}
