package engine

import (
	"github.com/roach88/sinc/internal/kb"
	"github.com/roach88/sinc/internal/rule"
)

// NegativeMode selects how negative entailments are counted.
type NegativeMode string

const (
	// NegativesNone counts every entailment exactly.
	NegativesNone NegativeMode = "none"

	// NegativesUniform samples negatives uniformly once per relation.
	NegativesUniform NegativeMode = "uniform"

	// NegativesAdversarial samples negatives from each beam's own
	// groundings.
	NegativesAdversarial NegativeMode = "adversarial"
)

// Config holds the mining parameters.
type Config struct {
	Beamwidth            int          `json:"beamwidth"`
	Metric               string       `json:"metric"`
	MinFactCoverage      float64      `json:"min_fact_coverage"`
	MinConstantCoverage  float64      `json:"min_constant_coverage"`
	StopCompressionRatio float64      `json:"stop_compression_ratio"`
	ObservationRatio     float64      `json:"observation_ratio"`
	Parallelism          int          `json:"parallelism"`
	Negatives            NegativeMode `json:"negatives"`
	BudgetFactor         float64      `json:"budget_factor"`
	Weighted             bool         `json:"weighted"`
	Seed                 uint64       `json:"seed"`
	MaxRules             int          `json:"max_rules"`
	ProbeCacheSize       int          `json:"probe_cache_size"`
}

// DefaultProbeCacheSize bounds the number of memoized probe results.
const DefaultProbeCacheSize = 4096

// DefaultConfig returns the default mining parameters.
func DefaultConfig() Config {
	return Config{
		Beamwidth:            5,
		Metric:               rule.CompressionRatio.Symbol(),
		MinFactCoverage:      rule.DefaultMinFactCoverage,
		MinConstantCoverage:  kb.DefaultMinConstantCoverage,
		StopCompressionRatio: 1.0,
		ObservationRatio:     2.0,
		Parallelism:          1,
		Negatives:            NegativesNone,
		BudgetFactor:         2.0,
		ProbeCacheSize:       DefaultProbeCacheSize,
	}
}

// Validate checks every field and returns the first problem as an
// INVALID_CONFIG MinerError.
func (c Config) Validate() error {
	switch {
	case c.Beamwidth < 1:
		return NewInvalidConfigError("beamwidth", "must be at least 1")
	case c.MinFactCoverage < 0 || c.MinFactCoverage >= 1:
		return NewInvalidConfigError("min_fact_coverage", "must be in [0,1)")
	case c.MinConstantCoverage <= 0 || c.MinConstantCoverage > 1:
		return NewInvalidConfigError("min_constant_coverage", "must be in (0,1]")
	case c.StopCompressionRatio <= 0 || c.StopCompressionRatio > 1:
		return NewInvalidConfigError("stop_compression_ratio", "must be in (0,1]")
	case c.ObservationRatio <= 0:
		return NewInvalidConfigError("observation_ratio", "must be positive")
	case c.Parallelism < 1:
		return NewInvalidConfigError("parallelism", "must be at least 1")
	case c.MaxRules < 0:
		return NewInvalidConfigError("max_rules", "must not be negative")
	case c.ProbeCacheSize < 1:
		return NewInvalidConfigError("probe_cache_size", "must be at least 1")
	}
	if _, err := rule.ParseMetric(c.Metric); err != nil {
		return NewInvalidConfigError("metric", err.Error())
	}
	switch c.Negatives {
	case NegativesNone:
	case NegativesUniform, NegativesAdversarial:
		if c.BudgetFactor <= 0 {
			return NewInvalidConfigError("budget_factor", "must be positive when sampling negatives")
		}
	default:
		return NewInvalidConfigError("negatives", "must be none, uniform or adversarial")
	}
	return nil
}

// observations returns how many probed candidates one round specializes.
func (c Config) observations() int {
	return max(1, int(float64(c.Beamwidth)*c.ObservationRatio+0.5))
}
