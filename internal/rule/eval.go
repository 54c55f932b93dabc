package rule

import (
	"fmt"
	"math"
)

// Default thresholds used by the miner.
const (
	// DefaultMinFactCoverage is the smallest coverage a rule may have
	// before it is pruned.
	DefaultMinFactCoverage = 0.05

	// UsefulRatioThreshold is the compression ratio above which a rule
	// saves space.
	UsefulRatioThreshold = 0.5
)

// Metric selects the score used to rank rules.
type Metric int

const (
	CompressionRatio Metric = iota
	CompressionCapacity
	InfoGain
)

// ParseMetric accepts a metric symbol or its long name.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "τ", "compression_ratio":
		return CompressionRatio, nil
	case "δ", "compression_capacity":
		return CompressionCapacity, nil
	case "h", "info_gain":
		return InfoGain, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Symbol returns the short name of the metric.
func (m Metric) Symbol() string {
	switch m {
	case CompressionRatio:
		return "τ"
	case CompressionCapacity:
		return "δ"
	case InfoGain:
		return "h"
	default:
		return "?"
	}
}

func (m Metric) String() string {
	switch m {
	case CompressionRatio:
		return "compression_ratio"
	case CompressionCapacity:
		return "compression_capacity"
	case InfoGain:
		return "info_gain"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// Eval is the evaluation of a rule: Pos entailed positives, All total
// entailments (positives included) and the rule length.
type Eval struct {
	Pos float64 `json:"pos"`
	Neg float64 `json:"neg"`
	All float64 `json:"all"`
	Len int     `json:"len"`
}

// NewEval derives the negative count from pos and all.
func NewEval(pos, all float64, length int) Eval {
	return Eval{Pos: pos, Neg: all - pos, All: all, Len: length}
}

// CompressionRatio is pos/(all+len), 0 when undefined.
func (e Eval) CompressionRatio() float64 {
	r := e.Pos / (e.All + float64(e.Len))
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// CompressionCapacity is pos-neg-len.
func (e Eval) CompressionCapacity() float64 {
	return e.Pos - e.Neg - float64(e.Len)
}

// InfoGain is pos*ln(1+ratio), -Inf when nothing is covered.
func (e Eval) InfoGain() float64 {
	ratio := e.CompressionRatio()
	if e.Pos == 0 || ratio == 0 {
		return math.Inf(-1)
	}
	return e.Pos * math.Log1p(ratio)
}

// Value returns the score under m.
func (e Eval) Value(m Metric) float64 {
	switch m {
	case CompressionCapacity:
		return e.CompressionCapacity()
	case InfoGain:
		return e.InfoGain()
	default:
		return e.CompressionRatio()
	}
}

// Useful reports whether adding the rule shrinks the knowledge base.
func (e Eval) Useful() bool { return e.CompressionCapacity() > 0 }

func (e Eval) String() string {
	return fmt.Sprintf("(+)%g; (-)%g; |%d|; δ=%g; τ=%.4f; h=%.4f",
		e.Pos, e.Neg, e.Len, e.CompressionCapacity(), e.CompressionRatio(), e.InfoGain())
}
