package kb

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/sinc/internal/ir"
)

// NegSamples is a table of tuples known to be false under the closed-world
// assumption, with an optional weight per tuple keyed by ir.RowKey.
type NegSamples struct {
	Table   *IntTable
	Weights map[string]float64
}

// Weighted reports whether weights are attached.
func (n *NegSamples) Weighted() bool { return n != nil && n.Weights != nil }

// WeightOf returns the weight of a negative row, 1 when unweighted.
func (n *NegSamples) WeightOf(row []int) float64 {
	if !n.Weighted() {
		return 1
	}
	if w, ok := n.Weights[ir.RowKey(row)]; ok {
		return w
	}
	return 0
}

// WeightSum sums the weights of rows.
func (n *NegSamples) WeightSum(rows [][]int) float64 {
	if !n.Weighted() {
		return float64(len(rows))
	}
	ws := make([]float64, len(rows))
	for i, row := range rows {
		ws[i] = n.WeightOf(row)
	}
	return floats.Sum(ws)
}

// NewRand returns the deterministic source used by every sampler.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// UniformSampling draws up to budget distinct tuples over [1,totalConstants]^arity
// that are not in pos. The budget is capped by the size of the negative space.
func UniformSampling(pos *IntTable, totalConstants, budget int, rng *rand.Rand) *IntTable {
	arity := pos.Arity()
	space := math.Pow(float64(totalConstants), float64(arity)) - float64(pos.Len())
	if float64(budget) > space {
		budget = int(space)
	}
	seen := make(map[string]struct{}, budget)
	samples := make([][]int, 0, budget)
	for attempts := 0; len(samples) < budget && attempts < 64*budget+64; attempts++ {
		row := make([]int, arity)
		for i := range row {
			row[i] = rng.IntN(totalConstants) + 1
		}
		if pos.HasRow(row) {
			continue
		}
		key := ir.RowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		samples = append(samples, row)
	}
	return NewIntTable(samples, arity)
}

// SampleWeights weighs each negative by the number of tuples in the gap
// of pos it falls into, divided by the negatives sharing that gap.
func SampleWeights(pos, neg *IntTable, totalConstants int) map[string]float64 {
	posRows := pos.Rows()
	negRows := neg.Rows()
	inserts := pos.InsertIndices(neg)
	weights := make(map[string]float64, len(negRows))
	for i := 0; i < len(inserts); {
		j := i + 1
		for j < len(inserts) && inserts[j] == inserts[i] {
			j++
		}
		w := recordsInGap(posRows, inserts[i], totalConstants, neg.Arity()) / float64(j-i)
		for k := i; k < j; k++ {
			weights[ir.RowKey(negRows[k])] = w
		}
		i = j
	}
	return weights
}

// recordsInGap counts the tuples strictly between rows[idx-1] and rows[idx],
// using the all-ones and all-max tuples as the outer bounds.
func recordsInGap(rows [][]int, idx, totalConstants, arity int) float64 {
	var start, end []int
	delta := 0.0
	switch {
	case len(rows) == 0:
		return math.Pow(float64(totalConstants), float64(arity))
	case idx == 0:
		end = rows[0]
		start = filled(arity, 1)
	case idx >= len(rows):
		start = rows[len(rows)-1]
		end = filled(arity, totalConstants)
	default:
		start, end = rows[idx-1], rows[idx]
		delta = 1
	}
	diff := float64(end[0] - start[0])
	for i := 1; i < arity; i++ {
		diff = diff*float64(totalConstants) + float64(end[i]-start[i])
	}
	return diff - delta
}

func filled(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
