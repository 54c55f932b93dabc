package rule

import (
	"hash/fnv"
	"math"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/sinc/internal/cache"
	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
)

// Strategy decides how a rule counts its negative entailments.
type Strategy interface {
	// Name identifies the strategy in logs and stored runs.
	Name() string

	bind(r *CachedRule) Strategy
	clone() Strategy
	// prepare runs before indices are built and reports whether the
	// evaluation must be recomputed.
	prepare(r *CachedRule) bool
	buildIndices()
	apply(r *CachedRule, op Operation, newVid int)
	evaluate(r *CachedRule) Eval
	release()
}

type exact struct{}

// Exact counts every entailment of the rule over the constant domain.
func Exact() Strategy { return exact{} }

func (exact) Name() string { return "exact" }
func (e exact) bind(*CachedRule) Strategy { return e }
func (e exact) clone() Strategy { return e }
func (exact) prepare(*CachedRule) bool { return false }
func (exact) buildIndices() {}
func (exact) apply(*CachedRule, Operation, int) {}
func (exact) evaluate(r *CachedRule) Eval { return r.exactEval() }
func (exact) release() {}

// decimalCtx is wide enough for constants^arity of any realistic KB.
var decimalCtx = apd.BaseContext.WithPrecision(64)

// exactEval counts the head tuples entailed by the body: free head
// variables range over every constant, the others over the joint bindings
// of the fragment holding them. Already entailed facts are excluded.
func (r *CachedRule) exactEval() Eval {
	vids, free := r.headVars()
	perFrag := make([][]int, len(r.all))
	for _, vid := range vids {
		if fi := r.fragmentOf(vid); fi >= 0 {
			perFrag[fi] = append(perFrag[fi], vid)
		} else {
			free++
		}
	}
	total := new(apd.Decimal)
	_, err := decimalCtx.Pow(total, apd.New(int64(r.kb.TotalConstants()), 0), apd.New(int64(free), 0))
	for i, f := range r.all {
		if err != nil {
			break
		}
		_, err = decimalCtx.Mul(total, total, apd.New(int64(f.CountCombinations(perFrag[i])), 0))
	}
	if err == nil {
		_, err = decimalCtx.Sub(total, total, apd.New(int64(r.ent.CountTableSize(0)), 0))
	}
	all, ferr := total.Float64()
	if err != nil || ferr != nil {
		all = math.Inf(1)
	}
	return NewEval(float64(r.pos.CountTableSize(0)), all, r.length)
}

// sampled counts negatives against a fixed table of negative samples.
type sampled struct {
	samples *kb.NegSamples
	neg     *cache.Fragment
}

// Sampled counts the negatives of samples entailed by the rule. The
// samples belong to the head relation of the rule using the strategy.
func Sampled(samples *kb.NegSamples) Strategy {
	return &sampled{samples: samples}
}

func (s *sampled) Name() string { return "sampled" }

func (s *sampled) bind(r *CachedRule) Strategy {
	return &sampled{samples: s.samples, neg: cache.NewFragment(s.samples.Table, r.head.ID)}
}

func (s *sampled) clone() Strategy {
	return &sampled{samples: s.samples, neg: s.neg.Clone()}
}

func (s *sampled) prepare(*CachedRule) bool { return false }

func (s *sampled) buildIndices() { s.neg.BuildIndices() }

func (s *sampled) apply(r *CachedRule, op Operation, newVid int) {
	applyAnchored(r.kb, s.neg, op, newVid)
}

func (s *sampled) evaluate(r *CachedRule) Eval {
	pos := float64(r.pos.CountTableSize(0))
	neg := s.samples.WeightSum(distinctRows(s.neg, 0))
	return NewEval(pos, pos+neg, r.length)
}

func (s *sampled) release() { s.neg = nil }

// adversarial draws fresh negatives from the body groundings every time
// the rule becomes a beam.
type adversarial struct {
	sampled
	budgetFactor float64
	weighted     bool
	seed         uint64
}

// Adversarial samples up to budgetFactor times the head relation's size
// of tuples entailed by the rule but absent from the KB. The draw is
// deterministic for a given seed and rule.
func Adversarial(budgetFactor float64, weighted bool, seed uint64) Strategy {
	return &adversarial{budgetFactor: budgetFactor, weighted: weighted, seed: seed}
}

func (a *adversarial) Name() string { return "adversarial" }

func (a *adversarial) bind(r *CachedRule) Strategy {
	arity := r.head.Arity()
	return &adversarial{
		sampled: sampled{
			samples: &kb.NegSamples{Table: kb.NewIntTable(nil, arity)},
			neg:     cache.EmptyFragment(r.head.ID, arity),
		},
		budgetFactor: a.budgetFactor,
		weighted:     a.weighted,
		seed:         a.seed,
	}
}

func (a *adversarial) clone() Strategy {
	c := *a
	c.neg = a.neg.Clone()
	return &c
}

// ruleSeed mixes the configured seed with the rule text so every rule
// draws its own reproducible sample.
func (a *adversarial) ruleSeed(r *CachedRule) uint64 {
	h := fnv.New64a()
	h.Write([]byte(r.structure.String()))
	return a.seed ^ h.Sum64()
}

type sampleSource int

const (
	fromRandom sampleSource = iota
	fromConstant
	fromHeadVar
	fromBody
)

type headSource struct {
	kind  sampleSource
	value int // constant, or head-only variable slot
	frag  int
	tab   int
	col   int
}

func (a *adversarial) prepare(r *CachedRule) bool {
	head := r.structure.Head()
	arity := len(head.Args)
	tc := r.kb.TotalConstants()
	rng := kb.NewRand(a.ruleSeed(r))
	budget := int(math.Ceil(float64(r.head.Len()) * a.budgetFactor))

	headOnly := make(map[int]int)
	sources := make([]headSource, arity)
	for i, arg := range head.Args {
		switch {
		case arg.IsConst():
			sources[i] = headSource{kind: fromConstant, value: arg.ID()}
		case arg.IsVar():
			if loc, ok := r.bodyLocation(arg.ID()); ok {
				ti := r.tabs[loc.PredIdx]
				sources[i] = headSource{kind: fromBody, frag: ti.frag, tab: ti.tab, col: loc.ArgIdx}
				continue
			}
			slot, ok := headOnly[arg.ID()]
			if !ok {
				slot = len(headOnly)
				headOnly[arg.ID()] = slot
			}
			sources[i] = headSource{kind: fromHeadVar, value: slot}
		}
	}

	var rows [][]int
	feasible := true
	for _, f := range r.all {
		if f.IsEmpty() {
			feasible = false
		}
	}
	if feasible && tc > 0 {
		seen := make(map[string]struct{})
		values := make([]int, len(headOnly))
		entries := make([]cache.Entry, len(r.all))
		picked := make(map[[2]int][]int)
		for range budget {
			for i := range values {
				values[i] = rng.IntN(tc) + 1
			}
			for fi, f := range r.all {
				entries[fi] = f.Entries()[rng.IntN(f.Len())]
			}
			clear(picked)
			row := make([]int, arity)
			for i, s := range sources {
				switch s.kind {
				case fromConstant:
					row[i] = s.value
				case fromHeadVar:
					row[i] = values[s.value]
				case fromBody:
					key := [2]int{s.frag, s.tab}
					brow, ok := picked[key]
					if !ok {
						block := entries[s.frag][s.tab].Rows()
						brow = block[rng.IntN(len(block))]
						picked[key] = brow
					}
					row[i] = brow[s.col]
				default:
					row[i] = rng.IntN(tc) + 1
				}
			}
			if r.head.HasRow(row) {
				continue
			}
			key := ir.RowKey(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			rows = append(rows, row)
		}
	}

	table := kb.NewIntTable(rows, arity)
	a.samples = &kb.NegSamples{Table: table}
	if a.weighted && table.Len() > 0 {
		a.samples.Weights = kb.SampleWeights(r.head.IntTable, table, tc)
	}
	tables := make([]*kb.IntTable, len(r.structure))
	tables[0] = table
	for i, p := range r.structure[1:] {
		tables[i+1] = r.kb.Relation(p.Functor).IntTable
	}
	a.neg = cache.FragmentFromStructure(r.structure, tables)
	return true
}
