package rule

import (
	"slices"

	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
)

// Evidence lists the groundings proving the facts a rule entails. Each
// grounding holds one row per predicate of Structure, head first.
type Evidence struct {
	Structure  ir.Structure
	Groundings [][][]int
}

// EvidenceAndMarkEntailment collects one grounding for every head row of
// E+ not yet entailed, and marks those rows as entailed. Calling it again
// yields no new groundings.
func (r *CachedRule) EvidenceAndMarkEntailment() Evidence {
	ev := Evidence{Structure: r.structure.Clone()}
	for _, e := range r.pos.Entries() {
		body := make([][]int, len(e)-1)
		for i, b := range e[1:] {
			body[i] = b.Rows()[0]
		}
		for _, row := range e[0].Rows() {
			if !r.head.EntailIfNot(row) {
				continue
			}
			g := make([][]int, 0, len(e))
			g = append(g, row)
			g = append(g, body...)
			ev.Groundings = append(ev.Groundings, g)
		}
	}
	return ev
}

type headGroup struct {
	vid  int // -1 for an empty slot
	cols []int
}

// Counterexamples returns, in lexicographic order, the head tuples the
// rule entails that are not in the head relation.
func (r *CachedRule) Counterexamples() [][]int {
	head := r.structure.Head()
	template := make([]int, len(head.Args))
	var groups []*headGroup
	byVid := make(map[int]*headGroup)
	for i, a := range head.Args {
		switch {
		case a.IsConst():
			template[i] = a.ID()
		case a.IsVar():
			g, ok := byVid[a.ID()]
			if !ok {
				g = &headGroup{vid: a.ID()}
				byVid[a.ID()] = g
				groups = append(groups, g)
			}
			g.cols = append(g.cols, i)
		default:
			groups = append(groups, &headGroup{vid: -1, cols: []int{i}})
		}
	}

	templates := [][]int{template}
	var free []*headGroup
	if len(r.all) == 0 {
		free = groups
	} else {
		perFrag := make([][]*headGroup, len(r.all))
		for _, g := range groups {
			fi := -1
			if g.vid >= 0 {
				fi = r.fragmentOf(g.vid)
			}
			if fi < 0 {
				free = append(free, g)
			} else {
				perFrag[fi] = append(perFrag[fi], g)
			}
		}
		for fi, f := range r.all {
			vids := make([]int, len(perFrag[fi]))
			for i, g := range perFrag[fi] {
				vids[i] = g.vid
			}
			bindings := f.EnumerateCombinations(vids)
			next := make([][]int, 0, len(templates)*len(bindings))
			for _, t := range templates {
				for _, b := range bindings {
					nt := slices.Clone(t)
					for gi, g := range perFrag[fi] {
						for _, col := range g.cols {
							nt[col] = b[gi]
						}
					}
					next = append(next, nt)
				}
			}
			templates = next
		}
	}

	seen := make(map[string]struct{})
	var out [][]int
	emit := func(row []int) {
		if r.head.HasRow(row) {
			return
		}
		key := ir.RowKey(row)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, slices.Clone(row))
	}
	tc := r.kb.TotalConstants()
	for _, t := range templates {
		expand(t, free, tc, emit)
	}
	slices.SortFunc(out, slices.Compare)
	return out
}

// expand assigns every constant to each free group in turn.
func expand(t []int, free []*headGroup, tc int, emit func([]int)) {
	if len(free) == 0 {
		emit(t)
		return
	}
	for v := 1; v <= tc; v++ {
		for _, col := range free[0].cols {
			t[col] = v
		}
		expand(t, free[1:], tc, emit)
	}
}

// Promising holds, per relation and column, the constants frequent enough
// to be tried by AssignConstant.
type Promising [][][]int

// NewPromising collects the promising constants of every relation.
func NewPromising(k *kb.KB, minCoverage float64) Promising {
	p := make(Promising, len(k.Relations()))
	for i, rel := range k.Relations() {
		p[i] = rel.PromisingConstants(minCoverage)
	}
	return p
}

// Constants returns the promising constants of (functor, col).
func (p Promising) Constants(functor, col int) []int {
	if functor < 0 || functor >= len(p) || col < 0 || col >= len(p[functor]) {
		return nil
	}
	return p[functor][col]
}

// Candidates lists every operation applicable to the rule: each variable
// in each empty slot or a new predicate, each promising constant in each
// empty slot, and each pair of empty slots, existing or new.
func (r *CachedRule) Candidates(prom Promising) []Operation {
	var empty []ir.ArgLocation
	for pi, p := range r.structure {
		for ai, a := range p.Args {
			if a.IsEmpty() {
				empty = append(empty, ir.ArgLocation{PredIdx: pi, ArgIdx: ai})
			}
		}
	}
	rels := r.kb.Relations()
	var ops []Operation
	for vid := range r.varLocs {
		for _, loc := range empty {
			ops = append(ops, BindExisting{PredIdx: loc.PredIdx, ArgIdx: loc.ArgIdx, VarID: vid})
		}
		for _, rel := range rels {
			for col := range rel.Arity() {
				ops = append(ops, AppendBindExisting{Functor: rel.ID, Arity: rel.Arity(), ArgIdx: col, VarID: vid})
			}
		}
	}
	for i, loc := range empty {
		functor := r.structure[loc.PredIdx].Functor
		for _, c := range prom.Constants(functor, loc.ArgIdx) {
			ops = append(ops, AssignConstant{PredIdx: loc.PredIdx, ArgIdx: loc.ArgIdx, Constant: c})
		}
		for _, loc2 := range empty[i+1:] {
			ops = append(ops, BindNewPair{
				PredIdx1: loc.PredIdx, ArgIdx1: loc.ArgIdx,
				PredIdx2: loc2.PredIdx, ArgIdx2: loc2.ArgIdx,
			})
		}
		for _, rel := range rels {
			for col := range rel.Arity() {
				ops = append(ops, AppendBindNewPair{
					Functor: rel.ID, Arity: rel.Arity(), ArgIdx1: col,
					PredIdx2: loc.PredIdx, ArgIdx2: loc.ArgIdx,
				})
			}
		}
	}
	return ops
}
