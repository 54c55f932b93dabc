package rule

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/roach88/sinc/internal/cache"
	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
)

// ErrUnknownRelation is returned when the head functor is not in the KB.
var ErrUnknownRelation = errors.New("unknown relation")

// tabInfo locates a body predicate in the E cache.
type tabInfo struct {
	frag int
	tab  int
}

// CachedRule is a Horn rule together with its evaluation caches.
//
// A CachedRule is not safe for concurrent mutation. Specialize never
// mutates the receiver, so one rule may be specialized from several
// goroutines once UpdateCacheIndices has returned.
type CachedRule struct {
	kb              *kb.KB
	head            *kb.Relation
	shared          *Shared
	minFactCoverage float64

	structure ir.Structure
	varLocs   [][]ir.ArgLocation
	length    int
	fp        *Fingerprint
	eval      Eval

	pos      *cache.Fragment
	ent      *cache.Fragment
	all      []*cache.Fragment
	tabs     []*tabInfo // indexed by predicate; tabs[0] is unused
	strategy Strategy
}

// Option configures a new rule.
type Option func(*CachedRule)

// WithMinFactCoverage sets the coverage at or below which specializations
// are pruned.
func WithMinFactCoverage(c float64) Option {
	return func(r *CachedRule) {
		r.minFactCoverage = c
	}
}

// WithStrategy selects how negative entailments are counted.
// Default: Exact().
func WithStrategy(s Strategy) Option {
	return func(r *CachedRule) {
		r.strategy = s
	}
}

// New returns the most general rule for head: the head predicate with
// every slot empty and no body.
func New(k *kb.KB, head int, shared *Shared, opts ...Option) (*CachedRule, error) {
	if head < 0 || head >= len(k.Relations()) {
		return nil, fmt.Errorf("new rule for relation %d: %w", head, ErrUnknownRelation)
	}
	rel := k.Relation(head)
	r := &CachedRule{
		kb:              k,
		head:            rel,
		shared:          shared,
		minFactCoverage: DefaultMinFactCoverage,
		structure:       ir.Structure{ir.NewPredicate(head, rel.Arity())},
		tabs:            []*tabInfo{nil},
		strategy:        Exact(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.fp = NewFingerprint(r.structure)
	shared.Observe(r.fp)

	entailed, nonEntailed := rel.SplitByEntailment()
	switch {
	case len(entailed) == 0:
		r.pos = cache.NewFragment(rel.IntTable, head)
		r.ent = cache.EmptyFragment(head, rel.Arity())
	case len(nonEntailed) == 0:
		r.pos = cache.EmptyFragment(head, rel.Arity())
		r.ent = cache.EmptyFragment(head, rel.Arity())
	default:
		r.pos = cache.NewFragment(kb.NewIntTable(nonEntailed, rel.Arity()), head)
		r.ent = cache.NewFragment(kb.NewIntTable(entailed, rel.Arity()), head)
	}

	r.strategy = r.strategy.bind(r)
	r.strategy.prepare(r)
	r.eval = r.strategy.evaluate(r)
	return r, nil
}

// Clone returns a copy that shares cache entries but no mutable state.
func (r *CachedRule) Clone() *CachedRule {
	c := *r
	c.structure = r.structure.Clone()
	c.varLocs = make([][]ir.ArgLocation, len(r.varLocs))
	for i, locs := range r.varLocs {
		c.varLocs[i] = slices.Clone(locs)
	}
	c.pos = r.pos.Clone()
	c.ent = r.ent.Clone()
	c.all = make([]*cache.Fragment, len(r.all))
	for i, f := range r.all {
		c.all[i] = f.Clone()
	}
	c.tabs = make([]*tabInfo, len(r.tabs))
	for i, t := range r.tabs {
		if t != nil {
			cp := *t
			c.tabs[i] = &cp
		}
	}
	c.strategy = r.strategy.clone()
	return &c
}

// Structure returns the rule. Callers must not modify it.
func (r *CachedRule) Structure() ir.Structure { return r.structure }

// Head returns the head relation.
func (r *CachedRule) Head() *kb.Relation { return r.head }

// Fingerprint returns the rule's fingerprint.
func (r *CachedRule) Fingerprint() *Fingerprint { return r.fp }

// Length returns the number of operations applied to the start rule.
func (r *CachedRule) Length() int { return r.length }

// UsedVars returns the number of limited variables.
func (r *CachedRule) UsedVars() int { return len(r.varLocs) }

// Eval returns the current evaluation.
func (r *CachedRule) Eval() Eval { return r.eval }

// String renders the rule with the KB's names.
func (r *CachedRule) String() string { return r.structure.Format(r.kb) }

// Coverage is the fraction of head rows entailed by the rule and not
// entailed before.
func (r *CachedRule) Coverage() float64 {
	if r.head.Len() == 0 {
		return 0
	}
	return float64(r.pos.CountTableSize(0)) / float64(r.head.Len())
}

// UpdateCacheIndices prepares the caches for further specialization.
// Sampling strategies draw their negatives here.
func (r *CachedRule) UpdateCacheIndices() {
	if r.strategy.prepare(r) {
		r.eval = r.strategy.evaluate(r)
	}
	r.pos.BuildIndices()
	r.ent.BuildIndices()
	for _, f := range r.all {
		f.BuildIndices()
	}
	r.strategy.buildIndices()
}

// ComputeExactEval replaces a sampled evaluation with the exact one.
func (r *CachedRule) ComputeExactEval() Eval {
	r.eval = r.exactEval()
	return r.eval
}

// Release drops every cache. The rule can still be printed.
func (r *CachedRule) Release() {
	r.pos = nil
	r.ent = nil
	r.all = nil
	r.strategy.release()
}

// Specialize applies op to a copy of the rule. The copy is returned only
// when the status is Normal. The new fingerprint and any tabu entry are
// recorded in the shared state.
func (r *CachedRule) Specialize(op Operation) (*CachedRule, UpdateStatus) {
	c, st := r.specialize(op, true, nil)
	if st != Normal {
		return nil, st
	}
	return c, Normal
}

// ProbeResult is the outcome of a probe.
type ProbeResult struct {
	Eval   Eval
	Status UpdateStatus
}

// ProbeCache memoizes probe results by fingerprint key.
type ProbeCache interface {
	Get(key string) (ProbeResult, bool)
	Add(key string, value ProbeResult) bool
}

// Probe evaluates op like Specialize without claiming the resulting
// fingerprint, so a later Specialize with the same op still succeeds.
// Rules found to cover too little are added to the tabu set. memo may be
// nil.
func (r *CachedRule) Probe(op Operation, memo ProbeCache) ProbeResult {
	c, st := r.specialize(op, false, memo)
	if st != Normal {
		return ProbeResult{Status: st}
	}
	return ProbeResult{Eval: c.eval, Status: Normal}
}

func (r *CachedRule) specialize(op Operation, record bool, memo ProbeCache) (*CachedRule, UpdateStatus) {
	if !r.applicable(op) {
		return nil, Invalid
	}
	c := r.Clone()
	newVid := c.updateStructure(op)
	c.fp = NewFingerprint(c.structure)
	if record {
		if r.shared.Observe(c.fp) {
			return nil, Duplicated
		}
	} else if r.shared.Seen(c.fp) {
		return nil, Duplicated
	}
	if memo != nil {
		if res, ok := memo.Get(c.fp.Key()); ok {
			if res.Status != Normal {
				return nil, res.Status
			}
			c.eval = res.Eval
			return c, Normal
		}
	}
	st := c.run(op, newVid)
	if memo != nil {
		res := ProbeResult{Status: st}
		if st == Normal {
			res.Eval = c.eval
		}
		memo.Add(c.fp.Key(), res)
	}
	if st != Normal {
		return nil, st
	}
	return c, Normal
}

// run applies op to the caches of a rule whose structure already holds it.
func (r *CachedRule) run(op Operation, newVid int) UpdateStatus {
	if r.isInvalid() {
		return Invalid
	}
	if r.shared.Tabu(r.structure, r.fp) {
		return TabuPruned
	}
	applyAnchored(r.kb, r.pos, op, newVid)
	if r.minFactCoverage >= r.Coverage() {
		r.shared.AddTabu(r.structure, r.fp)
		return InsufficientCoverage
	}
	applyAnchored(r.kb, r.ent, op, newVid)
	r.updateBody(op, newVid)
	r.strategy.apply(r, op, newVid)
	r.eval = r.strategy.evaluate(r)
	return Normal
}

func (r *CachedRule) emptySlot(pred, arg int) bool {
	if pred < 0 || pred >= len(r.structure) {
		return false
	}
	args := r.structure[pred].Args
	return arg >= 0 && arg < len(args) && args[arg].IsEmpty()
}

func (r *CachedRule) knownRelation(functor, arity int) bool {
	return functor >= 0 && functor < len(r.kb.Relations()) && r.kb.Relation(functor).Arity() == arity
}

func (r *CachedRule) knownVar(vid int) bool { return vid >= 0 && vid < len(r.varLocs) }

// applicable reports whether op can be applied to the current structure.
func (r *CachedRule) applicable(op Operation) bool {
	switch op := op.(type) {
	case BindExisting:
		return r.emptySlot(op.PredIdx, op.ArgIdx) && r.knownVar(op.VarID)
	case AppendBindExisting:
		return r.knownRelation(op.Functor, op.Arity) && op.ArgIdx >= 0 && op.ArgIdx < op.Arity && r.knownVar(op.VarID)
	case BindNewPair:
		return r.emptySlot(op.PredIdx1, op.ArgIdx1) && r.emptySlot(op.PredIdx2, op.ArgIdx2) &&
			(op.PredIdx1 != op.PredIdx2 || op.ArgIdx1 != op.ArgIdx2)
	case AppendBindNewPair:
		return r.knownRelation(op.Functor, op.Arity) && op.ArgIdx1 >= 0 && op.ArgIdx1 < op.Arity &&
			r.emptySlot(op.PredIdx2, op.ArgIdx2)
	case AssignConstant:
		return r.emptySlot(op.PredIdx, op.ArgIdx) && op.Constant >= 1 && op.Constant <= r.kb.TotalConstants()
	}
	return false
}

// updateStructure writes op into the structure and returns the id of the
// variable it creates, or -1.
func (r *CachedRule) updateStructure(op Operation) int {
	newVid := -1
	switch op := op.(type) {
	case BindExisting:
		r.structure[op.PredIdx].Args[op.ArgIdx] = ir.Var(op.VarID)
		r.varLocs[op.VarID] = append(r.varLocs[op.VarID], ir.ArgLocation{PredIdx: op.PredIdx, ArgIdx: op.ArgIdx})
	case AppendBindExisting:
		p := ir.NewPredicate(op.Functor, op.Arity)
		p.Args[op.ArgIdx] = ir.Var(op.VarID)
		r.structure = append(r.structure, p)
		r.varLocs[op.VarID] = append(r.varLocs[op.VarID], ir.ArgLocation{PredIdx: len(r.structure) - 1, ArgIdx: op.ArgIdx})
	case BindNewPair:
		newVid = len(r.varLocs)
		r.structure[op.PredIdx1].Args[op.ArgIdx1] = ir.Var(newVid)
		r.structure[op.PredIdx2].Args[op.ArgIdx2] = ir.Var(newVid)
		r.varLocs = append(r.varLocs, []ir.ArgLocation{
			{PredIdx: op.PredIdx1, ArgIdx: op.ArgIdx1},
			{PredIdx: op.PredIdx2, ArgIdx: op.ArgIdx2},
		})
	case AppendBindNewPair:
		newVid = len(r.varLocs)
		p := ir.NewPredicate(op.Functor, op.Arity)
		p.Args[op.ArgIdx1] = ir.Var(newVid)
		r.structure = append(r.structure, p)
		r.structure[op.PredIdx2].Args[op.ArgIdx2] = ir.Var(newVid)
		r.varLocs = append(r.varLocs, []ir.ArgLocation{
			{PredIdx: len(r.structure) - 1, ArgIdx: op.ArgIdx1},
			{PredIdx: op.PredIdx2, ArgIdx: op.ArgIdx2},
		})
	case AssignConstant:
		r.structure[op.PredIdx].Args[op.ArgIdx] = ir.Const(op.Constant)
	}
	r.length++
	return newVid
}

// isInvalid reports whether the structure can never be a useful rule.
func (r *CachedRule) isInvalid() bool {
	head := r.structure.Head()
	if len(r.structure) > 1 && !head.HasVar() {
		return true
	}
	ground := make(map[string]struct{})
	for _, p := range r.structure[1:] {
		if p.Functor == head.Functor {
			for i, a := range p.Args {
				if !a.IsEmpty() && a == head.Args[i] {
					return true
				}
			}
		}
		if p.IsGround() {
			key := p.String()
			if _, dup := ground[key]; dup {
				return true
			}
			ground[key] = struct{}{}
		}
		if !p.HasVar() {
			return true
		}
	}
	return r.components() >= 2
}

// components counts the groups of variables connected through shared
// predicates.
func (r *CachedRule) components() int {
	if len(r.varLocs) == 0 {
		return 0
	}
	g := simple.NewUndirectedGraph()
	for vid := range r.varLocs {
		g.AddNode(simple.Node(vid))
	}
	for _, p := range r.structure {
		first := -1
		for _, a := range p.Args {
			if !a.IsVar() {
				continue
			}
			if first < 0 {
				first = a.ID()
			} else if a.ID() != first {
				g.SetEdge(g.NewEdge(simple.Node(first), simple.Node(a.ID())))
			}
		}
	}
	return len(topo.ConnectedComponents(g))
}

// applyAnchored applies op to a fragment laid out like the whole rule,
// table i holding predicate i.
func applyAnchored(k *kb.KB, f *cache.Fragment, op Operation, newVid int) {
	switch op := op.(type) {
	case BindExisting:
		f.BindSame(op.PredIdx, op.ArgIdx, op.VarID)
	case AppendBindExisting:
		rel := k.Relation(op.Functor)
		f.AppendBind(rel.IntTable, rel.ID, op.ArgIdx, op.VarID)
	case BindNewPair:
		f.BindNewPair(op.PredIdx1, op.ArgIdx1, op.PredIdx2, op.ArgIdx2, newVid)
	case AppendBindNewPair:
		rel := k.Relation(op.Functor)
		f.AppendBindNewPair(rel.IntTable, rel.ID, op.ArgIdx1, op.PredIdx2, op.ArgIdx2, newVid)
	case AssignConstant:
		f.AssignConstant(op.PredIdx, op.ArgIdx, op.Constant)
	}
}

// fragmentOf returns the index of the first body fragment holding vid,
// or -1.
func (r *CachedRule) fragmentOf(vid int) int {
	for i, f := range r.all {
		if f.HasVar(vid) {
			return i
		}
	}
	return -1
}

// mergeFragmentIndices moves the tables of fragment merging behind those
// of base, then fills the hole with the last fragment.
func (r *CachedRule) mergeFragmentIndices(base, merging int) {
	last := len(r.all) - 1
	tabsInBase := r.all[base].Tables()
	r.all[merging] = r.all[last]
	for _, ti := range r.tabs[1:] {
		if ti.frag == merging {
			ti.frag = base
			ti.tab += tabsInBase
		}
		if ti.frag == last {
			ti.frag = merging
		}
	}
	r.all = r.all[:last]
}

// updateBody applies op to the E cache. When a fragment becomes empty
// the body has no grounding and every fragment is cleared.
func (r *CachedRule) updateBody(op Operation, newVid int) {
	var touched *cache.Fragment
	switch op := op.(type) {
	case BindExisting:
		if op.PredIdx == 0 {
			return
		}
		ti := r.tabs[op.PredIdx]
		frag := r.all[ti.frag]
		if frag.HasVar(op.VarID) {
			frag.BindSame(ti.tab, op.ArgIdx, op.VarID)
		} else if fi := r.fragmentOf(op.VarID); fi >= 0 {
			base := r.all[fi]
			tab := ti.tab
			r.mergeFragmentIndices(fi, ti.frag)
			base.MergeOnSharedVar(frag, tab, op.ArgIdx, op.VarID)
			frag = base
		} else {
			frag.BindSame(ti.tab, op.ArgIdx, op.VarID)
		}
		touched = frag

	case AppendBindExisting:
		rel := r.kb.Relation(op.Functor)
		if fi := r.fragmentOf(op.VarID); fi >= 0 {
			frag := r.all[fi]
			r.tabs = append(r.tabs, &tabInfo{frag: fi, tab: frag.Tables()})
			frag.AppendBind(rel.IntTable, rel.ID, op.ArgIdx, op.VarID)
			touched = frag
		} else {
			frag := cache.NewFragment(rel.IntTable, rel.ID)
			frag.BindSame(0, op.ArgIdx, op.VarID)
			r.tabs = append(r.tabs, &tabInfo{frag: len(r.all), tab: 0})
			r.all = append(r.all, frag)
			touched = frag
		}

	case BindNewPair:
		p1, p2 := op.PredIdx1, op.PredIdx2
		switch {
		case p1 == 0 && p2 == 0:
			return
		case p1 == 0:
			ti := r.tabs[p2]
			touched = r.all[ti.frag]
			touched.BindSame(ti.tab, op.ArgIdx2, newVid)
		case p2 == 0:
			ti := r.tabs[p1]
			touched = r.all[ti.frag]
			touched.BindSame(ti.tab, op.ArgIdx1, newVid)
		default:
			t1, t2 := r.tabs[p1], r.tabs[p2]
			f1 := r.all[t1.frag]
			if t1.frag == t2.frag {
				f1.BindNewPair(t1.tab, op.ArgIdx1, t2.tab, op.ArgIdx2, newVid)
			} else {
				f2 := r.all[t2.frag]
				tab2 := t2.tab
				r.mergeFragmentIndices(t1.frag, t2.frag)
				f1.MergeOnNewPair(t1.tab, op.ArgIdx1, f2, tab2, op.ArgIdx2, newVid)
			}
			touched = f1
		}

	case AppendBindNewPair:
		rel := r.kb.Relation(op.Functor)
		if op.PredIdx2 == 0 {
			frag := cache.NewFragment(rel.IntTable, rel.ID)
			frag.BindSame(0, op.ArgIdx1, newVid)
			r.tabs = append(r.tabs, &tabInfo{frag: len(r.all), tab: 0})
			r.all = append(r.all, frag)
			touched = frag
		} else {
			ti := r.tabs[op.PredIdx2]
			frag := r.all[ti.frag]
			r.tabs = append(r.tabs, &tabInfo{frag: ti.frag, tab: frag.Tables()})
			frag.AppendBindNewPair(rel.IntTable, rel.ID, op.ArgIdx1, ti.tab, op.ArgIdx2, newVid)
			touched = frag
		}

	case AssignConstant:
		if op.PredIdx == 0 {
			return
		}
		ti := r.tabs[op.PredIdx]
		touched = r.all[ti.frag]
		touched.AssignConstant(ti.tab, op.ArgIdx, op.Constant)
	}
	if touched != nil && touched.IsEmpty() {
		for _, f := range r.all {
			f.Clear()
		}
	}
}

// headVars returns the distinct variables of the head in order of first
// appearance, and the number of empty head slots.
func (r *CachedRule) headVars() (vids []int, empty int) {
	for _, a := range r.structure.Head().Args {
		switch {
		case a.IsVar():
			if !slices.Contains(vids, a.ID()) {
				vids = append(vids, a.ID())
			}
		case a.IsEmpty():
			empty++
		}
	}
	return vids, empty
}

// bodyLocation returns the first body position of vid.
func (r *CachedRule) bodyLocation(vid int) (ir.ArgLocation, bool) {
	for _, loc := range r.varLocs[vid] {
		if loc.PredIdx > 0 {
			return loc, true
		}
	}
	return ir.ArgLocation{}, false
}

// distinctRows returns the distinct rows of table tab in f.
func distinctRows(f *cache.Fragment, tab int) [][]int {
	seen := make(map[string]struct{})
	var out [][]int
	for _, e := range f.Entries() {
		for _, row := range e[tab].Rows() {
			key := ir.RowKey(row)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, row)
		}
	}
	return out
}
