package cache

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
)

// varInfo locates the first occurrence of a variable in a fragment.
// plv marks a placeholder: a variable seen at exactly one position, whose
// column has not been filtered yet.
type varInfo struct {
	tab int
	col int
	plv bool
}

// Fragment is the join cache of one connected group of predicates.
//
// Table indexes (tab) are positions in the fragment's partial rule, not
// in the owning rule. The owning rule translates between the two.
type Fragment struct {
	rule    []ir.Predicate
	entries []Entry
	vars    []*varInfo
	indexed bool
}

// NewFragment returns a fragment of one predicate whose single entry holds
// every row of t.
func NewFragment(t *kb.IntTable, functor int) *Fragment {
	f := &Fragment{
		rule:    []ir.Predicate{ir.NewPredicate(functor, t.Arity())},
		indexed: true,
	}
	if t.Len() > 0 {
		f.entries = []Entry{{tableBlock(t)}}
	}
	return f
}

// EmptyFragment returns a fragment of one predicate with no entries.
func EmptyFragment(functor, arity int) *Fragment {
	return &Fragment{
		rule:    []ir.Predicate{ir.NewPredicate(functor, arity)},
		indexed: true,
	}
}

// FragmentFromStructure builds the cache of an already specialized group
// of predicates. tables[i] holds the rows of structure[i]. Constants
// select rows, variables seen twice or more join them, and a variable seen
// once becomes a placeholder.
func FragmentFromStructure(structure []ir.Predicate, tables []*kb.IntTable) *Fragment {
	f := &Fragment{rule: make([]ir.Predicate, len(structure))}
	var locs [][]ir.ArgLocation
	for pi, p := range structure {
		f.rule[pi] = p.Clone()
		for ai, a := range p.Args {
			if !a.IsVar() {
				continue
			}
			for len(locs) <= a.ID() {
				locs = append(locs, nil)
			}
			locs[a.ID()] = append(locs[a.ID()], ir.ArgLocation{PredIdx: pi, ArgIdx: ai})
		}
	}
	for vid, vl := range locs {
		if len(vl) > 0 {
			f.addVar(vid, varInfo{tab: vl[0].PredIdx, col: vl[0].ArgIdx, plv: len(vl) == 1})
		}
	}

	first := make(Entry, len(tables))
	for ti, t := range tables {
		filtered := selectConstants(t, structure[ti])
		if filtered == nil {
			return f
		}
		first[ti] = tableBlock(filtered)
	}
	f.entries = []Entry{first}
	for _, vl := range locs {
		if len(vl) >= 2 {
			f.splitByVar(vl)
		}
	}
	return f
}

// selectConstants returns the rows of t agreeing with every constant of p,
// or nil when none do.
func selectConstants(t *kb.IntTable, p ir.Predicate) *kb.IntTable {
	if t.Len() == 0 {
		return nil
	}
	var cols []int
	for ai, a := range p.Args {
		if a.IsConst() {
			cols = append(cols, ai)
		}
	}
	if len(cols) == 0 {
		return t
	}
	var rows [][]int
	for _, row := range t.Rows() {
		ok := true
		for _, c := range cols {
			if row[c] != p.Args[c].ID() {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, row)
		}
	}
	switch len(rows) {
	case 0:
		return nil
	case t.Len():
		return t
	}
	return kb.NewIntTable(rows, t.Arity())
}

// splitByVar joins every occurrence of one variable at once.
func (f *Fragment) splitByVar(locs []ir.ArgLocation) {
	colsByTab := make(map[int][]int)
	for _, l := range locs {
		colsByTab[l.PredIdx] = append(colsByTab[l.PredIdx], l.ArgIdx)
	}
	tabs := slices.Sorted(maps.Keys(colsByTab))

	for _, tab := range tabs {
		cols := colsByTab[tab]
		if len(cols) < 2 {
			continue
		}
		var kept []Entry
		for _, e := range f.entries {
			var rows [][]int
			for _, row := range e[tab].rows {
				if allEqual(row, cols) {
					rows = append(rows, row)
				}
			}
			if len(rows) > 0 {
				kept = append(kept, e.with(tab, sub(e[tab], rows)))
			}
		}
		f.entries = kept
	}

	firstCols := make([]int, len(tabs))
	for i, tab := range tabs {
		firstCols[i] = colsByTab[tab][0]
	}
	var out []Entry
	indexes := make([]*kb.IntTable, len(tabs))
	for _, e := range f.entries {
		for i, tab := range tabs {
			indexes[i] = e[tab].Index()
		}
		matched := kb.MatchSlicesN(indexes, firstCols)
		for si := range matched[0] {
			ne := e.with(tabs[0], sub(e[tabs[0]], matched[0][si]))
			for i := 1; i < len(tabs); i++ {
				ne[tabs[i]] = sub(e[tabs[i]], matched[i][si])
			}
			out = append(out, ne)
		}
	}
	f.entries = out
}

func allEqual(row []int, cols []int) bool {
	for _, c := range cols[1:] {
		if row[c] != row[cols[0]] {
			return false
		}
	}
	return true
}

// sub returns a block of rows, a subset of b, reusing b when nothing was
// filtered out.
func sub(b *Block, rows [][]int) *Block {
	if len(rows) == b.Len() {
		return b
	}
	return newBlock(rows, b.arity)
}

// Clone returns a copy sharing the entry list. The partial rule and
// variable table are copied.
func (f *Fragment) Clone() *Fragment {
	c := &Fragment{
		rule:    make([]ir.Predicate, len(f.rule)),
		entries: f.entries,
		vars:    make([]*varInfo, len(f.vars)),
		indexed: f.indexed,
	}
	for i, p := range f.rule {
		c.rule[i] = p.Clone()
	}
	for i, v := range f.vars {
		if v != nil {
			cp := *v
			c.vars[i] = &cp
		}
	}
	return c
}

// BuildIndices materializes the column index of every block. It must be
// called before each mutating operation.
func (f *Fragment) BuildIndices() {
	for _, e := range f.entries {
		for _, b := range e {
			b.Index()
		}
	}
	f.indexed = true
}

// Indexed reports whether BuildIndices ran since the last mutation.
func (f *Fragment) Indexed() bool { return f.indexed }

func (f *Fragment) mutating(op string) {
	if !f.indexed {
		panic(errors.AssertionFailedf("cache: %s on a fragment without indices", op))
	}
	f.indexed = false
}

func (f *Fragment) lookup(vid int) *varInfo {
	if vid < 0 || vid >= len(f.vars) {
		return nil
	}
	return f.vars[vid]
}

func (f *Fragment) mustVar(vid int, op string) *varInfo {
	v := f.lookup(vid)
	if v == nil {
		panic(errors.AssertionFailedf("cache: %s: variable X%d is not in the fragment", op, vid))
	}
	return v
}

func (f *Fragment) addVar(vid int, v varInfo) {
	for len(f.vars) <= vid {
		f.vars = append(f.vars, nil)
	}
	f.vars[vid] = &v
}

// adoptVars copies the variables of other that f lacks, shifting their
// table indexes by offset.
func (f *Fragment) adoptVars(other *Fragment, offset int) {
	for vid, v := range other.vars {
		if v != nil && f.lookup(vid) == nil {
			f.addVar(vid, varInfo{tab: offset + v.tab, col: v.col, plv: v.plv})
		}
	}
}

// appendRule copies other's predicates after f's and returns the offset
// of the first copied one.
func (f *Fragment) appendRule(other *Fragment) int {
	offset := len(f.rule)
	for _, p := range other.rule {
		f.rule = append(f.rule, p.Clone())
	}
	return offset
}

// BindSame binds the empty slot (tab, col) to variable vid. An unseen
// variable becomes a placeholder, a placeholder splits the entries on
// both columns, and a linked variable filters the new column by the value
// each entry already fixes.
func (f *Fragment) BindSame(tab, col, vid int) {
	f.mutating("BindSame")
	f.rule[tab].Args[col] = ir.Var(vid)
	v := f.lookup(vid)
	switch {
	case v == nil:
		f.addVar(vid, varInfo{tab: tab, col: col, plv: true})
	case v.plv:
		v.plv = false
		f.split(v.tab, v.col, tab, col)
	default:
		f.match(v.tab, v.col, tab, col)
	}
}

// AppendBind appends a predicate over rel whose column col is bound to
// vid. vid must already occur in the fragment.
func (f *Fragment) AppendBind(rel *kb.IntTable, functor, col, vid int) {
	f.mutating("AppendBind")
	p := ir.NewPredicate(functor, rel.Arity())
	p.Args[col] = ir.Var(vid)
	f.rule = append(f.rule, p)
	v := f.mustVar(vid, "AppendBind")
	if v.plv {
		v.plv = false
		f.splitRelation(v.tab, v.col, rel, col)
		return
	}
	f.matchRelation(v.tab, v.col, rel, col)
}

// MergeOnSharedVar absorbs other, binding its empty slot (tab, col) to
// vid, which must already occur in f. other's predicates are appended
// after f's.
func (f *Fragment) MergeOnSharedVar(other *Fragment, tab, col, vid int) {
	f.mutating("MergeOnSharedVar")
	other.requireIndexed("MergeOnSharedVar")
	offset := f.appendRule(other)
	f.rule[offset+tab].Args[col] = ir.Var(vid)
	f.adoptVars(other, offset)

	merging := groupByValue(other.entries, tab, col)
	v := f.mustVar(vid, "MergeOnSharedVar")
	if v.plv {
		v.plv = false
		f.entries = mergeGroups(groupByValue(f.entries, v.tab, v.col), merging)
		return
	}
	f.entries = mergeByFixedValue(f.entries, v.tab, v.col, merging)
}

// BindNewPair binds two empty slots of the fragment to the new variable vid.
func (f *Fragment) BindNewPair(tab1, col1, tab2, col2, vid int) {
	f.mutating("BindNewPair")
	f.addVar(vid, varInfo{tab: tab1, col: col1})
	f.rule[tab1].Args[col1] = ir.Var(vid)
	f.rule[tab2].Args[col2] = ir.Var(vid)
	f.split(tab1, col1, tab2, col2)
}

// AppendBindNewPair appends a predicate over rel and binds its column col1
// and the fragment's empty slot (tab2, col2) to the new variable vid.
func (f *Fragment) AppendBindNewPair(rel *kb.IntTable, functor, col1, tab2, col2, vid int) {
	f.mutating("AppendBindNewPair")
	f.addVar(vid, varInfo{tab: tab2, col: col2})
	f.rule[tab2].Args[col2] = ir.Var(vid)
	p := ir.NewPredicate(functor, rel.Arity())
	p.Args[col1] = ir.Var(vid)
	f.rule = append(f.rule, p)
	f.splitRelation(tab2, col2, rel, col1)
}

// MergeOnNewPair absorbs other, binding f's slot (tab, col) and other's
// slot (tab2, col2) to the new variable vid.
func (f *Fragment) MergeOnNewPair(tab, col int, other *Fragment, tab2, col2, vid int) {
	f.mutating("MergeOnNewPair")
	other.requireIndexed("MergeOnNewPair")
	offset := f.appendRule(other)
	f.rule[tab].Args[col] = ir.Var(vid)
	f.rule[offset+tab2].Args[col2] = ir.Var(vid)
	f.addVar(vid, varInfo{tab: tab, col: col})
	f.adoptVars(other, offset)
	f.entries = mergeGroups(groupByValue(f.entries, tab, col), groupByValue(other.entries, tab2, col2))
}

// AssignConstant binds the empty slot (tab, col) to constant c.
func (f *Fragment) AssignConstant(tab, col, c int) {
	f.mutating("AssignConstant")
	f.rule[tab].Args[col] = ir.Const(c)
	var out []Entry
	for _, e := range f.entries {
		if rows := e[tab].Index().GetSlice(col, c); len(rows) > 0 {
			out = append(out, e.with(tab, sub(e[tab], rows)))
		}
	}
	f.entries = out
}

func (f *Fragment) requireIndexed(op string) {
	if !f.indexed {
		panic(errors.AssertionFailedf("cache: %s with a fragment without indices", op))
	}
}

// split regroups every entry by the values shared by two columns.
func (f *Fragment) split(tab1, col1, tab2, col2 int) {
	var out []Entry
	for _, e := range f.entries {
		if tab1 == tab2 {
			for _, rows := range e[tab1].Index().MatchSlicesWithin(col1, col2) {
				out = append(out, e.with(tab1, sub(e[tab1], rows)))
			}
			continue
		}
		rows1, rows2 := kb.MatchSlices(e[tab1].Index(), col1, e[tab2].Index(), col2)
		for i := range rows1 {
			ne := e.with(tab1, sub(e[tab1], rows1[i]))
			ne[tab2] = sub(e[tab2], rows2[i])
			out = append(out, ne)
		}
	}
	f.entries = out
}

func (f *Fragment) splitRelation(tab, col int, rel *kb.IntTable, relCol int) {
	var out []Entry
	for _, e := range f.entries {
		rows1, rows2 := kb.MatchSlices(e[tab].Index(), col, rel, relCol)
		for i := range rows1 {
			ne := e.with(tab, sub(e[tab], rows1[i]))
			out = append(out, ne.appended(newBlock(rows2[i], rel.Arity())))
		}
	}
	f.entries = out
}

// match filters column (tab, col) to the value each entry fixes at
// (fixedTab, fixedCol).
func (f *Fragment) match(fixedTab, fixedCol, tab, col int) {
	var out []Entry
	for _, e := range f.entries {
		v := e[fixedTab].first()[fixedCol]
		if rows := e[tab].Index().GetSlice(col, v); len(rows) > 0 {
			out = append(out, e.with(tab, sub(e[tab], rows)))
		}
	}
	f.entries = out
}

func (f *Fragment) matchRelation(fixedTab, fixedCol int, rel *kb.IntTable, relCol int) {
	var out []Entry
	for _, e := range f.entries {
		v := e[fixedTab].first()[fixedCol]
		if rows := rel.GetSlice(relCol, v); len(rows) > 0 {
			out = append(out, e.appended(newBlock(rows, rel.Arity())))
		}
	}
	f.entries = out
}

// groupByValue splits every entry on column (tab, col) and gathers the
// pieces by value.
func groupByValue(entries []Entry, tab, col int) map[int][]Entry {
	groups := make(map[int][]Entry)
	for _, e := range entries {
		for _, rows := range e[tab].Index().SplitSlices(col) {
			v := rows[0][col]
			groups[v] = append(groups[v], e.with(tab, sub(e[tab], rows)))
		}
	}
	return groups
}

// mergeGroups concatenates every pair of base and merging entries that
// share a value. Values are visited in ascending order.
func mergeGroups(base, merging map[int][]Entry) []Entry {
	var out []Entry
	for _, v := range slices.Sorted(maps.Keys(base)) {
		others, ok := merging[v]
		if !ok {
			continue
		}
		for _, be := range base[v] {
			for _, me := range others {
				out = append(out, be.appended(me...))
			}
		}
	}
	return out
}

// mergeByFixedValue joins base entries, whose column (tab, col) already
// holds a single value, with the merging entries of that value.
func mergeByFixedValue(base []Entry, tab, col int, merging map[int][]Entry) []Entry {
	var out []Entry
	for _, be := range base {
		for _, me := range merging[be[tab].first()[col]] {
			out = append(out, be.appended(me...))
		}
	}
	return out
}

// HasVar reports whether variable vid occurs in the fragment.
func (f *Fragment) HasVar(vid int) bool { return f.lookup(vid) != nil }

// IsEmpty reports whether the fragment has no entries.
func (f *Fragment) IsEmpty() bool { return len(f.entries) == 0 }

// Clear drops every entry.
func (f *Fragment) Clear() {
	if len(f.entries) > 0 {
		f.entries = nil
	}
}

// Len returns the number of entries.
func (f *Fragment) Len() int { return len(f.entries) }

// Entries returns the entry list. Callers must not modify it.
func (f *Fragment) Entries() []Entry { return f.entries }

// Tables returns the number of predicates in the fragment.
func (f *Fragment) Tables() int { return len(f.rule) }

// PartialRule returns the fragment's predicates. Callers must not modify
// them.
func (f *Fragment) PartialRule() []ir.Predicate { return f.rule }

// CountTableSize returns the number of distinct rows of table tab across
// all entries.
func (f *Fragment) CountTableSize(tab int) int {
	seen := make(map[string]struct{})
	for _, e := range f.entries {
		for _, row := range e[tab].rows {
			seen[ir.RowKey(row)] = struct{}{}
		}
	}
	return len(seen)
}

// CountCombinations returns the number of distinct joint bindings of vids.
// Every vid must occur in the fragment, without repetition.
func (f *Fragment) CountCombinations(vids []int) int {
	seen := make(map[string]struct{})
	f.eachCombination(vids, func(binding []int) {
		seen[ir.RowKey(binding)] = struct{}{}
	})
	return len(seen)
}

// EnumerateCombinations returns the distinct joint bindings of vids in
// lexicographic order. binding[i] is the value of vids[i].
func (f *Fragment) EnumerateCombinations(vids []int) [][]int {
	seen := make(map[string][]int)
	f.eachCombination(vids, func(binding []int) {
		key := ir.RowKey(binding)
		if _, ok := seen[key]; !ok {
			seen[key] = slices.Clone(binding)
		}
	})
	out := slices.Collect(maps.Values(seen))
	slices.SortFunc(out, slices.Compare)
	return out
}

// plvGroup is the set of placeholders located in one table.
type plvGroup struct {
	tab   int
	cols  []int
	slots []int
}

// eachCombination calls fn with every joint binding of vids, possibly more
// than once. Linked variables take the value their entry fixes.
// Placeholders in one table range over that table's distinct projections,
// and placeholders in different tables combine freely.
func (f *Fragment) eachCombination(vids []int, fn func([]int)) {
	var (
		lvs     []*varInfo
		lvSlots []int
		groups  []*plvGroup
	)
	byTab := make(map[int]*plvGroup)
	for slot, vid := range vids {
		v := f.mustVar(vid, "CountCombinations")
		if !v.plv {
			lvs = append(lvs, v)
			lvSlots = append(lvSlots, slot)
			continue
		}
		g, ok := byTab[v.tab]
		if !ok {
			g = &plvGroup{tab: v.tab}
			byTab[v.tab] = g
			groups = append(groups, g)
		}
		g.cols = append(g.cols, v.col)
		g.slots = append(g.slots, slot)
	}

	binding := make([]int, len(vids))
	for _, e := range f.entries {
		for i, v := range lvs {
			binding[lvSlots[i]] = e[v.tab].first()[v.col]
		}
		projections := make([][][]int, len(groups))
		for gi, g := range groups {
			projections[gi] = distinctProjection(e[g.tab].rows, g.cols)
		}
		fillGroups(binding, groups, projections, 0, fn)
	}
}

func fillGroups(binding []int, groups []*plvGroup, projections [][][]int, gi int, fn func([]int)) {
	if gi == len(groups) {
		fn(binding)
		return
	}
	g := groups[gi]
	for _, p := range projections[gi] {
		for i, slot := range g.slots {
			binding[slot] = p[i]
		}
		fillGroups(binding, groups, projections, gi+1, fn)
	}
}

func distinctProjection(rows [][]int, cols []int) [][]int {
	seen := make(map[string]struct{})
	var out [][]int
	for _, row := range rows {
		p := make([]int, len(cols))
		for i, c := range cols {
			p[i] = row[c]
		}
		key := ir.RowKey(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// String renders the partial rule and the number of entries.
func (f *Fragment) String() string {
	var b strings.Builder
	for i, p := range f.rule {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	fmt.Fprintf(&b, " [%d entries]", len(f.entries))
	return b.String()
}
