package cache

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
)

func pRows() [][]int {
	return [][]int{
		{1, 1, 1}, {1, 1, 2}, {1, 2, 3}, {2, 1, 3},
		{4, 4, 6}, {5, 5, 1}, {1, 3, 2}, {2, 4, 4},
	}
}

func qRows() [][]int {
	return [][]int{{1, 5}, {2, 6}, {4, 1}, {7, 7}}
}

func testKB(t *testing.T) *kb.KB {
	t.Helper()
	k := kb.New("test", nil)
	_, err := k.AddRelation("p", 3, pRows())
	require.NoError(t, err)
	_, err = k.AddRelation("q", 2, qRows())
	require.NoError(t, err)
	return k
}

func relation(t *testing.T, k *kb.KB, name string) *kb.Relation {
	t.Helper()
	rel, ok := k.RelationByName(name)
	require.True(t, ok, "unknown relation %s", name)
	return rel
}

// dump renders a fragment with entries in a canonical order.
func dump(f *Fragment, n ir.Namer) string {
	var b strings.Builder
	for i, p := range f.PartialRule() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Format(n))
	}
	b.WriteByte('\n')
	lines := make([]string, 0, f.Len())
	for _, e := range f.Entries() {
		blocks := make([]string, len(e))
		for i, blk := range e {
			rows := slices.Clone(blk.Rows())
			slices.SortFunc(rows, slices.Compare)
			parts := make([]string, len(rows))
			for j, row := range rows {
				parts[j] = ir.Record(row).String()
			}
			blocks[i] = strings.Join(parts, " ")
		}
		lines = append(lines, strings.Join(blocks, " | "))
	}
	slices.Sort(lines)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

func intArg(t *testing.T, d *datadriven.TestData, key string) int {
	t.Helper()
	var v int
	d.ScanArgs(t, key, &v)
	return v
}

func vidsArg(t *testing.T, d *datadriven.TestData) []int {
	t.Helper()
	for _, arg := range d.CmdArgs {
		if arg.Key != "vids" {
			continue
		}
		var vids []int
		for _, s := range arg.Vals {
			v, err := strconv.Atoi(s)
			require.NoError(t, err)
			vids = append(vids, v)
		}
		return vids
	}
	t.Fatalf("%s: missing vids", d.Pos)
	return nil
}

func TestFragmentDataDriven(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		k := testKB(t)
		frags := make(map[string]*Fragment)

		get := func(t *testing.T, d *datadriven.TestData, key string) *Fragment {
			var name string
			d.ScanArgs(t, key, &name)
			f, ok := frags[name]
			require.True(t, ok, "unknown fragment %s", name)
			f.BuildIndices()
			return f
		}

		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			switch d.Cmd {
			case "new":
				var name, rel string
				d.ScanArgs(t, "name", &name)
				d.ScanArgs(t, "rel", &rel)
				r := relation(t, k, rel)
				frags[name] = NewFragment(r.IntTable, r.ID)
				return dump(frags[name], k)

			case "structure":
				var name string
				d.ScanArgs(t, "name", &name)
				s, err := ir.ParseStructure(strings.TrimSpace(d.Input), k)
				require.NoError(t, err)
				tables := make([]*kb.IntTable, len(s))
				for i, p := range s {
					tables[i] = k.Relation(p.Functor).IntTable
				}
				frags[name] = FragmentFromStructure(s, tables)
				return dump(frags[name], k)

			case "bind":
				f := get(t, d, "name")
				f.BindSame(intArg(t, d, "tab"), intArg(t, d, "col"), intArg(t, d, "vid"))
				return dump(f, k)

			case "append":
				f := get(t, d, "name")
				var rel string
				d.ScanArgs(t, "rel", &rel)
				r := relation(t, k, rel)
				f.AppendBind(r.IntTable, r.ID, intArg(t, d, "col"), intArg(t, d, "vid"))
				return dump(f, k)

			case "pair":
				f := get(t, d, "name")
				f.BindNewPair(intArg(t, d, "tab1"), intArg(t, d, "col1"),
					intArg(t, d, "tab2"), intArg(t, d, "col2"), intArg(t, d, "vid"))
				return dump(f, k)

			case "append-pair":
				f := get(t, d, "name")
				var rel string
				d.ScanArgs(t, "rel", &rel)
				r := relation(t, k, rel)
				f.AppendBindNewPair(r.IntTable, r.ID, intArg(t, d, "col1"),
					intArg(t, d, "tab2"), intArg(t, d, "col2"), intArg(t, d, "vid"))
				return dump(f, k)

			case "assign":
				f := get(t, d, "name")
				f.AssignConstant(intArg(t, d, "tab"), intArg(t, d, "col"), intArg(t, d, "const"))
				return dump(f, k)

			case "merge-shared":
				f := get(t, d, "into")
				other := get(t, d, "from")
				f.MergeOnSharedVar(other, intArg(t, d, "tab"), intArg(t, d, "col"), intArg(t, d, "vid"))
				return dump(f, k)

			case "merge-pair":
				f := get(t, d, "into")
				other := get(t, d, "from")
				f.MergeOnNewPair(intArg(t, d, "tab"), intArg(t, d, "col"),
					other, intArg(t, d, "tab2"), intArg(t, d, "col2"), intArg(t, d, "vid"))
				return dump(f, k)

			case "count":
				f := get(t, d, "name")
				return strconv.Itoa(f.CountCombinations(vidsArg(t, d)))

			case "enumerate":
				f := get(t, d, "name")
				var b strings.Builder
				for _, binding := range f.EnumerateCombinations(vidsArg(t, d)) {
					fmt.Fprintln(&b, ir.Record(binding))
				}
				return b.String()

			case "size":
				f := get(t, d, "name")
				return strconv.Itoa(f.CountTableSize(intArg(t, d, "tab")))

			default:
				t.Fatalf("%s: unknown command %q", d.Pos, d.Cmd)
				return ""
			}
		})
	})
}

func TestFragmentMutationRequiresIndices(t *testing.T) {
	k := testKB(t)
	p := relation(t, k, "p")
	f := NewFragment(p.IntTable, p.ID)
	f.BindSame(0, 0, 0)
	require.False(t, f.Indexed())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.HasAssertionFailure(err))
	}()
	f.BindSame(0, 1, 0)
}

func TestFragmentSplitMatchesDirectJoin(t *testing.T) {
	k := testKB(t)
	p, q := relation(t, k, "p"), relation(t, k, "q")

	f := NewFragment(p.IntTable, p.ID)
	f.BindSame(0, 0, 0)
	f.BuildIndices()
	f.AppendBind(q.IntTable, q.ID, 0, 0)

	slicesP, slicesQ := kb.MatchSlices(p.IntTable, 0, q.IntTable, 0)
	direct := NewFragment(p.IntTable, p.ID)
	direct.rule = f.Clone().rule
	direct.entries = nil
	for i := range slicesP {
		direct.entries = append(direct.entries, Entry{newBlock(slicesP[i], 3), newBlock(slicesQ[i], 2)})
	}
	assert.Equal(t, dump(direct, k), dump(f, k))
}

func TestFragmentIncrementalMatchesStructure(t *testing.T) {
	k := testKB(t)
	p, q := relation(t, k, "p"), relation(t, k, "q")

	f := NewFragment(p.IntTable, p.ID)
	steps := []func(){
		func() { f.BindSame(0, 0, 0) },
		func() { f.BindSame(0, 1, 0) },
		func() { f.AppendBind(q.IntTable, q.ID, 0, 0) },
		func() { f.AssignConstant(1, 1, 5) },
	}
	for i, step := range steps {
		f.BuildIndices()
		step()

		tables := make([]*kb.IntTable, f.Tables())
		for ti, pred := range f.PartialRule() {
			tables[ti] = k.Relation(pred.Functor).IntTable
		}
		want := FragmentFromStructure(f.PartialRule(), tables)
		assert.Equal(t, dump(want, k), dump(f, k), "step %d", i)
	}
}

func TestFragmentMergeAssociativity(t *testing.T) {
	k := testKB(t)
	p, q := relation(t, k, "p"), relation(t, k, "q")

	newA := func() *Fragment {
		a := NewFragment(p.IntTable, p.ID)
		a.BindSame(0, 0, 0)
		a.BuildIndices()
		return a
	}

	// (A + B) + C
	left := newA()
	left.MergeOnSharedVar(NewFragment(q.IntTable, q.ID), 0, 0, 0)
	left.BuildIndices()
	left.MergeOnNewPair(1, 1, NewFragment(q.IntTable, q.ID), 0, 0, 1)

	// A + (B + C)
	bc := NewFragment(q.IntTable, q.ID)
	bc.MergeOnNewPair(0, 1, NewFragment(q.IntTable, q.ID), 0, 0, 1)
	bc.BuildIndices()
	right := newA()
	right.MergeOnSharedVar(bc, 0, 0, 0)

	assert.Equal(t, dump(left, k), dump(right, k))
	assert.Equal(t, 1, right.Len())
	assert.Equal(t, "p(X0,?,?),q(X0,X1),q(X1,?)\n(4,4,6) | (4,1) | (1,5)\n", dump(right, k))
}

func TestFragmentCloneIsolation(t *testing.T) {
	k := testKB(t)
	p := relation(t, k, "p")

	f := NewFragment(p.IntTable, p.ID)
	f.BindSame(0, 0, 0)
	f.BuildIndices()
	before := dump(f, k)

	c := f.Clone()
	c.BindSame(0, 1, 0)

	assert.Equal(t, before, dump(f, k))
	assert.Equal(t, 8, f.CountTableSize(0))
	assert.Equal(t, 4, f.CountCombinations([]int{0}))
	assert.True(t, f.Indexed())

	assert.Equal(t, 4, c.CountTableSize(0))
	assert.Equal(t, 3, c.CountCombinations([]int{0}))
	assert.False(t, c.Indexed())
}

func TestFragmentCombinationEdgeCases(t *testing.T) {
	k := testKB(t)
	p := relation(t, k, "p")

	f := NewFragment(p.IntTable, p.ID)
	assert.Equal(t, 1, f.CountCombinations(nil))
	assert.Len(t, f.EnumerateCombinations(nil), 1)

	empty := EmptyFragment(p.ID, 3)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 0, empty.CountCombinations(nil))
	assert.Empty(t, empty.EnumerateCombinations(nil))

	f.Clear()
	assert.True(t, f.IsEmpty())
	assert.Equal(t, 0, f.CountTableSize(0))
}

func TestNewFragmentFromEmptyTable(t *testing.T) {
	f := NewFragment(kb.NewIntTable(nil, 2), 3)
	assert.True(t, f.IsEmpty())
	assert.Equal(t, 1, f.Tables())
	assert.Equal(t, "r3(?,?)", f.PartialRule()[0].String())
}
