package kb

import (
	"cmp"
	"slices"
	"sort"
)

// IntTable is an immutable table of integer rows indexed on every column.
//
// Rows are stably sorted from the last column to the first, so the order
// of column 0 is lexicographic over whole rows. For each column the table
// keeps the rows ordered by that column, the distinct values, and the
// offsets where each value's run starts (with a trailing sentinel).
//
// Thread-safe: all methods are read-only.
type IntTable struct {
	arity  int
	sorted [][][]int
	values [][]int
	starts [][]int
}

// NewIntTable indexes rows. The row slices are shared, not copied.
// Duplicate rows are kept as given; callers supply sets.
func NewIntTable(rows [][]int, arity int) *IntTable {
	t := &IntTable{
		arity:  arity,
		sorted: make([][][]int, arity),
		values: make([][]int, arity),
		starts: make([][]int, arity),
	}
	work := slices.Clone(rows)
	for col := arity - 1; col >= 0; col-- {
		slices.SortStableFunc(work, func(a, b []int) int { return cmp.Compare(a[col], b[col]) })
		sorted := slices.Clone(work)
		var values, starts []int
		for i, row := range sorted {
			if i == 0 || row[col] != sorted[i-1][col] {
				values = append(values, row[col])
				starts = append(starts, i)
			}
		}
		t.sorted[col] = sorted
		t.values[col] = values
		t.starts[col] = append(starts, len(sorted))
	}
	return t
}

// Len returns the number of rows.
func (t *IntTable) Len() int {
	if t.arity == 0 {
		return 0
	}
	return len(t.sorted[0])
}

// Arity returns the number of columns.
func (t *IntTable) Arity() int { return t.arity }

// Rows returns all rows in lexicographic order. Callers must not modify them.
func (t *IntTable) Rows() [][]int {
	if t.arity == 0 {
		return nil
	}
	return t.sorted[0]
}

// Row returns the i-th row in lexicographic order.
func (t *IntTable) Row(i int) []int { return t.sorted[0][i] }

// Values returns the distinct values of a column in ascending order.
func (t *IntTable) Values(col int) []int { return t.values[col] }

// MinValue returns the smallest value of a column.
func (t *IntTable) MinValue(col int) int { return t.values[col][0] }

// MaxValue returns the largest value of a column.
func (t *IntTable) MaxValue(col int) int {
	v := t.values[col]
	return v[len(v)-1]
}

func compareRows(a, b []int) int {
	return slices.Compare(a, b)
}

// lowerBound returns the first lexicographic position whose row is >= row.
func (t *IntTable) lowerBound(row []int) int {
	rows := t.Rows()
	return sort.Search(len(rows), func(i int) bool { return compareRows(rows[i], row) >= 0 })
}

// WhereIs returns the lexicographic index of row, or -(insertion point)-1
// when the row is absent.
func (t *IntTable) WhereIs(row []int) int {
	idx := t.lowerBound(row)
	if idx < t.Len() && compareRows(t.Row(idx), row) == 0 {
		return idx
	}
	return -idx - 1
}

// HasRow reports whether row is in the table.
func (t *IntTable) HasRow(row []int) bool {
	return t.WhereIs(row) >= 0
}

// GetSlice returns the rows whose column col equals val, or nil.
func (t *IntTable) GetSlice(col, val int) [][]int {
	values := t.values[col]
	idx, found := slices.BinarySearch(values, val)
	if !found {
		return nil
	}
	starts := t.starts[col]
	return t.sorted[col][starts[idx]:starts[idx+1]]
}

// Select returns a new table holding the rows whose column col equals val.
func (t *IntTable) Select(col, val int) *IntTable {
	slice := t.GetSlice(col, val)
	if slice == nil {
		return nil
	}
	return NewIntTable(slice, t.arity)
}

// SplitSlices groups the rows by the value of column col, in value order.
func (t *IntTable) SplitSlices(col int) [][][]int {
	starts := t.starts[col]
	sorted := t.sorted[col]
	slicesOut := make([][][]int, len(t.values[col]))
	for i := range slicesOut {
		slicesOut[i] = sorted[starts[i]:starts[i+1]]
	}
	return slicesOut
}

// MatchSlices joins two tables on a.col1 = b.col2. The i-th slice of each
// result holds the rows of that table sharing the i-th common value.
func MatchSlices(a *IntTable, col1 int, b *IntTable, col2 int) (slicesA, slicesB [][][]int) {
	values1, values2 := a.values[col1], b.values[col2]
	starts1, starts2 := a.starts[col1], b.starts[col2]
	rows1, rows2 := a.sorted[col1], b.sorted[col2]
	idx1, idx2 := 0, 0
	for idx1 < len(values1) && idx2 < len(values2) {
		v1, v2 := values1[idx1], values2[idx2]
		switch {
		case v1 < v2:
			idx1 += sort.SearchInts(values1[idx1+1:], v2) + 1
		case v1 > v2:
			idx2 += sort.SearchInts(values2[idx2+1:], v1) + 1
		default:
			slicesA = append(slicesA, rows1[starts1[idx1]:starts1[idx1+1]])
			slicesB = append(slicesB, rows2[starts2[idx2]:starts2[idx2+1]])
			idx1++
			idx2++
		}
	}
	return slicesA, slicesB
}

// MatchSlicesN joins any number of tables on one column each. The result
// has one list of slices per table, aligned by common value.
func MatchSlicesN(tables []*IntTable, cols []int) [][][][]int {
	n := len(tables)
	out := make([][][][]int, n)
	idxs := make([]int, n)
	for i, tab := range tables {
		if len(tab.values[cols[i]]) == 0 {
			return out
		}
	}
	for {
		maxVal := tables[0].values[cols[0]][idxs[0]]
		maxIdx := 0
		allMatch := true
		for i := 1; i < n; i++ {
			v := tables[i].values[cols[i]][idxs[i]]
			if v != maxVal {
				allMatch = false
			}
			if v > maxVal {
				maxVal, maxIdx = v, i
			}
		}
		if allMatch {
			done := false
			for i, tab := range tables {
				starts := tab.starts[cols[i]]
				out[i] = append(out[i], tab.sorted[cols[i]][starts[idxs[i]]:starts[idxs[i]+1]])
				idxs[i]++
				if idxs[i] >= len(tab.values[cols[i]]) {
					done = true
				}
			}
			if done {
				return out
			}
			continue
		}
		for i, tab := range tables {
			if i == maxIdx {
				continue
			}
			values := tab.values[cols[i]]
			idxs[i] += sort.SearchInts(values[idxs[i]:], maxVal)
			if idxs[i] >= len(values) {
				return out
			}
		}
	}
}

// MatchSlicesWithin groups the rows where col1 and col2 hold the same
// value, one slice per such value.
func (t *IntTable) MatchSlicesWithin(col1, col2 int) [][][]int {
	var out [][][]int
	starts := t.starts[col1]
	sorted := t.sorted[col1]
	for i, val := range t.values[col1] {
		var slice [][]int
		for _, row := range sorted[starts[i]:starts[i+1]] {
			if row[col2] == val {
				slice = append(slice, row)
			}
		}
		if slice != nil {
			out = append(out, slice)
		}
	}
	return out
}

// InsertIndices returns, for every row of other in lexicographic order,
// the position at which it would be inserted into t.
func (t *IntTable) InsertIndices(other *IntTable) []int {
	rows := other.Rows()
	out := make([]int, len(rows))
	lo := 0
	for i, row := range rows {
		lo += t.lowerBoundFrom(lo, row)
		out[i] = lo
	}
	return out
}

func (t *IntTable) lowerBoundFrom(from int, row []int) int {
	rows := t.Rows()[from:]
	return sort.Search(len(rows), func(i int) bool { return compareRows(rows[i], row) >= 0 })
}
