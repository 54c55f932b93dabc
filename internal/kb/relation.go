package kb

import (
	"math"
	"math/bits"
	"sync"
)

// DefaultMinConstantCoverage is the fraction of a relation's rows a
// constant must appear in (in one column) to be tried as a constant binding.
const DefaultMinConstantCoverage = 0.25

// Relation is a named IntTable plus an entailment bitset over its rows.
//
// The bitset is indexed by lexicographic row position. Thread-safe: the
// table is immutable and bitset access is serialized by a mutex.
type Relation struct {
	*IntTable

	ID   int
	Name string

	mu       sync.Mutex
	entailed []uint64
}

// NewRelation indexes rows as relation id/name. rows must be distinct.
func NewRelation(id int, name string, arity int, rows [][]int) *Relation {
	table := NewIntTable(rows, arity)
	return &Relation{
		IntTable: table,
		ID:       id,
		Name:     name,
		entailed: make([]uint64, (table.Len()+63)/64),
	}
}

func (r *Relation) bit(idx int) bool {
	return r.entailed[idx/64]&(1<<(idx%64)) != 0
}

func (r *Relation) set(idx int) {
	r.entailed[idx/64] |= 1 << (idx % 64)
}

// SetAsEntailed marks row as derived. Rows not in the relation are ignored.
func (r *Relation) SetAsEntailed(row []int) {
	idx := r.WhereIs(row)
	if idx < 0 {
		return
	}
	r.mu.Lock()
	r.set(idx)
	r.mu.Unlock()
}

// SetAllAsEntailed marks every given row as derived.
func (r *Relation) SetAllAsEntailed(rows [][]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if idx := r.WhereIs(row); idx >= 0 {
			r.set(idx)
		}
	}
}

// IsEntailed reports whether row is in the relation and already derived.
func (r *Relation) IsEntailed(row []int) bool {
	idx := r.WhereIs(row)
	if idx < 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bit(idx)
}

// EntailIfNot marks row as derived and reports whether it was newly marked.
// Returns false for rows outside the relation.
func (r *Relation) EntailIfNot(row []int) bool {
	idx := r.WhereIs(row)
	if idx < 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bit(idx) {
		return false
	}
	r.set(idx)
	return true
}

// TotalEntailed returns the number of derived rows.
func (r *Relation) TotalEntailed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.entailed {
		n += bits.OnesCount64(w)
	}
	return n
}

// SplitByEntailment partitions the rows into derived and not yet derived,
// both in lexicographic order.
func (r *Relation) SplitByEntailment() (entailed, nonEntailed [][]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.Rows() {
		if r.bit(i) {
			entailed = append(entailed, row)
		} else {
			nonEntailed = append(nonEntailed, row)
		}
	}
	return entailed, nonEntailed
}

// PromisingConstants returns, per column, the constants appearing in at
// least ceil(rows*minCoverage) rows.
func (r *Relation) PromisingConstants(minCoverage float64) [][]int {
	threshold := int(math.Ceil(float64(r.Len()) * minCoverage))
	out := make([][]int, r.Arity())
	for col := range out {
		starts := r.starts[col]
		for i, v := range r.values[col] {
			if starts[i+1]-starts[i] >= threshold {
				out[col] = append(out[col], v)
			}
		}
	}
	return out
}
