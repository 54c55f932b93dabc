package cache

import (
	"sync"

	"github.com/roach88/sinc/internal/kb"
)

// Block is the compliance set of one predicate within one cache entry.
//
// Blocks are immutable. The per-column index is built at most once, on
// first use, and is safe to build from concurrent goroutines.
type Block struct {
	rows  [][]int
	arity int

	once  sync.Once
	index *kb.IntTable
}

func newBlock(rows [][]int, arity int) *Block {
	return &Block{rows: rows, arity: arity}
}

// tableBlock wraps an already indexed table.
func tableBlock(t *kb.IntTable) *Block {
	b := &Block{rows: t.Rows(), arity: t.Arity(), index: t}
	b.once.Do(func() {})
	return b
}

// Rows returns the compliant rows. Callers must not modify them.
func (b *Block) Rows() [][]int { return b.rows }

// Len returns the number of compliant rows.
func (b *Block) Len() int { return len(b.rows) }

// Arity returns the number of columns.
func (b *Block) Arity() int { return b.arity }

// first returns the row used to read values fixed across the block.
func (b *Block) first() []int { return b.rows[0] }

// Index returns the block's column index, building it on first call.
func (b *Block) Index() *kb.IntTable {
	b.once.Do(func() {
		b.index = kb.NewIntTable(b.rows, b.arity)
	})
	return b.index
}

// Entry is one combination of compliant blocks, one per predicate.
type Entry []*Block

// with returns a copy of e with the block at tab replaced.
func (e Entry) with(tab int, b *Block) Entry {
	out := make(Entry, len(e))
	copy(out, e)
	out[tab] = b
	return out
}

// appended returns a copy of e followed by bs.
func (e Entry) appended(bs ...*Block) Entry {
	out := make(Entry, len(e), len(e)+len(bs))
	copy(out, e)
	return append(out, bs...)
}
