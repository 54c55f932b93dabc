package engine

import (
	"github.com/google/btree"

	"github.com/roach88/sinc/internal/rule"
)

type poolItem struct {
	score float64
	seq   int
	rule  *rule.CachedRule
}

// candidatePool keeps the best rules offered during one round, at most
// capacity of them. Ties keep the earlier offer first.
type candidatePool struct {
	capacity int
	seq      int
	tree     *btree.BTreeG[poolItem]
}

func newCandidatePool(capacity int) *candidatePool {
	return &candidatePool{
		capacity: capacity,
		tree: btree.NewG(8, func(a, b poolItem) bool {
			if a.score != b.score {
				return a.score > b.score
			}
			return a.seq < b.seq
		}),
	}
}

// offer adds r unless the pool is full of rules scoring at least as well.
func (p *candidatePool) offer(r *rule.CachedRule, score float64) bool {
	if p.tree.Len() >= p.capacity {
		worst, _ := p.tree.Max()
		if score <= worst.score {
			return false
		}
		p.tree.DeleteMax()
	}
	p.tree.ReplaceOrInsert(poolItem{score: score, seq: p.seq, rule: r})
	p.seq++
	return true
}

func (p *candidatePool) Len() int { return p.tree.Len() }

// best returns the highest scoring rule.
func (p *candidatePool) best() (poolItem, bool) { return p.tree.Min() }

// rules returns the pooled rules, best first.
func (p *candidatePool) rules() []*rule.CachedRule {
	out := make([]*rule.CachedRule, 0, p.tree.Len())
	p.tree.Ascend(func(it poolItem) bool {
		out = append(out, it.rule)
		return true
	})
	return out
}
