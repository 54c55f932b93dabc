package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sinc/internal/rule"
)

func TestCandidatePoolKeepsBest(t *testing.T) {
	k := inverseKB(t)
	rules := make([]*rule.CachedRule, 5)
	for i := range rules {
		r, err := rule.New(k, 0, rule.NewShared())
		require.NoError(t, err)
		rules[i] = r
	}

	pool := newCandidatePool(3)
	assert.True(t, pool.offer(rules[0], 0.2))
	assert.True(t, pool.offer(rules[1], 0.5))
	assert.True(t, pool.offer(rules[2], 0.2))
	assert.False(t, pool.offer(rules[3], 0.1), "full pool rejects a worse rule")
	assert.False(t, pool.offer(rules[3], 0.2), "ties do not evict")
	assert.True(t, pool.offer(rules[4], 0.3))

	assert.Equal(t, 3, pool.Len())
	best, ok := pool.best()
	require.True(t, ok)
	assert.Same(t, rules[1], best.rule)
	assert.Equal(t, []*rule.CachedRule{rules[1], rules[4], rules[0]}, pool.rules())
}

func TestCandidatePoolEmpty(t *testing.T) {
	pool := newCandidatePool(2)
	_, ok := pool.best()
	assert.False(t, ok)
	assert.Empty(t, pool.rules())
}
