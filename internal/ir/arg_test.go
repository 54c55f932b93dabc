package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgEncoding(t *testing.T) {
	tests := []struct {
		name    string
		arg     Arg
		isEmpty bool
		isVar   bool
		isConst bool
		id      int
		text    string
	}{
		{"empty", Empty, true, false, false, 0, "?"},
		{"var 0", Var(0), false, true, false, 0, "X0"},
		{"var 7", Var(7), false, true, false, 7, "X7"},
		{"const 1", Const(1), false, false, true, 1, "1"},
		{"max const", Const(MaxConstant), false, false, true, MaxConstant, "2147483647"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isEmpty, tt.arg.IsEmpty())
			assert.Equal(t, tt.isVar, tt.arg.IsVar())
			assert.Equal(t, tt.isConst, tt.arg.IsConst())
			assert.Equal(t, tt.id, tt.arg.ID())
			assert.Equal(t, tt.text, tt.arg.String())
		})
	}
}

func TestVarZeroIsNotEmpty(t *testing.T) {
	assert.NotEqual(t, Empty, Var(0))
}

func TestPredicateClone(t *testing.T) {
	p := NewPredicate(3, 2)
	p.Args[0] = Var(0)

	c := p.Clone()
	c.Args[1] = Const(5)

	assert.True(t, p.Args[1].IsEmpty(), "clone must not alias args")
	assert.False(t, p.Equal(c))
	assert.Equal(t, "r3(X0,?)", p.String())
	assert.Equal(t, "r3(X0,5)", c.String())
}

func TestPredicateGroundAndVar(t *testing.T) {
	p := NewPredicate(1, 2)
	assert.False(t, p.HasVar())
	assert.False(t, p.IsGround())

	p.Args[0] = Const(1)
	p.Args[1] = Var(2)
	assert.True(t, p.HasVar())
	assert.True(t, p.IsGround())
}

func TestRowKey(t *testing.T) {
	row := []int{1, 70000, 3}
	key := RowKey(row)

	assert.Len(t, key, 12)
	assert.Equal(t, row, KeyRow(key))
	assert.NotEqual(t, RowKey([]int{1, 2}), RowKey([]int{2, 1}))
	assert.Equal(t, Record(row).Key(), key)
}

func TestRecordString(t *testing.T) {
	require.Equal(t, "(1,2,3)", Record{1, 2, 3}.String())
	assert.True(t, Record{1, 2}.Equal(Record{1, 2}))
	assert.False(t, Record{1, 2}.Equal(Record{1}))
}
