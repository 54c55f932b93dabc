package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sinc/internal/ir"
)

func fingerprint(t *testing.T, text string) *Fingerprint {
	t.Helper()
	s, err := ir.ParseStructure(text, nil)
	require.NoError(t, err)
	return NewFingerprint(s)
}

func TestFingerprintEquality(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"variable renaming", "r0(X0,X1):-r1(X1,X0)", "r0(X1,X0):-r1(X0,X1)", true},
		{"body order", "r0(X0,?):-r1(X0,?),r2(X0,?)", "r0(X0,?):-r2(X0,?),r1(X0,?)", true},
		{"swapped columns", "r0(X0,X1):-r1(X1,X0)", "r0(X0,X1):-r1(X0,X1)", false},
		{"constant", "r0(X0,3):-r1(X0,?)", "r0(X0,4):-r1(X0,?)", false},
		{"constant against empty", "r0(X0,3):-r1(X0,?)", "r0(X0,?):-r1(X0,?)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := fingerprint(t, tt.a), fingerprint(t, tt.b)
			assert.Equal(t, tt.want, a.Equal(b))
			assert.Equal(t, tt.want, a.Hash() == b.Hash())
		})
	}
}

func TestFingerprintGeneralization(t *testing.T) {
	tests := []struct {
		name            string
		general, others string
		want            bool
	}{
		{"one more binding", "r0(?,X0):-r1(X0,?)", "r0(X1,X0):-r1(X0,X1)", true},
		{"reverse", "r0(X1,X0):-r1(X0,X1)", "r0(?,X0):-r1(X0,?)", false},
		{"constant", "r0(X0,?):-r1(X0,?)", "r0(X0,?):-r1(X0,5)", true},
		{"extra predicate", "r0(X0,?):-r1(X0,?)", "r0(X0,?):-r1(X0,?),r2(X0,?)", true},
		{"head equality differs", "r0(X0,X1):-r1(X0,X1)", "r0(X0,X0):-r1(X0,X0)", false},
		{"different head", "r0(X0,?):-r1(X0,?)", "r2(X0,?):-r1(X0,?)", false},
		{"itself", "r0(X0,?):-r1(X0,?)", "r0(X0,?):-r1(X0,?)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fingerprint(t, tt.general).GeneralizationOf(fingerprint(t, tt.others)))
		})
	}
}

func TestSharedTabuMatchesSubCategories(t *testing.T) {
	shared := NewShared()
	general, err := ir.ParseStructure("r0(X0,?):-r1(X0,?)", nil)
	require.NoError(t, err)
	shared.AddTabu(general, NewFingerprint(general))

	specific, err := ir.ParseStructure("r0(X0,X1):-r2(X1,?),r1(X0,?)", nil)
	require.NoError(t, err)
	assert.True(t, shared.Tabu(specific, NewFingerprint(specific)))

	unrelated, err := ir.ParseStructure("r0(X0,?):-r2(X0,?)", nil)
	require.NoError(t, err)
	assert.False(t, shared.Tabu(unrelated, NewFingerprint(unrelated)))
}

func TestCategorySubsets(t *testing.T) {
	assert.Len(t, categorySubsets([]int{1, 1, 2}, 0), 1)
	assert.Len(t, categorySubsets([]int{1, 1, 2}, 1), 2)
	assert.Len(t, categorySubsets([]int{1, 1, 2}, 2), 2)
	assert.Len(t, categorySubsets([]int{1, 1, 2}, 3), 1)
}
