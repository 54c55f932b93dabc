package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStructure(t *testing.T, text string) Structure {
	t.Helper()
	s, err := ParseStructure(text, nil)
	require.NoError(t, err)
	return s
}

func TestRuleIDDeterminism(t *testing.T) {
	s := testStructure(t, "r0(X0,?):-r1(X0,?)")

	id1, err := RuleID("run-1", s, 1)
	require.NoError(t, err)
	id2, err := RuleID("run-1", s.Clone(), 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestRuleIDChangesWithInput(t *testing.T) {
	s := testStructure(t, "r0(X0,?):-r1(X0,?)")
	other := testStructure(t, "r0(X0,?):-r1(?,X0)")

	base := MustRuleID("run-1", s, 1)
	assert.NotEqual(t, base, MustRuleID("run-2", s, 1))
	assert.NotEqual(t, base, MustRuleID("run-1", s, 2))
	assert.NotEqual(t, base, MustRuleID("run-1", other, 1))
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t,
		hashWithDomain(DomainRule, data),
		hashWithDomain(DomainEvidence, data))
}

func TestEvidenceID(t *testing.T) {
	g := [][]int{{1, 2}, {2, 3}}

	id1, err := EvidenceID("rule", g)
	require.NoError(t, err)
	id2, err := EvidenceID("rule", [][]int{{2, 3}, {1, 2}})
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2, "grounding order is significant")
}

func TestContentHash(t *testing.T) {
	h1, err := ContentHash(DomainFingerprint, IRArray{IRInt(1)})
	require.NoError(t, err)
	h2, err := ContentHash(DomainRule, IRArray{IRInt(1)})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
