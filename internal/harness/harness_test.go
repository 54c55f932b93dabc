package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sinc/internal/engine"
)

func loadAndRun(t *testing.T, path string) *Result {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_FamilyInverse(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/family_inverse.yaml")
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "family-run", result.RunID)
	assert.Equal(t, engine.StatusCompleted, result.Status)
	assert.Equal(t, []TraceEvent{
		{Type: EventBeginRun, Seq: 1},
		{Type: EventRule, Relation: "child", Rule: "child(X0,X1):-parent(X1,X0)", Seq: 2},
		{Type: EventRule, Relation: "parent", Rule: "parent(X0,X1):-child(X1,X0)", Seq: 3},
		{Type: EventFinishRun, Status: engine.StatusCompleted, Seq: 4},
	}, result.Trace)
}

func TestRun_RulesComeFromStore(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/inverse_with_noise.yaml")
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Rules, 1)
	rec := result.Rules[0]
	assert.Equal(t, "test-run-default", rec.RunID)
	assert.Equal(t, int64(1), rec.Seq)
	assert.NotEmpty(t, rec.RuleID)
	assert.Len(t, rec.Evidence, 5)
	assert.Empty(t, rec.Counterexamples)
}

func TestRun_ExpectedErrors(t *testing.T) {
	for _, path := range []string{
		"testdata/scenarios/rule_quota.yaml",
		"testdata/scenarios/unknown_relation.yaml",
	} {
		t.Run(path, func(t *testing.T) {
			result := loadAndRun(t, path)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_UnexpectedError(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/unknown_relation.yaml")
	require.NoError(t, err)
	s.ExpectError = ""

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "mining failed: UNKNOWN_RELATION")
}

func TestRun_WrongExpectedError(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/rule_quota.yaml")
	require.NoError(t, err)
	s.ExpectError = string(engine.ErrCodeUnknownRelation)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, "expected error UNKNOWN_RELATION, got RULE_QUOTA_EXCEEDED")
}

func TestRun_MissingExpectedError(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/inverse_with_noise.yaml")
	require.NoError(t, err)
	s.ExpectError = string(engine.ErrCodeQuotaExceeded)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, "expected error RULE_QUOTA_EXCEEDED, run succeeded")
}

func TestRun_FailedAssertion(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/inverse_with_noise.yaml")
	require.NoError(t, err)
	six := 6
	s.Assertions = []Assertion{{Type: AssertEntailed, Relation: "p", Count: &six}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: 6 fact(s) of p entailed")
	assert.Contains(t, result.Errors[0], "Actual: 5 of 6")
}

func TestRun_InvalidConfig(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/inverse_with_noise.yaml")
	require.NoError(t, err)
	zero := 0
	s.Config.Beamwidth = &zero

	_, err = Run(s)
	require.Error(t, err)
	assert.True(t, engine.IsInvalidConfig(err))
}

func TestRun_Deterministic(t *testing.T) {
	first := loadAndRun(t, "testdata/scenarios/uniform_sampling.yaml")
	second := loadAndRun(t, "testdata/scenarios/uniform_sampling.yaml")
	require.True(t, first.Pass, "errors: %v", first.Errors)

	a, err := Snapshot("uniform_sampling", first)
	require.NoError(t, err)
	b, err := Snapshot("uniform_sampling", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
