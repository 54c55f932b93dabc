package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sinc/internal/engine"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Inline(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/inverse_with_noise.yaml")
	require.NoError(t, err)

	assert.Equal(t, "inverse_with_noise", s.Name)
	assert.Len(t, s.Facts, 11)
	assert.Equal(t, []string{"p"}, s.Mine)
	require.Len(t, s.Assertions, 4)
	assert.Equal(t, AssertRuleFound, s.Assertions[0].Type)
	require.NotNil(t, s.Assertions[3].Count)
	assert.Equal(t, 5, *s.Assertions[3].Count)
}

func TestLoadScenario_FactsFileResolvesRelative(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/family_inverse.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "facts", "family.tsv"), s.FactsFile)

	k, err := s.BuildKB()
	require.NoError(t, err)
	assert.Equal(t, "family_inverse", k.Name)
	assert.Equal(t, 10, k.TotalRecords())
	assert.Equal(t, 6, k.TotalConstants())
}

func TestLoadScenario_Config(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/uniform_sampling.yaml")
	require.NoError(t, err)

	cfg := s.Config.Apply(engine.DefaultConfig())
	assert.Equal(t, engine.NegativesUniform, cfg.Negatives)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.Equal(t, engine.DefaultConfig().Beamwidth, cfg.Beamwidth)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"testdata/invalid/missing_assertions.yaml", "assertions list is required"},
		{"testdata/invalid/unknown_field.yaml", "field assertion not found"},
		{"testdata/invalid/missing_facts_file.yaml", "facts file not found"},
		{"testdata/invalid/does_not_exist.yaml", "failed to read scenario file"},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			_, err := LoadScenario(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateScenario(t *testing.T) {
	two := 2
	valid := func() Scenario {
		return Scenario{
			Name:        "s",
			Description: "d",
			Facts:       []string{"p a b"},
			Assertions:  []Assertion{{Type: AssertRuleCount, Count: &two}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no facts", func(s *Scenario) { s.Facts = nil }, "facts or facts_file is required"},
		{"both fact sources", func(s *Scenario) { s.FactsFile = "x.tsv" }, "mutually exclusive"},
		{"fact without args", func(s *Scenario) { s.Facts = []string{"p"} }, "facts[0]"},
		{"rule_found without rule", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertRuleFound}}
		}, "rule is required"},
		{"rule_count without count", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertRuleCount}}
		}, "count must be non-negative"},
		{"entailed without relation", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertEntailed, Count: &two}}
		}, "relation is required"},
		{"run_status without status", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertRunStatus}}
		}, "status is required"},
		{"unknown type", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: "trace_order"}}
		}, `unknown assertion type "trace_order"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := validateScenario(&s)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildKB_ArityMismatch(t *testing.T) {
	path := writeScenario(t, `
name: bad_arity
description: "p has two arities"
facts:
  - p a b
  - p a
assertions:
  - type: run_status
    status: completed
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = s.BuildKB()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "facts[1]")
}
