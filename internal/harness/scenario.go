package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sinc/internal/engine"
	"github.com/roach88/sinc/internal/kb"
)

// Scenario defines one mining scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Facts lists facts inline, one "relation arg arg..." per entry.
	Facts []string `yaml:"facts,omitempty"`

	// FactsFile names a TSV fact file, relative to the scenario file.
	FactsFile string `yaml:"facts_file,omitempty"`

	// Config overrides the default mining parameters.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Mine lists the relations to mine. Empty mines every relation.
	Mine []string `yaml:"mine,omitempty"`

	// RunID fixes the run id. Defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// ExpectError is the MinerError code the run must fail with, if any.
	ExpectError string `yaml:"expect_error,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig holds the mining parameters a scenario sets. Unset fields
// keep their defaults.
type ScenarioConfig struct {
	Beamwidth            *int     `yaml:"beamwidth"`
	Metric               *string  `yaml:"metric"`
	MinFactCoverage      *float64 `yaml:"min_fact_coverage"`
	MinConstantCoverage  *float64 `yaml:"min_constant_coverage"`
	StopCompressionRatio *float64 `yaml:"stop_compression_ratio"`
	ObservationRatio     *float64 `yaml:"observation_ratio"`
	Parallelism          *int     `yaml:"parallelism"`
	Negatives            *string  `yaml:"negatives"`
	BudgetFactor         *float64 `yaml:"budget_factor"`
	Weighted             *bool    `yaml:"weighted"`
	Seed                 *uint64  `yaml:"seed"`
	MaxRules             *int     `yaml:"max_rules"`
}

// Apply overlays the set fields on cfg.
func (c ScenarioConfig) Apply(cfg engine.Config) engine.Config {
	if c.Beamwidth != nil {
		cfg.Beamwidth = *c.Beamwidth
	}
	if c.Metric != nil {
		cfg.Metric = *c.Metric
	}
	if c.MinFactCoverage != nil {
		cfg.MinFactCoverage = *c.MinFactCoverage
	}
	if c.MinConstantCoverage != nil {
		cfg.MinConstantCoverage = *c.MinConstantCoverage
	}
	if c.StopCompressionRatio != nil {
		cfg.StopCompressionRatio = *c.StopCompressionRatio
	}
	if c.ObservationRatio != nil {
		cfg.ObservationRatio = *c.ObservationRatio
	}
	if c.Parallelism != nil {
		cfg.Parallelism = *c.Parallelism
	}
	if c.Negatives != nil {
		cfg.Negatives = engine.NegativeMode(*c.Negatives)
	}
	if c.BudgetFactor != nil {
		cfg.BudgetFactor = *c.BudgetFactor
	}
	if c.Weighted != nil {
		cfg.Weighted = *c.Weighted
	}
	if c.Seed != nil {
		cfg.Seed = *c.Seed
	}
	if c.MaxRules != nil {
		cfg.MaxRules = *c.MaxRules
	}
	return cfg
}

// Assertion checks the rules or summaries of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Rule is the rule text, as printed by the miner (rule_found,
	// rule_absent).
	Rule string `yaml:"rule,omitempty"`

	// Relation restricts rule_count, and names the relation for entailed.
	Relation string `yaml:"relation,omitempty"`

	// Count is the expected number of rules or entailed facts.
	Count *int `yaml:"count,omitempty"`

	// Evidence is the expected number of groundings of a rule_found rule.
	Evidence *int `yaml:"evidence,omitempty"`

	// Status is the expected run status (run_status).
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertRuleFound  = "rule_found"
	AssertRuleAbsent = "rule_absent"
	AssertRuleCount  = "rule_count"
	AssertEntailed   = "entailed"
	AssertRunStatus  = "run_status"
)

// LoadScenario reads and parses a scenario YAML file. A relative
// facts_file is resolved against the scenario's directory.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario, resolving a relative
// facts_file against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.FactsFile != "" && !filepath.IsAbs(scenario.FactsFile) && basePath != "" {
		scenario.FactsFile = filepath.Join(basePath, scenario.FactsFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case len(s.Facts) == 0 && s.FactsFile == "":
		return fmt.Errorf("facts or facts_file is required")
	case len(s.Facts) > 0 && s.FactsFile != "":
		return fmt.Errorf("facts and facts_file are mutually exclusive")
	}
	if s.FactsFile != "" {
		if _, err := os.Stat(s.FactsFile); os.IsNotExist(err) {
			return fmt.Errorf("facts file not found: %s", s.FactsFile)
		}
	}
	for i, f := range s.Facts {
		if len(strings.Fields(f)) < 2 {
			return fmt.Errorf("facts[%d]: want a relation and at least one argument, got %q", i, f)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRuleFound, AssertRuleAbsent:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for %s", index, a.Type)
		}
	case AssertRuleCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rule_count", index)
		}
	case AssertEntailed:
		if a.Relation == "" {
			return fmt.Errorf("assertions[%d]: relation is required for entailed", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for entailed", index)
		}
	case AssertRunStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for run_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// BuildKB builds the scenario's KB, named after the scenario.
func (s *Scenario) BuildKB() (*kb.KB, error) {
	b := kb.NewBuilder()
	if s.FactsFile != "" {
		f, err := os.Open(s.FactsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open facts: %w", err)
		}
		defer f.Close()
		if err := b.ReadTSV(f); err != nil {
			return nil, fmt.Errorf("failed to read facts: %w", err)
		}
	}
	for i, line := range s.Facts {
		fields := strings.Fields(line)
		if err := b.Add(fields[0], fields[1:]...); err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
	}
	return b.Build(s.Name)
}
