package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sinc/internal/ir"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// Scores are rendered as text since canonical JSON has no floats; rule
// ids are left out so a snapshot reads without a hash calculator.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, ev := range result.Trace {
		obj := ir.IRObject{
			"type": ir.IRString(ev.Type),
			"seq":  ir.IRInt(ev.Seq),
		}
		if ev.Relation != "" {
			obj["relation"] = ir.IRString(ev.Relation)
		}
		if ev.Rule != "" {
			obj["rule"] = ir.IRString(ev.Rule)
		}
		if ev.Status != "" {
			obj["status"] = ir.IRString(ev.Status)
		}
		trace[i] = obj
	}

	rules := make(ir.IRArray, len(result.Rules))
	for i, rec := range result.Rules {
		rules[i] = ir.IRObject{
			"seq":      ir.IRInt(rec.Seq),
			"relation": ir.IRString(rec.Relation),
			"rule":     ir.IRString(rec.Rule),
			"eval":     ir.IRString(fmt.Sprintf("+%g/-%g", rec.Eval.Pos, rec.Eval.Neg)),
			"coverage": ir.IRString(fmt.Sprintf("%.4f", rec.Coverage)),
			"evidence": ir.IRInt(len(rec.Evidence)),
		}
	}

	relations := make(ir.IRArray, len(result.Relations))
	for i, rs := range result.Relations {
		relations[i] = ir.IRObject{
			"relation": ir.IRString(rs.Relation),
			"facts":    ir.IRInt(rs.Facts),
			"entailed": ir.IRInt(rs.Entailed),
		}
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(scenarioName),
		"run_id":        ir.IRString(result.RunID),
		"status":        ir.IRString(result.Status),
		"trace":         trace,
		"rules":         rules,
		"relations":     relations,
	})
}

// GoldenDir holds the golden files of the package's own scenarios, laid
// out as RunSuite expects.
const GoldenDir = "testdata/scenarios/golden"

// RunWithGolden runs a scenario and compares its snapshot with
// GoldenDir/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
