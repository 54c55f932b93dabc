package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails. It lists the mined
// rules for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Rules    []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Rules) == 0 {
		buf.WriteString("\nNo rules mined.\n")
		return buf.String()
	}
	buf.WriteString("\nMined rules:\n")
	for i, r := range e.Rules {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, r)
	}
	return buf.String()
}

func assertRuleFound(result *Result, a Assertion) error {
	for _, rec := range result.Rules {
		if rec.Rule != a.Rule {
			continue
		}
		if a.Evidence != nil && len(rec.Evidence) != *a.Evidence {
			return &AssertionError{
				Type:     AssertRuleFound,
				Expected: fmt.Sprintf("%s with %d evidence grounding(s)", a.Rule, *a.Evidence),
				Actual:   fmt.Sprintf("%d grounding(s)", len(rec.Evidence)),
				Rules:    result.ruleStrings(),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertRuleFound,
		Expected: a.Rule,
		Actual:   "not mined",
		Rules:    result.ruleStrings(),
	}
}

func assertRuleAbsent(result *Result, a Assertion) error {
	for _, rec := range result.Rules {
		if rec.Rule == a.Rule {
			return &AssertionError{
				Type:     AssertRuleAbsent,
				Expected: fmt.Sprintf("%s not mined", a.Rule),
				Actual:   fmt.Sprintf("mined as rule %d", rec.Seq),
				Rules:    result.ruleStrings(),
			}
		}
	}
	return nil
}

func assertRuleCount(result *Result, a Assertion) error {
	count := 0
	for _, rec := range result.Rules {
		if a.Relation == "" || rec.Relation == a.Relation {
			count++
		}
	}
	if count == *a.Count {
		return nil
	}
	scope := "run"
	if a.Relation != "" {
		scope = a.Relation
	}
	return &AssertionError{
		Type:     AssertRuleCount,
		Expected: fmt.Sprintf("%d rule(s) for %s", *a.Count, scope),
		Actual:   fmt.Sprintf("%d rule(s)", count),
		Rules:    result.ruleStrings(),
	}
}

func assertEntailed(result *Result, a Assertion) error {
	for _, rs := range result.Relations {
		if rs.Relation != a.Relation {
			continue
		}
		if rs.Entailed == *a.Count {
			return nil
		}
		return &AssertionError{
			Type:     AssertEntailed,
			Expected: fmt.Sprintf("%d fact(s) of %s entailed", *a.Count, a.Relation),
			Actual:   fmt.Sprintf("%d of %d", rs.Entailed, rs.Facts),
			Rules:    result.ruleStrings(),
		}
	}
	return &AssertionError{
		Type:     AssertEntailed,
		Expected: fmt.Sprintf("%d fact(s) of %s entailed", *a.Count, a.Relation),
		Actual:   "relation not mined",
		Rules:    result.ruleStrings(),
	}
}

func assertRunStatus(result *Result, a Assertion) error {
	if result.Status == a.Status {
		return nil
	}
	return &AssertionError{
		Type:     AssertRunStatus,
		Expected: a.Status,
		Actual:   result.Status,
		Rules:    result.ruleStrings(),
	}
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRuleFound:
			err = assertRuleFound(result, a)
		case AssertRuleAbsent:
			err = assertRuleAbsent(result, a)
		case AssertRuleCount:
			err = assertRuleCount(result, a)
		case AssertEntailed:
			err = assertEntailed(result, a)
		case AssertRunStatus:
			err = assertRunStatus(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}
