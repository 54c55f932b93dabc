package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sinc/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// TestReport is the output of the test command.
type TestReport struct {
	*harness.SuiteResult
}

func (r TestReport) String() string {
	var sb strings.Builder
	for _, sr := range r.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&sb, "%s %s", mark, sr.Name)
		if sr.Golden == "updated" {
			sb.WriteString(" (golden updated)")
		}
		sb.WriteString("\n")
		for _, e := range sr.Errors {
			fmt.Fprintf(&sb, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
	}
	fmt.Fprintf(&sb, "\nTest Summary: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	if r.Failed == 0 && r.Total > 0 {
		sb.WriteString("\n✓ All scenarios passed")
	}
	return sb.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run mining scenarios",
		Long: `Run the YAML mining scenarios in a directory.

Each scenario mines its own in-memory database and checks its assertions.
A scenario with a golden file in golden/ must also reproduce it exactly.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  sinc test ./scenarios
  sinc test ./scenarios --filter "family-*"
  sinc test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	suite, err := harness.RunSuite(dir, harness.SuiteOptions{Filter: opts.Filter, Update: opts.Update})
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeScanError, "failed to find scenarios", err)
	}
	report := TestReport{SuiteResult: suite}

	if suite.Failed == 0 {
		return formatter.Success(report)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", suite.Failed)
	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(CLIResponse{
			Status: "error",
			Data:   report,
			Error:  &CLIError{Code: ErrCodeScenarioFailed, Message: msg},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), report.String())
	}
	return NewExitError(ExitFailure, msg)
}
