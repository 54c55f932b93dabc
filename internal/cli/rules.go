package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sinc/internal/engine"
	"github.com/roach88/sinc/internal/rule"
	"github.com/roach88/sinc/internal/store"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	Database string
	RunID    string
	Relation string
	Evidence bool
}

// RulesResult is the output of the rules command.
type RulesResult struct {
	Run   store.RunRecord     `json:"run"`
	Rules []engine.RuleRecord `json:"rules"`

	metric   rule.Metric
	evidence bool
}

func (r RulesResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s (%s, kb %s): %d rule(s)", r.Run.ID, r.Run.Status, r.Run.KB, len(r.Rules))
	for _, rec := range r.Rules {
		fmt.Fprintf(&sb, "\n%3d  %s", rec.Seq, formatRule(rec, r.metric))
		if !r.evidence {
			continue
		}
		for _, g := range rec.Evidence {
			fmt.Fprintf(&sb, "\n       evidence %v", g)
		}
		for _, row := range rec.Counterexamples {
			fmt.Fprintf(&sb, "\n       counterexample %v", row)
		}
	}
	return sb.String()
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rules of a mining run",
		Long: `List the rules recorded by a mining run, in the order they were found.

Without --run, the most recent run is shown.

Example:
  sinc rules --db ./family.db
  sinc rules --db ./family.db --run 0190a5c4-... --relation parent --evidence`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (defaults to the latest run)")
	cmd.Flags().StringVar(&opts.Relation, "relation", "", "only show rules for this relation")
	cmd.Flags().BoolVar(&opts.Evidence, "evidence", false, "show evidence and counterexamples")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	var run store.RunRecord
	if opts.RunID == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, opts.RunID)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		return fail(formatter, ExitCommandError, ErrCodeRunNotFound, "run not found", nil)
	}
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, "failed to read run", err)
	}

	rules, err := st.ReadRules(ctx, run.ID)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, "failed to read rules", err)
	}
	if opts.Relation != "" {
		filtered := rules[:0]
		for _, rec := range rules {
			if rec.Relation == opts.Relation {
				filtered = append(filtered, rec)
			}
		}
		rules = filtered
	}
	if !opts.Evidence {
		for i := range rules {
			rules[i].Evidence = nil
			rules[i].Counterexamples = nil
		}
	}

	metric, err := rule.ParseMetric(run.Config.Metric)
	if err != nil {
		metric = rule.CompressionRatio
	}
	formatter.VerboseLog("Run %s has %d rule(s)", run.ID, run.Rules)
	return formatter.SuccessForRun(run.ID, RulesResult{Run: run, Rules: rules, metric: metric, evidence: opts.Evidence})
}
