package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sinc/internal/engine"
	"github.com/roach88/sinc/internal/rule"
	"github.com/roach88/sinc/internal/store"
)

// MineOptions holds flags for the mine command.
type MineOptions struct {
	*RootOptions
	Database  string
	ConfigDir string
	Relations []string

	Beamwidth   int
	Metric      string
	Negatives   string
	Parallelism int
	Seed        uint64
	MaxRules    int

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// MineResult is the output of the mine command.
type MineResult struct {
	engine.RunSummary
	Metric rule.Metric `json:"-"`
}

func (r MineResult) String() string {
	var sb strings.Builder
	rules := 0
	for _, rs := range r.Relations {
		rules += len(rs.Rules)
	}
	fmt.Fprintf(&sb, "Run %s %s: %d rule(s)", r.RunID, r.Status, rules)
	for _, rs := range r.Relations {
		fmt.Fprintf(&sb, "\n%s: %d/%d facts entailed", rs.Relation, rs.Entailed, rs.Facts)
		for _, rec := range rs.Rules {
			sb.WriteString("\n  ")
			sb.WriteString(formatRule(rec, r.Metric))
		}
	}
	return sb.String()
}

// formatRule renders a rule with its score and entailment counts.
func formatRule(rec engine.RuleRecord, m rule.Metric) string {
	return fmt.Sprintf("%s  (%s=%.4f, +%g/-%g, coverage %.2f%%)",
		rec.Rule, m.Symbol(), rec.Eval.Value(m), rec.Eval.Pos, rec.Eval.Neg, rec.Coverage*100)
}

// NewMineCommand creates the mine command.
func NewMineCommand(rootOpts *RootOptions) *cobra.Command {
	return newMineCommand(&MineOptions{RootOptions: rootOpts})
}

func newMineCommand(opts *MineOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Mine rules from a loaded KB",
		Long: `Mine Horn rules for the relations of the KB stored in a database.

Every relation is mined unless --relation is given. Parameters come from the
CUE configuration in --config, then from flags. Rules are stored in the
database as they are found; an interrupted run keeps the rules found so far.

Example:
  sinc mine --db ./family.db
  sinc mine --db ./family.db --config ./config --relation parent --beamwidth 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.ConfigDir, "config", "", "directory of the CUE mining configuration")
	cmd.Flags().StringSliceVarP(&opts.Relations, "relation", "r", nil, "relation to mine (repeatable)")
	cmd.Flags().IntVar(&opts.Beamwidth, "beamwidth", 0, "beam width")
	cmd.Flags().StringVar(&opts.Metric, "metric", "", "evaluation metric (τ|δ|h)")
	cmd.Flags().StringVar(&opts.Negatives, "negatives", "", "negative sampling (none|uniform|adversarial)")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", 0, "beams estimated concurrently")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "sampling seed")
	cmd.Flags().IntVar(&opts.MaxRules, "max-rules", 0, "stop after this many rules (0 = unlimited)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// mineConfig resolves the configuration: defaults, then the CUE file,
// then explicitly set flags.
func mineConfig(opts *MineOptions, cmd *cobra.Command) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if opts.ConfigDir != "" {
		result, err := LoadConfig(opts.ConfigDir)
		if err != nil {
			return cfg, err
		}
		cfg = result.Config
	}
	flags := cmd.Flags()
	if flags.Changed("beamwidth") {
		cfg.Beamwidth = opts.Beamwidth
	}
	if flags.Changed("metric") {
		cfg.Metric = opts.Metric
	}
	if flags.Changed("negatives") {
		cfg.Negatives = engine.NegativeMode(opts.Negatives)
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = opts.Parallelism
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.Seed
	}
	if flags.Changed("max-rules") {
		cfg.MaxRules = opts.MaxRules
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configError(err)
	}
	return cfg, nil
}

func runMine(opts *MineOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := mineConfig(opts, cmd)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	metric, _ := rule.ParseMetric(cfg.Metric)

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k, err := st.LoadKB(ctx)
	if errors.Is(err, store.ErrNoKB) {
		return fail(formatter, ExitCommandError, ErrCodeNoKB, "no KB in database, run sinc load first", nil)
	}
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, "failed to load KB", err)
	}
	logger.Info("kb loaded", "kb", k.Name, "relations", len(k.Relations()), "facts", k.TotalRecords())

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	m, err := engine.New(k, cfg,
		engine.WithLogger(logger),
		engine.WithSink(st),
		engine.WithRunIDGenerator(runIDs))
	if err != nil {
		return fail(formatter, ExitFailure, MapMinerErrorToCode(err), "invalid configuration", err)
	}

	summary, err := m.Run(ctx, opts.Relations...)
	if err != nil {
		if engine.IsCancelled(err) && errors.Is(err, context.Canceled) {
			logger.Info("mining interrupted", "run_id", summary.RunID)
		}
		exitCode := ExitFailure
		if engine.IsUnknownRelation(err) {
			exitCode = ExitCommandError
		}
		return fail(formatter, exitCode, MapMinerErrorToCode(err), "mining failed", err)
	}
	return formatter.SuccessForRun(summary.RunID, MineResult{RunSummary: summary, Metric: metric})
}
