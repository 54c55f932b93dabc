package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sinc/internal/kb"
	"github.com/roach88/sinc/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database string
	Name     string
}

// RelationInfo describes one loaded relation.
type RelationInfo struct {
	Name  string `json:"name"`
	Arity int    `json:"arity"`
	Facts int    `json:"facts"`
}

// LoadSummary is the output of the load command.
type LoadSummary struct {
	KB        string         `json:"kb"`
	Constants int            `json:"constants"`
	Relations []RelationInfo `json:"relations"`
}

func (s LoadSummary) String() string {
	var sb strings.Builder
	facts := 0
	for _, r := range s.Relations {
		facts += r.Facts
	}
	fmt.Fprintf(&sb, "Loaded %s: %d facts, %d relations, %d constants", s.KB, facts, len(s.Relations), s.Constants)
	for _, r := range s.Relations {
		fmt.Fprintf(&sb, "\n  %s/%d  %d facts", r.Name, r.Arity, r.Facts)
	}
	return sb.String()
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <facts.tsv>",
		Short: "Load facts into a database",
		Long: `Load a TSV fact file into a SQLite database.

Each line is "relation<TAB>arg<TAB>arg...". Blank lines and lines starting
with '#' are skipped. Constants are interned in order of appearance.

Example:
  sinc load --db ./family.db ./family.tsv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "KB name (defaults to the file name)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runLoad(opts *LoadOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	f, err := os.Open(path)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "failed to open facts", err)
	}
	defer f.Close()

	b := kb.NewBuilder()
	if err := b.ReadTSV(f); err != nil {
		return fail(formatter, ExitFailure, ErrCodeReadFailed, "failed to read facts", err)
	}
	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	k, err := b.Build(name)
	if err != nil {
		return fail(formatter, ExitFailure, ErrCodeReadFailed, "failed to build KB", err)
	}
	formatter.VerboseLog("Read %d facts in %d relations from %s", k.TotalRecords(), len(k.Relations()), path)

	st, err := store.Open(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	if err := st.SaveKB(cmd.Context(), k); err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, "failed to save KB", err)
	}

	summary := LoadSummary{KB: k.Name, Constants: k.TotalConstants()}
	for _, rel := range k.Relations() {
		summary.Relations = append(summary.Relations, RelationInfo{Name: rel.Name, Arity: rel.Arity(), Facts: rel.Len()})
	}
	return formatter.Success(summary)
}
