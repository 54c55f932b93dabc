package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sinc/internal/engine"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool          `json:"valid"`
	Config    engine.Config `json:"config"`
	FileCount int           `json:"file_count"`
}

func (r ValidationResult) String() string {
	c := r.Config
	var sb strings.Builder
	sb.WriteString("✓ Configuration valid\n")
	fmt.Fprintf(&sb, "  beamwidth=%d metric=%s negatives=%s parallelism=%d",
		c.Beamwidth, c.Metric, c.Negatives, c.Parallelism)
	return sb.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate a mining configuration",
		Long: `Validate the CUE mining configuration in a directory.

The configuration lives under the "mining" path of the CUE package. Missing
fields take their defaults; unknown fields and out of range values are errors.

Example:
  sinc validate ./config`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, err := LoadConfig(dir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	if err := result.Config.Validate(); err != nil {
		return outputLoadError(formatter, configError(err))
	}
	return formatter.Success(ValidationResult{Valid: true, Config: result.Config, FileCount: result.FileCount})
}

// outputLoadError reports a configuration error. Missing directories are
// command errors; bad content is a validation failure.
func outputLoadError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	exitCode := ExitFailure
	switch loadErr.Code {
	case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles:
		exitCode = ExitCommandError
	}
	if outErr := f.Error(loadErr.Code, loadErr.Message, nil); outErr != nil {
		return outErr
	}
	return &ExitError{Code: exitCode, Message: loadErr.Error(), Err: loadErr}
}
