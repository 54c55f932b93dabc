package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sinc/internal/engine"
)

// ConfigPath is the CUE path holding mining parameters.
const ConfigPath = "mining"

// LoadResult contains the configuration read from a directory.
type LoadResult struct {
	Config    engine.Config
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred while loading a configuration.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// fileConfig mirrors engine.Config with every field optional, so values
// missing from the file keep their defaults.
type fileConfig struct {
	Beamwidth            *int     `json:"beamwidth"`
	Metric               *string  `json:"metric"`
	MinFactCoverage      *float64 `json:"min_fact_coverage"`
	MinConstantCoverage  *float64 `json:"min_constant_coverage"`
	StopCompressionRatio *float64 `json:"stop_compression_ratio"`
	ObservationRatio     *float64 `json:"observation_ratio"`
	Parallelism          *int     `json:"parallelism"`
	Negatives            *string  `json:"negatives"`
	BudgetFactor         *float64 `json:"budget_factor"`
	Weighted             *bool    `json:"weighted"`
	Seed                 *uint64  `json:"seed"`
	MaxRules             *int     `json:"max_rules"`
	ProbeCacheSize       *int     `json:"probe_cache_size"`
}

func (f fileConfig) apply(cfg *engine.Config) {
	set(&cfg.Beamwidth, f.Beamwidth)
	set(&cfg.Metric, f.Metric)
	set(&cfg.MinFactCoverage, f.MinFactCoverage)
	set(&cfg.MinConstantCoverage, f.MinConstantCoverage)
	set(&cfg.StopCompressionRatio, f.StopCompressionRatio)
	set(&cfg.ObservationRatio, f.ObservationRatio)
	set(&cfg.Parallelism, f.Parallelism)
	if f.Negatives != nil {
		cfg.Negatives = engine.NegativeMode(*f.Negatives)
	}
	set(&cfg.BudgetFactor, f.BudgetFactor)
	set(&cfg.Weighted, f.Weighted)
	set(&cfg.Seed, f.Seed)
	set(&cfg.MaxRules, f.MaxRules)
	set(&cfg.ProbeCacheSize, f.ProbeCacheSize)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// configFields lists the field names accepted under ConfigPath.
var configFields = func() map[string]bool {
	fields := make(map[string]bool)
	t := reflect.TypeFor[fileConfig]()
	for i := range t.NumField() {
		fields[t.Field(i).Tag.Get("json")] = true
	}
	return fields
}()

// LoadConfig reads the mining configuration from the CUE package in dir,
// on top of engine.DefaultConfig. A package without a mining value yields
// the defaults. The result is not validated.
func LoadConfig(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	result := &LoadResult{
		Config:    engine.DefaultConfig(),
		CUEValue:  value,
		FileCount: len(cueFiles),
	}
	mining := value.LookupPath(cue.ParsePath(ConfigPath))
	if !mining.Exists() {
		return result, nil
	}

	iter, err := mining.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("%s must be a struct: %v", ConfigPath, err), Pos: mining.Pos()}
	}
	var unknown []string
	for iter.Next() {
		if !configFields[iter.Label()] {
			unknown = append(unknown, iter.Label())
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &LoadError{
			Code:    ErrCodeUnknownField,
			Message: fmt.Sprintf("unknown %s field(s): %s", ConfigPath, strings.Join(unknown, ", ")),
			Pos:     mining.Pos(),
		}
	}

	var fc fileConfig
	if err := mining.Decode(&fc); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("decoding %s: %v", ConfigPath, err), Pos: mining.Pos()}
	}
	fc.apply(&result.Config)
	return result, nil
}

// LoadValidConfig is LoadConfig followed by Config.Validate.
func LoadValidConfig(dir string) (engine.Config, error) {
	result, err := LoadConfig(dir)
	if err != nil {
		return engine.Config{}, err
	}
	if err := result.Config.Validate(); err != nil {
		return engine.Config{}, configError(err)
	}
	return result.Config, nil
}

// configError converts an INVALID_CONFIG MinerError into a LoadError.
func configError(err error) *LoadError {
	var me *engine.MinerError
	if errors.As(err, &me) && me.Details["field"] != "" {
		return &LoadError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("%s: %s", me.Details["field"], me.Message)}
	}
	return &LoadError{Code: ErrCodeInvalidConfig, Message: err.Error()}
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeReadFailed  = "E007" // Facts file read error

	// Configuration errors
	ErrCodeInvalidConfig = "E101" // Field out of range or wrong type
	ErrCodeUnknownField  = "E102" // Field not recognised

	// Mining and storage errors
	ErrCodeDatabase        = "E201" // Database open/read/write failed
	ErrCodeUnknownRelation = "E202" // Relation not in the KB
	ErrCodeQuotaExceeded   = "E203" // Rule quota exceeded
	ErrCodeCancelled       = "E204" // Mining interrupted
	ErrCodeNoKB            = "E205" // Database holds no KB
	ErrCodeRunNotFound     = "E206" // No such run

	// Scenario errors
	ErrCodeScenarioFailed = "E301" // One or more scenarios failed
)

// MapMinerErrorToCode maps an engine error to a CLI error code.
func MapMinerErrorToCode(err error) string {
	switch {
	case engine.IsUnknownRelation(err):
		return ErrCodeUnknownRelation
	case engine.IsQuotaError(err):
		return ErrCodeQuotaExceeded
	case engine.IsCancelled(err):
		return ErrCodeCancelled
	case engine.IsInvalidConfig(err):
		return ErrCodeInvalidConfig
	default:
		return ErrCodeGeneric
	}
}
