package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sinc/internal/engine"
	"github.com/roach88/sinc/internal/store"
	"github.com/roach88/sinc/internal/testutil"
)

// Harness sits between the miner and the store, tracing every sink call
// before forwarding it.
type Harness struct {
	store  *store.Store
	result *Result
}

var _ engine.RunSink = (*Harness)(nil)

// BeginRun implements engine.RunSink.
func (h *Harness) BeginRun(ctx context.Context, info engine.RunInfo) error {
	if err := h.store.BeginRun(ctx, info); err != nil {
		return err
	}
	h.result.addTrace(TraceEvent{Type: EventBeginRun})
	return nil
}

// WriteRule implements engine.Sink.
func (h *Harness) WriteRule(ctx context.Context, rec engine.RuleRecord) error {
	if err := h.store.WriteRule(ctx, rec); err != nil {
		return err
	}
	h.result.addTrace(TraceEvent{Type: EventRule, Relation: rec.Relation, Rule: rec.Rule})
	return nil
}

// FinishRun implements engine.RunSink.
func (h *Harness) FinishRun(ctx context.Context, summary engine.RunSummary) error {
	if err := h.store.FinishRun(ctx, summary); err != nil {
		return err
	}
	h.result.addTrace(TraceEvent{Type: EventFinishRun, Status: summary.Status})
	return nil
}

// Run mines a scenario and evaluates its assertions.
//
// The KB is saved to a fresh in-memory store and loaded back before
// mining, and the rules are read back from the store afterwards. An error
// is returned only when the scenario cannot be set up; a run that fails
// unexpectedly, or an assertion that does not hold, fails the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	k, err := scenario.BuildKB()
	if err != nil {
		return nil, fmt.Errorf("failed to build KB: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.SaveKB(ctx, k); err != nil {
		return nil, fmt.Errorf("failed to save KB: %w", err)
	}
	loaded, err := st.LoadKB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load KB: %w", err)
	}

	result := NewResult()
	h := &Harness{
		store:  st,
		result: result,
	}

	cfg := scenario.Config.Apply(engine.DefaultConfig())
	m, err := engine.New(loaded, cfg,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithSink(h),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)))
	if err != nil {
		return nil, fmt.Errorf("failed to create miner: %w", err)
	}

	summary, mineErr := m.Run(ctx, scenario.Mine...)
	result.RunID = summary.RunID
	result.Status = summary.Status
	result.Relations = summary.Relations
	checkRunError(scenario.ExpectError, mineErr, result)

	if summary.RunID != "" {
		rules, err := st.ReadRules(ctx, summary.RunID)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules: %w", err)
		}
		result.Rules = rules
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkRunError compares the run's error with the code the scenario
// expects, if any.
func checkRunError(want string, err error, result *Result) {
	if want == "" {
		if err != nil {
			result.AddError(fmt.Sprintf("mining failed: %v", err))
		}
		return
	}
	var me *engine.MinerError
	switch {
	case err == nil:
		result.AddError(fmt.Sprintf("expected error %s, run succeeded", want))
	case !errors.As(err, &me):
		result.AddError(fmt.Sprintf("expected error %s, got %v", want, err))
	case string(me.Code) != want:
		result.AddError(fmt.Sprintf("expected error %s, got %s", want, me.Code))
	}
}
