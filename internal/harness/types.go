package harness

import "github.com/roach88/sinc/internal/engine"

// Trace event types, one per sink call.
const (
	EventBeginRun  = "begin_run"
	EventRule      = "rule"
	EventFinishRun = "finish_run"
)

// TraceEvent records one call the miner made on its sink.
type TraceEvent struct {
	Type     string `json:"type"`
	Relation string `json:"relation,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Status   string `json:"status,omitempty"`
	Seq      int64  `json:"seq"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when the run behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status,omitempty"`

	// Trace lists the sink calls in order.
	Trace []TraceEvent `json:"trace"`

	// Rules are the rules of the run as read back from the store.
	Rules []engine.RuleRecord `json:"rules"`

	// Relations summarizes each mined relation.
	Relations []engine.RelationSummary `json:"relations"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Rules:  []engine.RuleRecord{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends ev numbered after the previous event. Sink calls come
// from the miner's goroutine one at a time.
func (r *Result) addTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}

// ruleStrings lists the mined rules, for error messages.
func (r *Result) ruleStrings() []string {
	out := make([]string, len(r.Rules))
	for i, rec := range r.Rules {
		out[i] = rec.Rule
	}
	return out
}
