package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
	"github.com/roach88/sinc/internal/rule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// p(X0,X1) :- q(X1,X0) entails every p fact but (9,9) and nothing else.
func inverseKB(t *testing.T) *kb.KB {
	t.Helper()
	k := kb.New("inverse", nil)
	_, err := k.AddRelation("p", 2, [][]int{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {9, 9}})
	require.NoError(t, err)
	_, err = k.AddRelation("q", 2, [][]int{{2, 1}, {3, 2}, {4, 3}, {5, 4}, {6, 5}})
	require.NoError(t, err)
	return k
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	begun    []RunInfo
	rules    []RuleRecord
	finished []RunSummary
}

func (s *recordingSink) BeginRun(_ context.Context, info RunInfo) error {
	s.begun = append(s.begun, info)
	return nil
}

func (s *recordingSink) WriteRule(_ context.Context, rec RuleRecord) error {
	s.rules = append(s.rules, rec)
	return nil
}

func (s *recordingSink) FinishRun(_ context.Context, summary RunSummary) error {
	s.finished = append(s.finished, summary)
	return nil
}

func newMiner(t *testing.T, k *kb.KB, cfg Config, opts ...Option) *Miner {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithRunIDGenerator(NewFixedGenerator("run-1", "run-2"))}, opts...)
	m, err := New(k, cfg, opts...)
	require.NoError(t, err)
	return m
}

func TestFindRuleInverse(t *testing.T) {
	m := newMiner(t, inverseKB(t), DefaultConfig())

	r, err := m.FindRule(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, r)

	target, err := ir.ParseStructure("r0(X0,X1):-r1(X1,X0)", nil)
	require.NoError(t, err)
	assert.True(t, rule.NewFingerprint(target).Equal(r.Fingerprint()), "found %s", r)
	assert.Equal(t, "p(X0,X1):-q(X1,X0)", r.String())
	assert.Equal(t, rule.NewEval(5, 5, 2), r.Eval())
}

func TestFindRuleUnknownRelation(t *testing.T) {
	m := newMiner(t, inverseKB(t), DefaultConfig())
	_, err := m.FindRule(context.Background(), "nope")
	assert.True(t, IsUnknownRelation(err))
}

func TestFindRuleCancelled(t *testing.T) {
	m := newMiner(t, inverseKB(t), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := m.FindRule(ctx, "p")
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r, "the start rule is not useful")
}

func TestRunRecordsRules(t *testing.T) {
	k := inverseKB(t)
	sink := &recordingSink{}
	m := newMiner(t, k, DefaultConfig(), WithSink(sink))

	summary, err := m.Run(context.Background(), "p")
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, StatusCompleted, summary.Status)
	require.Len(t, summary.Relations, 1)
	rs := summary.Relations[0]
	assert.Equal(t, "p", rs.Relation)
	assert.Equal(t, 6, rs.Facts)
	assert.Equal(t, 5, rs.Entailed)
	require.Len(t, rs.Rules, 1)

	rec := rs.Rules[0]
	assert.Equal(t, "p(X0,X1):-q(X1,X0)", rec.Rule)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, ir.MustRuleID("run-1", rec.Structure, 1), rec.RuleID)
	assert.Len(t, rec.Evidence, 5)
	assert.Empty(t, rec.Counterexamples)
	assert.InDelta(t, 5.0/6, rec.Coverage, 1e-9)

	require.Len(t, sink.begun, 1)
	assert.Equal(t, []string{"p"}, sink.begun[0].Relations)
	assert.Equal(t, []RuleRecord{rec}, sink.rules)
	require.Len(t, sink.finished, 1)
	assert.Equal(t, StatusCompleted, sink.finished[0].Status)

	rel, _ := k.RelationByName("p")
	assert.True(t, rel.IsEntailed([]int{1, 2}))
	assert.False(t, rel.IsEntailed([]int{9, 9}))
}

func TestRunUnknownRelation(t *testing.T) {
	sink := &recordingSink{}
	m := newMiner(t, inverseKB(t), DefaultConfig(), WithSink(sink))

	_, err := m.Run(context.Background(), "p", "missing")
	assert.True(t, IsUnknownRelation(err))
	assert.Empty(t, sink.begun, "nothing starts when a relation is unknown")
}

func TestRunQuota(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRules = 1
	k := kb.New("twins", nil)
	_, err := k.AddRelation("p", 2, [][]int{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}})
	require.NoError(t, err)
	_, err = k.AddRelation("q", 2, [][]int{{2, 1}, {3, 2}, {4, 3}, {5, 4}, {6, 5}})
	require.NoError(t, err)

	sink := &recordingSink{}
	m := newMiner(t, k, cfg, WithSink(sink))
	summary, err := m.Run(context.Background(), "p", "q")
	assert.True(t, IsQuotaError(err), "got %v", err)
	assert.Equal(t, StatusFailed, summary.Status)
	assert.Len(t, sink.rules, 1)
	require.Len(t, sink.finished, 1)
	assert.Equal(t, StatusFailed, sink.finished[0].Status)
}

func TestSampledRunsAreDeterministic(t *testing.T) {
	for _, mode := range []NegativeMode{NegativesUniform, NegativesAdversarial} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Negatives = mode
			cfg.Seed = 7
			cfg.Parallelism = 4

			rules := func() []string {
				m := newMiner(t, inverseKB(t), cfg)
				summary, err := m.Run(context.Background(), "p")
				require.NoError(t, err)
				var out []string
				for _, rec := range summary.Relations[0].Rules {
					out = append(out, rec.Rule)
					assert.Positive(t, rec.Eval.Pos)
				}
				return out
			}
			assert.Equal(t, rules(), rules())
		})
	}
}
