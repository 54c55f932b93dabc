package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
	"github.com/roach88/sinc/internal/rule"
)

// RuleRecord is one mined rule with everything needed to reconstruct the
// facts it entails.
type RuleRecord struct {
	RunID           string       `json:"run_id"`
	Seq             int64        `json:"seq"`
	RuleID          string       `json:"rule_id"`
	Relation        string       `json:"relation"`
	Rule            string       `json:"rule"`
	Structure       ir.Structure `json:"structure"`
	Eval            rule.Eval    `json:"eval"`
	Coverage        float64      `json:"coverage"`
	Evidence        [][][]int    `json:"evidence,omitempty"`
	Counterexamples [][]int      `json:"counterexamples,omitempty"`
}

// RelationSummary reports the outcome of mining one relation.
type RelationSummary struct {
	Relation string       `json:"relation"`
	Facts    int          `json:"facts"`
	Entailed int          `json:"entailed"`
	Rules    []RuleRecord `json:"rules"`
}

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// RunSummary reports the outcome of a run.
type RunSummary struct {
	RunID     string            `json:"run_id"`
	Status    string            `json:"status"`
	Relations []RelationSummary `json:"relations"`
}

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID     string
	KB        string
	Config    Config
	Relations []string
}

// Sink receives every rule as soon as it is mined.
type Sink interface {
	WriteRule(ctx context.Context, rec RuleRecord) error
}

// RunSink is a Sink that also tracks run boundaries.
type RunSink interface {
	Sink
	BeginRun(ctx context.Context, info RunInfo) error
	FinishRun(ctx context.Context, summary RunSummary) error
}

// Miner searches a KB for compressing Horn rules.
//
// A Miner marks entailed facts in its KB's relations. It must not be used
// by more than one goroutine at a time.
type Miner struct {
	kb        *kb.KB
	cfg       Config
	metric    rule.Metric
	promising rule.Promising
	sink      Sink
	logger    *slog.Logger
	runIDs    RunIDGenerator
	quota     *RuleQuota
}

// Option configures a Miner.
type Option func(*Miner)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Miner) {
		m.logger = l
	}
}

// WithSink sets where mined rules are written.
func WithSink(s Sink) Option {
	return func(m *Miner) {
		m.sink = s
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(m *Miner) {
		m.runIDs = g
	}
}

// New validates cfg and returns a Miner over k.
func New(k *kb.KB, cfg Config, opts ...Option) (*Miner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metric, _ := rule.ParseMetric(cfg.Metric)
	m := &Miner{
		kb:        k,
		cfg:       cfg,
		metric:    metric,
		promising: rule.NewPromising(k, cfg.MinConstantCoverage),
		logger:    slog.Default(),
		runIDs:    UUIDv7Generator{},
		quota:     NewRuleQuota(cfg.MaxRules),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the validated configuration.
func (m *Miner) Config() Config { return m.cfg }

// Run mines every named relation, or all relations when none are named.
// Relations are mined in the given order; a failure stops the run.
func (m *Miner) Run(ctx context.Context, relations ...string) (RunSummary, error) {
	if len(relations) == 0 {
		relations = kb.RelationNames(m.kb)
	}
	for _, name := range relations {
		if _, ok := m.kb.RelationByName(name); !ok {
			return RunSummary{}, NewUnknownRelationError(name)
		}
	}

	summary := RunSummary{RunID: m.runIDs.Generate(), Status: StatusCompleted}
	m.quota = NewRuleQuota(m.cfg.MaxRules)
	runSink, tracked := m.sink.(RunSink)
	if tracked {
		info := RunInfo{RunID: summary.RunID, KB: m.kb.Name, Config: m.cfg, Relations: relations}
		if err := runSink.BeginRun(ctx, info); err != nil {
			return summary, fmt.Errorf("begin run: %w", err)
		}
	}
	m.logger.Info("run started", "run_id", summary.RunID, "relations", len(relations))

	var runErr error
	for _, name := range relations {
		rs, err := m.MineRelation(ctx, summary.RunID, name)
		summary.Relations = append(summary.Relations, rs)
		if err != nil {
			runErr = err
			summary.Status = StatusFailed
			if IsCancelled(err) {
				summary.Status = StatusCancelled
			}
			break
		}
	}

	if tracked {
		// The run is closed even after cancellation.
		if err := runSink.FinishRun(context.WithoutCancel(ctx), summary); err != nil && runErr == nil {
			runErr = fmt.Errorf("finish run: %w", err)
		}
	}
	m.logger.Info("run finished", "run_id", summary.RunID, "status", summary.Status, "rules", m.quota.Current())
	return summary, runErr
}

// MineRelation repeatedly finds the best rule for the named relation,
// until none is useful or every fact is entailed.
func (m *Miner) MineRelation(ctx context.Context, runID, name string) (RelationSummary, error) {
	rel, ok := m.kb.RelationByName(name)
	if !ok {
		return RelationSummary{Relation: name}, NewUnknownRelationError(name)
	}
	summary := RelationSummary{Relation: name, Facts: rel.Len()}
	strategy := m.strategyFor(rel)
	shared := rule.NewShared()
	m.logger.Info("mining relation", "relation", name, "facts", rel.Len(), "strategy", strategy.Name())

	for rel.TotalEntailed() < rel.Len() {
		shared = shared.NextSearch()
		r, findErr := m.findRule(ctx, rel, strategy, shared)
		if r != nil {
			rec, err := m.record(ctx, runID, r)
			if err != nil {
				summary.Entailed = rel.TotalEntailed()
				return summary, err
			}
			summary.Rules = append(summary.Rules, rec)
		}
		if findErr != nil {
			summary.Entailed = rel.TotalEntailed()
			return summary, findErr
		}
		if r == nil {
			break
		}
	}
	summary.Entailed = rel.TotalEntailed()
	m.logger.Info("relation done", "relation", name, "rules", len(summary.Rules),
		"entailed", summary.Entailed, "facts", summary.Facts)
	return summary, nil
}

// record marks the rule's entailments and hands the rule to the sink.
func (m *Miner) record(ctx context.Context, runID string, r *rule.CachedRule) (RuleRecord, error) {
	name := r.Head().Name
	seq, err := m.quota.Check(name)
	if err != nil {
		return RuleRecord{}, err
	}
	if m.cfg.Negatives != NegativesNone {
		r.ComputeExactEval()
	}
	coverage := r.Coverage()
	counterexamples := r.Counterexamples()
	ev := r.EvidenceAndMarkEntailment()
	r.Release()

	id, err := ir.RuleID(runID, r.Structure(), seq)
	if err != nil {
		return RuleRecord{}, fmt.Errorf("record rule: %w", err)
	}
	rec := RuleRecord{
		RunID:           runID,
		Seq:             seq,
		RuleID:          id,
		Relation:        name,
		Rule:            r.String(),
		Structure:       r.Structure().Clone(),
		Eval:            r.Eval(),
		Coverage:        coverage,
		Evidence:        ev.Groundings,
		Counterexamples: counterexamples,
	}
	m.logger.Info("rule found", "relation", name, "rule", rec.Rule,
		"coverage", fmt.Sprintf("%.2f%%", coverage*100), "eval", rec.Eval.String())
	if m.sink != nil {
		if err := m.sink.WriteRule(ctx, rec); err != nil {
			return rec, fmt.Errorf("write rule %s: %w", rec.Rule, err)
		}
	}
	return rec, nil
}

// strategyFor picks the negative counting strategy for rules of rel.
func (m *Miner) strategyFor(rel *kb.Relation) rule.Strategy {
	switch m.cfg.Negatives {
	case NegativesUniform:
		budget := int(float64(rel.Len())*m.cfg.BudgetFactor + 0.5)
		rng := kb.NewRand(m.cfg.Seed ^ uint64(rel.ID+1))
		neg := kb.UniformSampling(rel.IntTable, m.kb.TotalConstants(), budget, rng)
		samples := &kb.NegSamples{Table: neg}
		if m.cfg.Weighted {
			samples.Weights = kb.SampleWeights(rel.IntTable, neg, m.kb.TotalConstants())
		}
		return rule.Sampled(samples)
	case NegativesAdversarial:
		return rule.Adversarial(m.cfg.BudgetFactor, m.cfg.Weighted, m.cfg.Seed)
	default:
		return rule.Exact()
	}
}

// FindRule searches for the best useful rule for the named relation. It
// returns nil when no useful rule exists.
func (m *Miner) FindRule(ctx context.Context, name string) (*rule.CachedRule, error) {
	rel, ok := m.kb.RelationByName(name)
	if !ok {
		return nil, NewUnknownRelationError(name)
	}
	return m.findRule(ctx, rel, m.strategyFor(rel), rule.NewShared())
}

// probe is a candidate operation of one beam with its estimated score.
type probe struct {
	op    rule.Operation
	score float64
}

// findRule runs one beam search from the most general rule of rel.
// shared must hold no fingerprints; its tabu set may come from earlier
// searches of rel.
func (m *Miner) findRule(ctx context.Context, rel *kb.Relation, strategy rule.Strategy, shared *rule.Shared) (*rule.CachedRule, error) {
	start, err := rule.New(m.kb, rel.ID, shared,
		rule.WithMinFactCoverage(m.cfg.MinFactCoverage), rule.WithStrategy(strategy))
	if err != nil {
		return nil, fmt.Errorf("find rule: %w", err)
	}
	// Adversarial probes depend on the beam's own samples, so equal
	// fingerprints do not imply equal estimates.
	var memo rule.ProbeCache
	if m.cfg.Negatives != NegativesAdversarial {
		c, err := lru.New[string, rule.ProbeResult](m.cfg.ProbeCacheSize)
		if err != nil {
			return nil, fmt.Errorf("find rule: %w", err)
		}
		memo = c
	}

	beams := []*rule.CachedRule{start}
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return m.bestUseful(beams), NewCancelledError(rel.Name, err)
		}
		probes, err := m.probeBeams(ctx, beams, memo)
		if err != nil {
			return m.bestUseful(beams), NewCancelledError(rel.Name, err)
		}
		pool := m.observe(beams, probes)
		m.logger.Debug("search round", "relation", rel.Name, "round", round,
			"beams", len(beams), "pooled", pool.Len())

		var local *rule.CachedRule
		for i, b := range beams {
			if len(probes[i]) > 0 && probes[i][0].score > m.score(b) {
				continue
			}
			if local == nil || m.score(b) > m.score(local) {
				local = b
			}
		}
		best, ok := pool.best()
		if local != nil && (!ok || m.score(local) > best.score) {
			return m.useful(local), nil
		}
		if !ok {
			return nil, nil
		}
		if best.rule.Eval().CompressionRatio() >= m.cfg.StopCompressionRatio || best.rule.Eval().Neg == 0 {
			return m.useful(best.rule), nil
		}
		beams = pool.rules()
	}
}

// probeBeams indexes every beam and probes its candidates, one goroutine
// per beam. probes[i] is sorted by descending score.
func (m *Miner) probeBeams(ctx context.Context, beams []*rule.CachedRule, memo rule.ProbeCache) ([][]probe, error) {
	probes := make([][]probe, len(beams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Parallelism)
	for i, b := range beams {
		g.Go(func() error {
			b.UpdateCacheIndices()
			var out []probe
			for _, op := range b.Candidates(m.promising) {
				if err := gctx.Err(); err != nil {
					return err
				}
				res := b.Probe(op, memo)
				if res.Status == rule.Normal {
					out = append(out, probe{op: op, score: res.Eval.Value(m.metric)})
				}
			}
			slices.SortStableFunc(out, func(x, y probe) int { return cmp.Compare(y.score, x.score) })
			probes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return probes, nil
}

// observe specializes the best probed candidates across all beams, best
// first, and pools those that beat their beam.
func (m *Miner) observe(beams []*rule.CachedRule, probes [][]probe) *candidatePool {
	pool := newCandidatePool(m.cfg.Beamwidth)
	next := make([]int, len(probes))
	for range m.cfg.observations() {
		bi := -1
		for i := range probes {
			if next[i] >= len(probes[i]) {
				continue
			}
			if bi < 0 || probes[i][next[i]].score > probes[bi][next[bi]].score {
				bi = i
			}
		}
		if bi < 0 {
			break
		}
		p := probes[bi][next[bi]]
		next[bi]++
		child, st := beams[bi].Specialize(p.op)
		if st != rule.Normal {
			continue
		}
		if score := m.score(child); score > m.score(beams[bi]) {
			pool.offer(child, score)
		}
	}
	return pool
}

func (m *Miner) score(r *rule.CachedRule) float64 { return r.Eval().Value(m.metric) }

func (m *Miner) useful(r *rule.CachedRule) *rule.CachedRule {
	if r.Eval().Useful() {
		return r
	}
	return nil
}

// bestUseful returns the best scoring useful rule, or nil.
func (m *Miner) bestUseful(rules []*rule.CachedRule) *rule.CachedRule {
	var best *rule.CachedRule
	for _, r := range rules {
		if r.Eval().Useful() && (best == nil || m.score(r) > m.score(best)) {
			best = r
		}
	}
	return best
}
