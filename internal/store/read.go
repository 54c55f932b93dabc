package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sinc/internal/engine"
	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
	"github.com/roach88/sinc/internal/rule"
)

var (
	// ErrNoKB is returned when the database holds no knowledge base.
	ErrNoKB = errors.New("no knowledge base loaded")

	// ErrRunNotFound is returned for unknown run ids, or by LatestRun when
	// no run exists.
	ErrRunNotFound = errors.New("run not found")

	// ErrIncompatibleKB is returned when the KB was saved with another
	// rule format version.
	ErrIncompatibleKB = errors.New("incompatible knowledge base")
)

// RunRecord is a stored mining run.
type RunRecord struct {
	ID        string                   `json:"run_id"`
	KB        string                   `json:"kb"`
	Config    engine.Config            `json:"config"`
	Relations []string                 `json:"relations"`
	Status    string                   `json:"status"`
	Rules     int                      `json:"rules"`
	Summaries []engine.RelationSummary `json:"summaries,omitempty"`
}

// LoadKB rebuilds the stored KB. Relations keep their stored ids.
func (s *Store) LoadKB(ctx context.Context) (*kb.KB, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kb_meta WHERE key = 'name'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoKB
	}
	if err != nil {
		return nil, fmt.Errorf("load kb: %w", err)
	}

	var version string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kb_meta WHERE key = 'ir_version'`).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load kb: %w", err)
	}
	if version != "" && version != ir.IRVersion {
		return nil, fmt.Errorf("load kb: %w: stored %s, want %s", ErrIncompatibleKB, version, ir.IRVersion)
	}

	constants, err := s.readConstants(ctx)
	if err != nil {
		return nil, err
	}
	k := kb.New(name, constants)

	type relation struct {
		id    int
		name  string
		arity int
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, arity FROM relations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load kb: query relations: %w", err)
	}
	var rels []relation
	for rows.Next() {
		var r relation
		if err := rows.Scan(&r.id, &r.name, &r.arity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load kb: scan relation: %w", err)
		}
		rels = append(rels, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load kb: iterate relations: %w", err)
	}

	for _, r := range rels {
		facts, err := s.readFacts(ctx, r.id)
		if err != nil {
			return nil, err
		}
		added, err := k.AddRelation(r.name, r.arity, facts)
		if err != nil {
			return nil, fmt.Errorf("load kb: %w", err)
		}
		if added.ID != r.id {
			return nil, fmt.Errorf("load kb: relation %s stored as %d, loaded as %d", r.name, r.id, added.ID)
		}
	}
	return k, nil
}

// readConstants returns nil when the KB uses anonymous constants.
func (s *Store) readConstants(ctx context.Context) (*kb.Numeration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM constants ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query constants: %w", err)
	}
	defer rows.Close()

	var n *kb.Numeration
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan constant: %w", err)
		}
		if n == nil {
			n = kb.NewNumeration()
		}
		if got := n.Intern(name); got != id {
			return nil, fmt.Errorf("constant %q stored as %d, interned as %d", name, id, got)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate constants: %w", err)
	}
	return n, nil
}

func (s *Store) readFacts(ctx context.Context, relationID int) ([][]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row FROM facts WHERE relation_id = ? ORDER BY row COLLATE BINARY ASC
	`, relationID)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts [][]int
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		row, err := unmarshalRow(data)
		if err != nil {
			return nil, err
		}
		facts = append(facts, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// ReadRun retrieves a run by id, with its relation summaries.
// Returns ErrRunNotFound if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kb, config, relations, status,
			(SELECT COUNT(*) FROM rules WHERE run_id = runs.id)
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		return RunRecord{}, err
	}
	run.Summaries, err = s.readRunRelations(ctx, id)
	if err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (RunRecord, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("latest run: %w", err)
	}
	return s.ReadRun(ctx, id)
}

// ListRuns returns every run in the order they were started.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kb, config, relations, status,
			(SELECT COUNT(*) FROM rules WHERE run_id = runs.id)
		FROM runs ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var run RunRecord
	var cfg, rels string
	err := sc.Scan(&run.ID, &run.KB, &cfg, &rels, &run.Status, &run.Rules)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if run.Config, err = unmarshalConfig(cfg); err != nil {
		return RunRecord{}, err
	}
	if run.Relations, err = unmarshalStrings(rels); err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

func (s *Store) readRunRelations(ctx context.Context, runID string) ([]engine.RelationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relation, facts, entailed FROM run_relations
		WHERE run_id = ? ORDER BY relation COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run relations: %w", err)
	}
	defer rows.Close()

	var out []engine.RelationSummary
	for rows.Next() {
		var rs engine.RelationSummary
		if err := rows.Scan(&rs.Relation, &rs.Facts, &rs.Entailed); err != nil {
			return nil, fmt.Errorf("scan run relation: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run relations: %w", err)
	}
	return out, nil
}

// ReadRules returns every rule of a run ordered by seq, with evidence and
// counterexamples. Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadRules(ctx context.Context, runID string) ([]engine.RuleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, relation, rule, structure, pos, all_ent, length, coverage
		FROM rules
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	records := []engine.RuleRecord{}
	for rows.Next() {
		var rec engine.RuleRecord
		var structure string
		var pos, all float64
		var length int
		if err := rows.Scan(&rec.RuleID, &rec.RunID, &rec.Seq, &rec.Relation, &rec.Rule,
			&structure, &pos, &all, &length, &rec.Coverage); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if rec.Structure, err = ir.ParseStructure(structure, nil); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rule %s: %w", rec.RuleID, err)
		}
		rec.Eval = rule.NewEval(pos, all, length)
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	for i := range records {
		if records[i].Evidence, err = s.readEvidence(ctx, records[i].RuleID); err != nil {
			return nil, err
		}
		if records[i].Counterexamples, err = s.readCounterexamples(ctx, records[i].RuleID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) readEvidence(ctx context.Context, ruleID string) ([][][]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT grounding FROM evidence WHERE rule_id = ? ORDER BY idx ASC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var out [][][]int
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		g, err := unmarshalGrounding(data)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return out, nil
}

func (s *Store) readCounterexamples(ctx context.Context, ruleID string) ([][]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row FROM counterexamples WHERE rule_id = ? ORDER BY idx ASC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("query counterexamples: %w", err)
	}
	defer rows.Close()

	var out [][]int
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan counterexample: %w", err)
		}
		row, err := unmarshalRow(data)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counterexamples: %w", err)
	}
	return out, nil
}
