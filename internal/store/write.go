package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sinc/internal/engine"
	"github.com/roach88/sinc/internal/ir"
	"github.com/roach88/sinc/internal/kb"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveKB writes the KB name, its numeration and every relation in one
// transaction. Existing rows are kept; saving the same KB twice is a no-op.
func (s *Store) SaveKB(ctx context.Context, k *kb.KB) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save kb: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, kv := range [][2]string{{"name", k.Name}, {"ir_version", ir.IRVersion}} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kb_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save kb: %s: %w", kv[0], err)
		}
	}
	if n := k.Numeration(); n != nil {
		if err := writeConstants(ctx, tx, n); err != nil {
			return fmt.Errorf("save kb: %w", err)
		}
	}
	for _, rel := range k.Relations() {
		if err := writeRelation(ctx, tx, rel); err != nil {
			return fmt.Errorf("save kb: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save kb: commit: %w", err)
	}
	return nil
}

// WriteConstants inserts every name of n under its id.
// Uses ON CONFLICT(id) DO NOTHING, so constants are append-only.
func (s *Store) WriteConstants(ctx context.Context, n *kb.Numeration) error {
	return writeConstants(ctx, s.db, n)
}

func writeConstants(ctx context.Context, db execer, n *kb.Numeration) error {
	for i, name := range n.Names() {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO constants (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO NOTHING
		`, i+1, name); err != nil {
			return fmt.Errorf("write constant %q: %w", name, err)
		}
	}
	return nil
}

// WriteRelation inserts the relation and all of its rows.
// Duplicate rows are silently ignored.
func (s *Store) WriteRelation(ctx context.Context, rel *kb.Relation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write relation: begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := writeRelation(ctx, tx, rel); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write relation %s: commit: %w", rel.Name, err)
	}
	return nil
}

func writeRelation(ctx context.Context, db execer, rel *kb.Relation) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO relations (id, name, arity) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rel.ID, rel.Name, rel.Arity()); err != nil {
		return fmt.Errorf("write relation %s: %w", rel.Name, err)
	}
	for _, row := range rel.Rows() {
		data, err := marshalRow(row)
		if err != nil {
			return fmt.Errorf("write relation %s: %w", rel.Name, err)
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO facts (relation_id, row) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, rel.ID, data); err != nil {
			return fmt.Errorf("write relation %s: fact %v: %w", rel.Name, row, err)
		}
	}
	return nil
}

// BeginRun records a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, info engine.RunInfo) error {
	cfg, err := marshalConfig(info.Config)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	rels, err := marshalStrings(info.Relations)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kb, config, relations, status)
		VALUES (?, ?, ?, ?, 'running')
	`, info.RunID, info.KB, cfg, rels); err != nil {
		return fmt.Errorf("begin run %s: %w", info.RunID, err)
	}
	return nil
}

// WriteRule stores a rule with its evidence and counterexamples
// atomically. Writing the same rule id twice is a no-op.
func (s *Store) WriteRule(ctx context.Context, rec engine.RuleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write rule: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO rules
		(id, run_id, seq, relation, rule, structure, pos, neg, all_ent, length, coverage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.RuleID,
		rec.RunID,
		rec.Seq,
		rec.Relation,
		rec.Rule,
		rec.Structure.String(),
		rec.Eval.Pos,
		rec.Eval.Neg,
		rec.Eval.All,
		rec.Eval.Len,
		rec.Coverage,
	)
	if err != nil {
		return fmt.Errorf("write rule: insert: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write rule: rows affected: %w", err)
	}
	if inserted == 0 {
		return tx.Commit()
	}

	for i, g := range rec.Evidence {
		id, err := ir.EvidenceID(rec.RuleID, g)
		if err != nil {
			return fmt.Errorf("write rule: evidence %d: %w", i, err)
		}
		data, err := marshalGrounding(g)
		if err != nil {
			return fmt.Errorf("write rule: evidence %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO evidence (id, rule_id, idx, grounding) VALUES (?, ?, ?, ?)
		`, id, rec.RuleID, i, data); err != nil {
			return fmt.Errorf("write rule: evidence %d: %w", i, err)
		}
	}
	for i, row := range rec.Counterexamples {
		data, err := marshalRow(row)
		if err != nil {
			return fmt.Errorf("write rule: counterexample %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO counterexamples (rule_id, idx, row) VALUES (?, ?, ?)
		`, rec.RuleID, i, data); err != nil {
			return fmt.Errorf("write rule: counterexample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write rule: commit: %w", err)
	}
	return nil
}

// FinishRun stores the final status and per-relation counts of a run.
func (s *Store) FinishRun(ctx context.Context, summary engine.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`,
		summary.Status, summary.RunID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", summary.RunID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", summary.RunID, err)
	} else if n == 0 {
		return fmt.Errorf("finish run %s: %w", summary.RunID, ErrRunNotFound)
	}
	for _, rs := range summary.Relations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_relations (run_id, relation, facts, entailed) VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, relation) DO UPDATE SET
				facts = excluded.facts, entailed = excluded.entailed
		`, summary.RunID, rs.Relation, rs.Facts, rs.Entailed); err != nil {
			return fmt.Errorf("finish run %s: relation %s: %w", summary.RunID, rs.Relation, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run: commit: %w", err)
	}
	return nil
}
