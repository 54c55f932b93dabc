package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"kb_meta", "constants", "relations", "facts", "runs", "run_relations",
		"rules", "evidence", "counterexamples"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Error("Open() with a missing directory should fail")
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	_ = s.Close()
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchema_RulesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "rules")
	for _, col := range []string{"id", "run_id", "seq", "relation", "rule", "structure",
		"pos", "neg", "all_ent", "length", "coverage"} {
		if !slices.Contains(columns, col) {
			t.Errorf("rules table missing column %q, have %v", col, columns)
		}
	}
	if !slices.Contains(getTableIndexes(t, s.db, "rules"), "idx_rules_run") {
		t.Error("rules table missing idx_rules_run")
	}
}

func TestConstraint_FactsNeedRelation(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO facts (relation_id, row) VALUES (7, '[1]')`)
	if err == nil {
		t.Error("fact of an unknown relation should violate the foreign key")
	}
}

func TestConstraint_RuleSeqUniquePerRun(t *testing.T) {
	s := createTestStore(t)

	mustExec(t, s.db, `INSERT INTO runs (id, kb, config, relations) VALUES ('run-1', 'kb', '{}', '[]')`)
	insert := `INSERT INTO rules (id, run_id, seq, relation, rule, structure, pos, neg, all_ent, length, coverage)
		VALUES (?, 'run-1', 1, 'p', 'p(?):-', 'r0(?):-', 1, 0, 1, 0, 1)`
	mustExec(t, s.db, insert, "rule-a")
	if _, err := s.db.Exec(insert, "rule-b"); err == nil {
		t.Error("two rules with the same run and seq should be rejected")
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	mustExec(t, db, "PRAGMA user_version = 0")
	mustExec(t, db, `INSERT INTO relations (id, name, arity) VALUES (0, 'p', 1)`)
	mustExec(t, db, `INSERT INTO facts (relation_id, row) VALUES (0, '[1]'), (0, '[2]')`)
	mustExec(t, db, `INSERT INTO runs (id, kb, config, relations, status) VALUES ('old', 'kb', '{}', '["p"]', 'completed')`)
	mustExec(t, db, `INSERT INTO rules (id, run_id, seq, relation, rule, structure, pos, neg, all_ent, length, coverage)
		VALUES ('rule-1', 'old', 1, 'p', 'p(1):-', 'r0(1):-', 1, 0, 1, 1, 0.5)`)
	mustExec(t, db, `INSERT INTO evidence (id, rule_id, idx, grounding) VALUES ('ev-1', 'rule-1', 0, '[[1]]')`)
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var facts, entailed int
	err = s.db.QueryRow(`SELECT facts, entailed FROM run_relations WHERE run_id = 'old' AND relation = 'p'`).
		Scan(&facts, &entailed)
	if err != nil {
		t.Fatalf("run_relations not backfilled: %v", err)
	}
	if facts != 2 || entailed != 1 {
		t.Errorf("backfilled (facts, entailed) = (%d, %d), want (2, 1)", facts, entailed)
	}
}

// Helper functions

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
