package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting applied on Open.
type pragma struct {
	name, value string
}

// pragmas keep one writer with WAL reads and enforce foreign keys.
var pragmas = []pragma{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations[v] upgrades a database from user_version v to v+1. The
// schema itself is always created at the latest version, so a migration
// only fixes up data written by older binaries.
var migrations = []func(*sql.DB) error{
	backfillRunRelations, // 0 -> 1
}

var currentSchemaVersion = len(migrations)

// Store persists a KB and the runs mined over it in SQLite. It implements
// engine.RunSink.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, which may be ":memory:".
// Opening an existing database applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := setup(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func setup(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return migrate(db)
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version != currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// backfillRunRelations fills run_relations for runs recorded before the
// table existed: one row per relation that has rules, with entailed
// counted from evidence.
func backfillRunRelations(db *sql.DB) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO run_relations (run_id, relation, facts, entailed)
		SELECT r.run_id, r.relation,
			COALESCE((SELECT COUNT(*) FROM facts f JOIN relations rel ON f.relation_id = rel.id
				WHERE rel.name = r.relation), 0),
			COUNT(e.id)
		FROM rules r LEFT JOIN evidence e ON e.rule_id = r.id
		GROUP BY r.run_id, r.relation
	`)
	return err
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB exposes the underlying handle for tests and ad hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

// verifyPragma reports whether a pragma reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("pragma %s = %q, want %q", name, value, expected)
	}
	return nil
}
