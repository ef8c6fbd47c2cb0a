package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - initial entries table
// 2 - current: entries.id switched from AUTOINCREMENT to a plain rowid alias
//     so addFirst can assign negative ids ahead of the current minimum.
const currentSchemaVersion = 2

// Store provides durable, ordered storage for queue entries across every
// named queue sharing the database. It is safe for concurrent use; each
// operation runs in its own short transaction against a single-writer
// connection pool.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path (":memory:" is accepted
// for tests), applying pragmas and schema migrations. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("queue: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("exec %q: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental migrations tracked via PRAGMA
// user_version, following the same idiom used for the entries schema
// whichever version a pre-existing database file was created under.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
		version = 2
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	_ = version
	return nil
}

// migrateToV2 drops and recreates entries without AUTOINCREMENT so addFirst
// can use negative ids; pre-existing v1 rows are abandoned, matching the
// source system's migration (schema changes are not worth reconciling old
// rows against). runMigrations calls it only for databases below version 2;
// a fresh database (user_version 0) already has the v2 shape from schema.sql
// and is left untouched, while any other version has its table recreated.
func migrateToV2(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("migrate to v2: get user_version: %w", err)
	}
	if version == 0 {
		// Fresh database: schema.sql already created the v2 shape.
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v2: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS entries`); err != nil {
		return fmt.Errorf("migrate to v2: drop old table: %w", err)
	}
	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("migrate to v2: recreate: %w", err)
	}

	return tx.Commit()
}

// verifyPragma checks a pragma's value. Used only from store tests.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
