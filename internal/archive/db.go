// Package archive stores screening outcomes in SQLite as the audit trail.
package archive

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every connection to ":memory:" is a separate database
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			client_name TEXT NOT NULL,
			decision TEXT NOT NULL,
			route TEXT NOT NULL,
			category TEXT NOT NULL,
			risk_score INTEGER NOT NULL,
			affordability TEXT NOT NULL,
			expense_ratio REAL NOT NULL,
			structuring_count INTEGER NOT NULL,
			warning_count INTEGER NOT NULL,
			error TEXT NOT NULL,
			payload TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_decision ON outcomes(decision)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_client ON outcomes(client_name)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_completed_at ON outcomes(completed_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	return nil
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
