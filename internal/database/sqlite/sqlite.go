package sqlite

import (
	"fmt"

	"storage-service/internal/database/schema"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const DriverName = "sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Open opens (or creates) a database file and applies the schema.
//
// SQLite allows a single writer; the pool is capped at one connection so
// transactions queue instead of failing with SQLITE_BUSY. Callers must not
// touch the *sqlx.DB while they hold an open transaction on it.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenInMemory returns a private in-memory database with the schema applied.
func OpenInMemory() (*sqlx.DB, error) {
	return Open(":memory:")
}

func ApplySchema(db *sqlx.DB) error {
	for i, statement := range schema.Statements() {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
