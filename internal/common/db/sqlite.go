package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const DriverSQLite = "sqlite"

const sqliteMemoryPath = ":memory:"

// OpenSQLite opens a SQLite database at path. ":memory:" yields a private
// in-memory database pinned to a single connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	var dsn string
	if path == sqliteMemoryPath {
		dsn = "file::memory:?" + pragmas
	} else {
		dsn = "file:" + filepath.Clean(path) + "?" + pragmas + "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if path == sqliteMemoryPath {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return sqlDB, nil
}
