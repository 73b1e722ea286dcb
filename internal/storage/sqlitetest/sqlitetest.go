// Package sqlitetest opens migrated, throwaway SQLite databases for tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentis-project/accounts/internal/common/db"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/storage/migrations"
)

func Open(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = migrations.Up(ctx, logger.NewWithWriter(io.Discard, "test", "error"), sqlDB, db.DriverSQLite)
	require.NoError(t, err)

	return sqlDB
}
