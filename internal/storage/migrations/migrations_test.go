package migrations

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentis-project/accounts/internal/common/db"
	"github.com/mentis-project/accounts/internal/common/logger"
)

func TestUp_SQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	log := logger.NewWithWriter(io.Discard, "test", "error")

	sqlDB, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer sqlDB.Close()

	version, err := Up(ctx, log, sqlDB, db.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	version, err = Up(ctx, log, sqlDB, db.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	current, err := Version(ctx, log, sqlDB, db.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)

	for _, table := range []string{"users", "revoked_tokens"} {
		var name string
		err := sqlDB.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestUp_UnknownDriver(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = Up(ctx, logger.NewWithWriter(io.Discard, "test", "error"), sqlDB, "mysql")
	assert.Error(t, err)
}
