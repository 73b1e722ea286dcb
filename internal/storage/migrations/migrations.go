package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/mentis-project/accounts/internal/common/db"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/observability/metrics"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

type gooseLogger struct {
	log *logger.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Infof("migrations: "+format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Errorf("migrations: "+format, v...)
}

func dialectFor(driver string) (dialect, dir string, err error) {
	switch driver {
	case db.DriverPostgres:
		return "pgx", "postgres", nil
	case db.DriverSQLite:
		return "sqlite3", "sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported migration driver %q", driver)
	}
}

func prepare(log *logger.Logger, driver string) (string, error) {
	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return "", err
	}
	goose.SetBaseFS(files)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	return dir, nil
}

// Up applies every pending migration for driver and returns the resulting
// schema version.
func Up(ctx context.Context, log *logger.Logger, sqlDB *sql.DB, driver string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := prepare(log, driver)
	if err != nil {
		return 0, err
	}

	before, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	after, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if after > before {
		metrics.DBMigrationsApplied.WithLabelValues(driver).Add(float64(after - before))
	}
	return after, nil
}

// Version reports the current schema version without applying anything.
func Version(ctx context.Context, log *logger.Logger, sqlDB *sql.DB, driver string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if _, err := prepare(log, driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, sqlDB)
}
