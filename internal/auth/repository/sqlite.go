package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/common/clock"
	"github.com/mentis-project/accounts/internal/common/constants"
	"github.com/mentis-project/accounts/internal/common/db"
)

// SQLiteRevokedTokenRepository stores timestamps as Unix nanoseconds and
// takes "now" from its clock.
type SQLiteRevokedTokenRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewSQLiteRevokedTokenRepository(sqlDB *sql.DB, clk clock.Clock) *SQLiteRevokedTokenRepository {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &SQLiteRevokedTokenRepository{db: sqlDB, clock: clk}
}

func (r *SQLiteRevokedTokenRepository) Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.db.ExecContext(
		ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (jti) DO NOTHING`,
		entry.TokenID,
		entry.UserID,
		entry.ExpiresAt.UTC().UnixNano(),
		entry.RevokedAt.UTC().UnixNano(),
	)
	if err != nil {
		return false, db.HandleExecError(db.DriverSQLite, err, "revoke token", start)
	}
	db.MeasureQueryDuration(db.DriverSQLite, "revoke token", start)

	n, err := res.RowsAffected()
	if err != nil {
		return false, db.HandleExecError(db.DriverSQLite, err, "revoke token", start)
	}
	return n == 1, nil
}

func (r *SQLiteRevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	var exists bool
	err := r.db.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = ? AND expires_at > ?)`,
		jti,
		r.clock.Now().UTC().UnixNano(),
	).Scan(&exists)
	if err != nil {
		return false, db.HandleQueryError(db.DriverSQLite, err, nil, "check revoked token", start)
	}
	db.MeasureQueryDuration(db.DriverSQLite, "check revoked token", start)
	return exists, nil
}

func (r *SQLiteRevokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, r.clock.Now().UTC().UnixNano())
	if err != nil {
		return 0, db.HandleExecError(db.DriverSQLite, err, "delete expired revoked tokens", start)
	}
	db.MeasureQueryDuration(db.DriverSQLite, "delete expired revoked tokens", start)
	return res.RowsAffected()
}
