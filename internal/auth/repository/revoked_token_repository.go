package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/common/constants"
	"github.com/mentis-project/accounts/internal/common/db"
)

// RevokedTokenRepository is the revocation ledger. Revoke reports false when
// the token id was already present, so concurrent callers agree on a single
// winner.
type RevokedTokenRepository interface {
	Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type PgRevokedTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgRevokedTokenRepository(pool *pgxpool.Pool) *PgRevokedTokenRepository {
	return &PgRevokedTokenRepository{pool: pool}
}

func (r *PgRevokedTokenRepository) Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (jti) DO NOTHING`,
		entry.TokenID,
		entry.UserID,
		entry.ExpiresAt,
		entry.RevokedAt,
	)
	if err != nil {
		return false, db.HandleExecError(db.DriverPostgres, err, "revoke token", start)
	}
	db.MeasureQueryDuration(db.DriverPostgres, "revoke token", start)
	return tag.RowsAffected() == 1, nil
}

func (r *PgRevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS(
			SELECT 1 FROM revoked_tokens
			WHERE jti = $1 AND expires_at > NOW()
		)`,
		jti,
	)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, db.HandleQueryError(db.DriverPostgres, err, nil, "check revoked token", start)
	}
	db.MeasureQueryDuration(db.DriverPostgres, "check revoked token", start)
	return exists, nil
}

func (r *PgRevokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, db.HandleExecError(db.DriverPostgres, err, "delete expired revoked tokens", start)
	}
	db.MeasureQueryDuration(db.DriverPostgres, "delete expired revoked tokens", start)
	return tag.RowsAffected(), nil
}
