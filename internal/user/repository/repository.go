package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/mentis-project/accounts/internal/common/constants"
	"github.com/mentis-project/accounts/internal/common/db"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	"github.com/mentis-project/accounts/internal/user/domain"
)

// Repository is the credential store. Emails are unique; lookups expect the
// normalized form.
type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	UpdateProfile(ctx context.Context, user domain.User) error
	UpdatePassword(ctx context.Context, id domain.ID, passwordHash string, changedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id domain.ID, at time.Time) error
	Ping(ctx context.Context) error
}

const userColumns = `id, email, password_hash, first_name, last_name, phone_no,
	is_active, is_staff, is_superuser, date_joined, last_login, password_changed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u  domain.User
		id string
	)
	err := row.Scan(
		&id, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.PhoneNo,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.DateJoined, &u.LastLogin, &u.PasswordChangedAt,
	)
	u.ID = domain.ID(id)
	return u, err
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(user.ID), user.Email, user.PasswordHash, user.FirstName, user.LastName, user.PhoneNo,
		user.IsActive, user.IsStaff, user.IsSuperuser, user.DateJoined, user.LastLogin, user.PasswordChangedAt,
	)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration(db.DriverPostgres, "create user", start)
		return commonerrors.ErrEmailAlreadyExists
	}
	return db.HandleExecError(db.DriverPostgres, err, "create user", start)
}

func (r *PgRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return domain.User{}, db.HandleQueryError(db.DriverPostgres, err, commonerrors.ErrUserNotFound, "find user by email", start)
	}
	db.MeasureQueryDuration(db.DriverPostgres, "find user by email", start)
	return u, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id)))
	if err != nil {
		return domain.User{}, db.HandleQueryError(db.DriverPostgres, err, commonerrors.ErrUserNotFound, "find user by id", start)
	}
	db.MeasureQueryDuration(db.DriverPostgres, "find user by id", start)
	return u, nil
}

func (r *PgRepository) UpdateProfile(ctx context.Context, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE users SET email = $2, first_name = $3, last_name = $4, phone_no = $5 WHERE id = $1`,
		string(user.ID), user.Email, user.FirstName, user.LastName, user.PhoneNo,
	)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration(db.DriverPostgres, "update user profile", start)
		return commonerrors.ErrEmailAlreadyExists
	}
	if err != nil {
		return db.HandleExecError(db.DriverPostgres, err, "update user profile", start)
	}
	db.MeasureQueryDuration(db.DriverPostgres, "update user profile", start)
	if tag.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) UpdatePassword(ctx context.Context, id domain.ID, passwordHash string, changedAt time.Time) error {
	return r.updateOne(ctx, "update user password",
		`UPDATE users SET password_hash = $2, password_changed_at = $3 WHERE id = $1`,
		string(id), passwordHash, changedAt,
	)
}

func (r *PgRepository) UpdateLastLogin(ctx context.Context, id domain.ID, at time.Time) error {
	return r.updateOne(ctx, "update user last login",
		`UPDATE users SET last_login = $2 WHERE id = $1`,
		string(id), at,
	)
}

func (r *PgRepository) updateOne(ctx context.Context, operation, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return db.HandleExecError(db.DriverPostgres, err, operation, start)
	}
	db.MeasureQueryDuration(db.DriverPostgres, operation, start)
	if tag.RowsAffected() == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
