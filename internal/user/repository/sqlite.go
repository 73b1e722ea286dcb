package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/mentis-project/accounts/internal/common/constants"
	"github.com/mentis-project/accounts/internal/common/db"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	"github.com/mentis-project/accounts/internal/user/domain"
)

// SQLiteRepository stores timestamps as Unix nanoseconds.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(sqlDB *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: sqlDB}
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

func scanSQLiteUser(row rowScanner) (domain.User, error) {
	var (
		u                 domain.User
		id                string
		dateJoined        int64
		lastLogin         sql.NullInt64
		passwordChangedAt sql.NullInt64
	)
	err := row.Scan(
		&id, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.PhoneNo,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &dateJoined, &lastLogin, &passwordChangedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = domain.ID(id)
	u.DateJoined = time.Unix(0, dateJoined).UTC()
	u.LastLogin = fromNullNanos(lastLogin)
	u.PasswordChangedAt = fromNullNanos(passwordChangedAt)
	return u, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(user.ID), user.Email, user.PasswordHash, user.FirstName, user.LastName, user.PhoneNo,
		user.IsActive, user.IsStaff, user.IsSuperuser, toNanos(user.DateJoined),
		toNullNanos(user.LastLogin), toNullNanos(user.PasswordChangedAt),
	)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration(db.DriverSQLite, "create user", start)
		return commonerrors.ErrEmailAlreadyExists
	}
	return db.HandleExecError(db.DriverSQLite, err, "create user", start)
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, "find user by email", `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	return r.findOne(ctx, "find user by id", `SELECT `+userColumns+` FROM users WHERE id = ?`, string(id))
}

func (r *SQLiteRepository) findOne(ctx context.Context, operation, query string, arg any) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	u, err := scanSQLiteUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return domain.User{}, db.HandleQueryError(db.DriverSQLite, err, commonerrors.ErrUserNotFound, operation, start)
	}
	db.MeasureQueryDuration(db.DriverSQLite, operation, start)
	return u, nil
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, phone_no = ? WHERE id = ?`,
		user.Email, user.FirstName, user.LastName, user.PhoneNo, string(user.ID),
	)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration(db.DriverSQLite, "update user profile", start)
		return commonerrors.ErrEmailAlreadyExists
	}
	return r.expectOneRow(res, err, "update user profile", start)
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, id domain.ID, passwordHash string, changedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE users SET password_hash = ?, password_changed_at = ? WHERE id = ?`,
		passwordHash, toNanos(changedAt), string(id),
	)
	return r.expectOneRow(res, err, "update user password", start)
}

func (r *SQLiteRepository) UpdateLastLogin(ctx context.Context, id domain.ID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, toNanos(at), string(id))
	return r.expectOneRow(res, err, "update user last login", start)
}

func (r *SQLiteRepository) expectOneRow(res sql.Result, err error, operation string, start time.Time) error {
	if err != nil {
		return db.HandleExecError(db.DriverSQLite, err, operation, start)
	}
	db.MeasureQueryDuration(db.DriverSQLite, operation, start)
	n, err := res.RowsAffected()
	if err != nil {
		return db.HandleExecError(db.DriverSQLite, err, operation, start)
	}
	if n == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
