// AngelaMos | 2026
// repository.go

package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByUsernameForUpdate locks the row until the surrounding
	// transaction ends.
	GetByUsernameForUpdate(ctx context.Context, username string) (*User, error)
	GetByResetTokenForUpdate(ctx context.Context, tokenHash string) (*User, error)
	RecordFailedLogin(ctx context.Context, id string) (int, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(
		ctx context.Context,
		id, tokenHash string,
		expiry time.Time,
	) error
	CompleteReset(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, username string, active bool) (*User, error)
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	Count(ctx context.Context) (int, error)
}

// Store is a Repository that can also run a unit of work in which every
// Repository call shares one transaction.
type Store interface {
	Repository
	Atomically(ctx context.Context, fn func(repo Repository) error) error
}

const userColumns = `
	id, username, email, password_hash, role, is_active, failed_attempts,
	last_login, reset_token_hash, reset_token_expiry, created_at, updated_at`

type repository struct {
	db core.DBTX
}

type store struct {
	repository
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) Store {
	return &store{repository: repository{db: db}, db: db}
}

func (s *store) Atomically(
	ctx context.Context,
	fn func(repo Repository) error,
) error {
	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return core.StoreError("create user", err)
	}

	return nil
}

func (r *repository) getOne(
	ctx context.Context,
	op, where string,
	arg any,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	var user User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrUserNotFound)
	}
	if err != nil {
		return nil, core.StoreError(op, err)
	}

	return &user, nil
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return r.getOne(ctx, "get user", "username = $1", username)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	return r.getOne(ctx, "get user by email", "email = $1", email)
}

func (r *repository) GetByUsernameForUpdate(
	ctx context.Context,
	username string,
) (*User, error) {
	return r.getOne(ctx, "lock user", "username = $1 FOR UPDATE", username)
}

func (r *repository) GetByResetTokenForUpdate(
	ctx context.Context,
	tokenHash string,
) (*User, error) {
	return r.getOne(
		ctx,
		"lock user by reset token",
		"reset_token_hash = $1 FOR UPDATE",
		tokenHash,
	)
}

func (r *repository) RecordFailedLogin(
	ctx context.Context,
	id string,
) (int, error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts`

	var attempts int
	err := r.db.GetContext(ctx, &attempts, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record failed login: %w", core.ErrUserNotFound)
	}
	if err != nil {
		return 0, core.StoreError("record failed login", err)
	}

	return attempts, nil
}

func (r *repository) RecordLogin(
	ctx context.Context,
	id string,
	at time.Time,
) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, last_login = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "record login", query, id, at)
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) SetResetToken(
	ctx context.Context,
	id, tokenHash string,
	expiry time.Time,
) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expiry = $3, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set reset token", query, id, tokenHash, expiry)
}

func (r *repository) CompleteReset(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_token_expiry = NULL,
		    failed_attempts = 0,
		    updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "complete reset", query, id, passwordHash)
}

func (r *repository) SetActive(
	ctx context.Context,
	username string,
	active bool,
) (*User, error) {
	query := `
		UPDATE users
		SET is_active = $2,
		    failed_attempts = CASE WHEN $2 THEN 0 ELSE failed_attempts END,
		    updated_at = NOW()
		WHERE username = $1
		RETURNING ` + userColumns

	var user User
	err := r.db.GetContext(ctx, &user, query, username, active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set active: %w", core.ErrUserNotFound)
	}
	if err != nil {
		return nil, core.StoreError("set active", err)
	}

	return &user, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(username ILIKE $%d OR email ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := "SELECT COUNT(*) FROM users WHERE " + whereClause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, core.StoreError("count users", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, core.StoreError("list users", err)
	}

	return users, total, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, core.StoreError("count users", err)
	}
	return n, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.StoreError(op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return core.StoreError(op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrUserNotFound)
	}

	return nil
}
