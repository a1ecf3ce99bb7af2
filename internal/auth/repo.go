package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veresiye/defter/internal/platform/db"
	"github.com/veresiye/defter/internal/platform/httpx"
)

var (
	// ErrUserNotFound is returned when no user matches.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrUsernameTaken is returned when creating a user with an existing username.
	ErrUsernameTaken = fmt.Errorf("%w: username already exists", httpx.ErrDuplicate)
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, is_staff, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsStaff, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// FindByUsername fetches a user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM admin_users WHERE username = $1`, username))
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM admin_users WHERE id = $1`, id))
}

// CreateUser inserts a user with an already hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, user User) (User, error) {
	out, err := scanUser(r.pool.QueryRow(ctx, `INSERT INTO admin_users (username, email, password_hash, is_staff, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+userColumns, user.Username, user.Email, user.PasswordHash, user.IsStaff, user.IsActive))
	if db.IsUniqueViolation(err, "") {
		return User{}, ErrUsernameTaken
	}
	return out, err
}

var _ Repository = (*PGRepository)(nil)
