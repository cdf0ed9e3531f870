package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines the interface for user storage
type Repository interface {
	Create(ctx context.Context, email, passwordHash, fullName string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// PostgresRepository stores users in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("auth: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new user row.
func (r *PostgresRepository) Create(ctx context.Context, email, passwordHash, fullName string) (*User, error) {
	query := `
		INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	var (
		id        string
		createdAt time.Time
	)
	if err := r.db.QueryRow(ctx, query, email, passwordHash, fullName).Scan(&id, &createdAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: insert user failed: %w", err)
	}
	return &User{
		ID:        id,
		Email:     email,
		FullName:  fullName,
		CreatedAt: createdAt,
	}, nil
}

// GetByEmail fetches a user by email, including the password hash.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, full_name, created_at, last_login
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

// GetByID fetches a user by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password_hash, full_name, created_at, last_login
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

// TouchLastLogin stamps the last successful login time.
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("auth: update last_login failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.CreatedAt,
		&user.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: select user failed: %w", err)
	}
	return &user, nil
}
