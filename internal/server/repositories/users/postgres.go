// Package users stores user records in PostgreSQL.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

const selectColumns = `id, username, email, full_name, bio, ai_summary, onboarding_completed, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts user with its caller-assigned ID. A username or email
// collision maps to common.ErrDuplicateIdentity.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (id, username, email, full_name, bio)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.Bio).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateIdentity
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE lower(username) = lower($1)`, username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.Bio, &u.AISummary,
		&u.OnboardingCompleted, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) CompleteOnboarding(ctx context.Context, id string, aiSummary string) error {
	query :=
		`UPDATE users SET onboarding_completed = TRUE, ai_summary = $2, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, aiSummary)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
