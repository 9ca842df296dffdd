// Package sessions stores onboarding sessions in PostgreSQL.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

// StepCompleted mirrors the onboarding step name; completed sessions are
// neither reservations nor garbage.
const StepCompleted = "completed"

type Repository interface {
	Create(ctx context.Context, s *models.OnboardingSession) error
	Get(ctx context.Context, id string) (*models.OnboardingSession, error)
	Update(ctx context.Context, s *models.OnboardingSession) error
	// IdentityReserved reports whether another live, unfinished session
	// already claimed username or email.
	IdentityReserved(ctx context.Context, username, email, excludeID string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.OnboardingSession) error {
	query :=
		`INSERT INTO onboarding_sessions (id, step, username, email, state, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Step, dbx.NullIfEmpty(s.Username), dbx.NullIfEmpty(s.Email), s.State, s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.OnboardingSession, error) {
	query :=
		`SELECT id, step, username, email, state, created_at, updated_at, expires_at
		 FROM onboarding_sessions
		 WHERE id = $1`

	var (
		s               models.OnboardingSession
		username, email sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Step, &username, &email, &s.State, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.Username = username.String
	s.Email = email.String
	return &s, nil
}

func (r *PostgresRepository) Update(ctx context.Context, s *models.OnboardingSession) error {
	query :=
		`UPDATE onboarding_sessions
		 SET step = $2, username = $3, email = $4, state = $5, updated_at = $6
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		s.ID, s.Step, dbx.NullIfEmpty(s.Username), dbx.NullIfEmpty(s.Email), s.State, s.UpdatedAt)
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

func (r *PostgresRepository) IdentityReserved(ctx context.Context, username, email, excludeID string, now time.Time) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM onboarding_sessions
		   WHERE id <> $1 AND expires_at > $2 AND step <> $3
		     AND (lower(username) = lower($4) OR lower(email) = lower($5))
		 )`

	var reserved bool
	err := r.db.QueryRowContext(ctx, query, excludeID, now, StepCompleted, username, email).Scan(&reserved)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return reserved, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM onboarding_sessions WHERE expires_at <= $1 AND step <> $2`, now, StepCompleted)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
