// Package subscriptions stores newsletter subscriptions and their delivery
// log in PostgreSQL.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

const selectColumns = `id, user_id, subscriber_email, subscriber_name, tier, frequency, status, code, last_sent, created_at, updated_at`

type Repository interface {
	// Create fails with common.ErrDuplicateSubscription when the address
	// already holds an active subscription to the same audience.
	Create(ctx context.Context, s *models.Subscription) error
	GetByCode(ctx context.Context, code string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error)
	// ListDue returns active subscriptions of frequency, least recently
	// sent first.
	ListDue(ctx context.Context, frequency string) ([]*models.Subscription, error)
	SetStatus(ctx context.Context, code, status string, at time.Time) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	LogDelivery(ctx context.Context, d *models.Delivery) error
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Subscription) error {
	query :=
		`INSERT INTO newsletter_subscriptions (id, user_id, subscriber_email, subscriber_name, tier, frequency, status, code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.UserID, s.SubscriberEmail, s.SubscriberName, string(s.Tier), s.Frequency, s.Status, s.Code).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateSubscription
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*models.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM newsletter_subscriptions WHERE code = $1`, code)
	s, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	return r.list(ctx,
		`SELECT `+selectColumns+` FROM newsletter_subscriptions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
}

func (r *PostgresRepository) ListDue(ctx context.Context, frequency string) ([]*models.Subscription, error) {
	return r.list(ctx,
		`SELECT `+selectColumns+` FROM newsletter_subscriptions
		 WHERE status = 'active' AND frequency = $1
		 ORDER BY last_sent ASC NULLS FIRST, created_at`, frequency)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, code, status string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE newsletter_subscriptions SET status = $2, updated_at = $3 WHERE code = $1`, code, status, at)
	return affectedOne(res, err)
}

func (r *PostgresRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE newsletter_subscriptions SET last_sent = $2, updated_at = $2 WHERE id = $1`, id, at)
	return affectedOne(res, err)
}

func (r *PostgresRepository) LogDelivery(ctx context.Context, d *models.Delivery) error {
	query :=
		`INSERT INTO newsletter_deliveries (id, subscription_id, status, error_message, content_preview)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, d.ID, d.SubscriptionID, d.Status, d.Error, d.Preview).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg string) ([]*models.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Subscription
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.Subscription, error) {
	var (
		s        models.Subscription
		tier     string
		lastSent sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.SubscriberEmail, &s.SubscriberName, &tier, &s.Frequency,
		&s.Status, &s.Code, &lastSent, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Tier = visibility.Tier(tier)
	if lastSent.Valid {
		t := lastSent.Time
		s.LastSent = &t
	}
	return &s, nil
}

func affectedOne(res sql.Result, err error) error {
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
