// Package sources stores connected external platforms per user.
package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.InfoSource) error
	ListByUser(ctx context.Context, userID string) ([]*models.InfoSource, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create upserts on (user, platform, identifier); reconnecting a source
// replaces its stored credential and keeps the original ID.
func (r *PostgresRepository) Create(ctx context.Context, s *models.InfoSource) error {
	var cred any
	if s.Credential != nil {
		b, err := json.Marshal(s.Credential)
		if err != nil {
			return fmt.Errorf("encode credential: %w", err)
		}
		cred = b
	}

	query :=
		`INSERT INTO info_sources (id, user_id, platform, identifier, credential)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, platform, identifier)
		 DO UPDATE SET credential = EXCLUDED.credential
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, s.ID, s.UserID, s.Platform, s.Identifier, cred).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.InfoSource, error) {
	query :=
		`SELECT id, user_id, platform, identifier, credential, last_checked, created_at
		 FROM info_sources
		 WHERE user_id = $1
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select sources: %w", err)
	}
	defer rows.Close()

	var result []*models.InfoSource
	for rows.Next() {
		var (
			s       models.InfoSource
			cred    []byte
			checked sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Platform, &s.Identifier, &cred, &checked, &s.CreatedAt); err != nil {
			return nil, err
		}
		if len(cred) > 0 {
			if err := json.Unmarshal(cred, &s.Credential); err != nil {
				return nil, fmt.Errorf("decode credential of %s: %w", s.ID, err)
			}
		}
		if checked.Valid {
			t := checked.Time
			s.LastChecked = &t
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE info_sources SET last_checked = $2 WHERE id = $1`, id, at)
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
