// Package events stores life events in PostgreSQL. Visibility categories
// are kept as JSONB so the full also_visible graph survives a round trip.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.LifeEvent) error {
	vis, err := json.Marshal(e.Visibility)
	if err != nil {
		return fmt.Errorf("encode visibility: %w", err)
	}
	docs, err := json.Marshal(nonNil(e.AssociatedDocs))
	if err != nil {
		return fmt.Errorf("encode docs: %w", err)
	}

	var end any
	if e.EndDate != nil {
		end = *e.EndDate
	}

	query :=
		`INSERT INTO life_events (id, user_id, visibility, start_date, end_date, summary, associated_docs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		e.ID, e.UserID, vis, e.StartDate, end, e.Summary, docs).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*models.LifeEvent, error) {
	query :=
		`SELECT id, user_id, visibility, start_date, end_date, summary, associated_docs, created_at, updated_at
		 FROM life_events
		 WHERE user_id = $1 AND start_date >= $2 AND start_date <= $3
		 ORDER BY start_date DESC, id`

	rows, err := r.db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	var result []*models.LifeEvent
	for rows.Next() {
		var (
			e         models.LifeEvent
			vis, docs []byte
			endDate   sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.UserID, &vis, &e.StartDate, &endDate, &e.Summary, &docs, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(vis, &e.Visibility); err != nil {
			return nil, fmt.Errorf("decode visibility of %s: %w", e.ID, err)
		}
		if len(docs) > 0 {
			if err := json.Unmarshal(docs, &e.AssociatedDocs); err != nil {
				return nil, fmt.Errorf("decode docs of %s: %w", e.ID, err)
			}
		}
		if endDate.Valid {
			t := endDate.Time
			e.EndDate = &t
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, userID string, summary string, startDate time.Time) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM life_events WHERE user_id = $1 AND summary = $2 AND start_date = $3)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID, summary, startDate).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
