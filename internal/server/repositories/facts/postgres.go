// Package facts stores life facts in PostgreSQL.
package facts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.LifeFact) error {
	vis, err := json.Marshal(f.Visibility)
	if err != nil {
		return fmt.Errorf("encode visibility: %w", err)
	}
	docs := f.AssociatedDocs
	if docs == nil {
		docs = []string{}
	}
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode docs: %w", err)
	}

	query :=
		`INSERT INTO life_facts (id, user_id, visibility, date, summary, category, associated_docs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		f.ID, f.UserID, vis, f.Date, f.Summary, f.Category, docsJSON).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, category string) ([]*models.LifeFact, error) {
	query :=
		`SELECT id, user_id, visibility, date, summary, category, associated_docs, created_at, updated_at
		 FROM life_facts
		 WHERE user_id = $1 AND ($2 = '' OR category = $2)
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to select facts: %w", err)
	}
	defer rows.Close()

	var result []*models.LifeFact
	for rows.Next() {
		var (
			f         models.LifeFact
			vis, docs []byte
		)
		if err := rows.Scan(&f.ID, &f.UserID, &vis, &f.Date, &f.Summary, &f.Category, &docs, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(vis, &f.Visibility); err != nil {
			return nil, fmt.Errorf("decode visibility of %s: %w", f.ID, err)
		}
		if len(docs) > 0 {
			if err := json.Unmarshal(docs, &f.AssociatedDocs); err != nil {
				return nil, fmt.Errorf("decode docs of %s: %w", f.ID, err)
			}
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
