// Package documents stores metadata of uploaded documents. Content lives
// in object storage.
package documents

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, d *models.Document) error
	ListByUser(ctx context.Context, userID string) ([]*models.Document, error)
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Document) error {
	query :=
		`INSERT INTO documents (id, user_id, filename, content_type, size, storage_key, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		d.ID, d.UserID, d.Filename, d.ContentType, d.Size, d.StorageKey, d.Description).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Document, error) {
	query :=
		`SELECT id, user_id, filename, content_type, size, storage_key, description, created_at
		 FROM documents
		 WHERE user_id = $1
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Filename, &d.ContentType, &d.Size, &d.StorageKey, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
