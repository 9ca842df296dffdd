// Package categories stores a user's configured visibility categories in
// the order the user gave them; position 0 is the user's default tag.
package categories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

type Repository interface {
	Create(ctx context.Context, userID string, cats []visibility.Category) error
	List(ctx context.Context, userID string) ([]visibility.Category, error)
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, cats []visibility.Category) error {
	query :=
		`INSERT INTO visibility_categories (user_id, position, category)
		 VALUES ($1, $2, $3)`

	for i, c := range cats {
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode category %d: %w", i, err)
		}
		if _, err := r.db.ExecContext(ctx, query, userID, i, b); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]visibility.Category, error) {
	query :=
		`SELECT category FROM visibility_categories
		 WHERE user_id = $1
		 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []visibility.Category
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var c visibility.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode category: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
