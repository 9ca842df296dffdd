package facts

import (
	"context"

	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, f *models.LifeFact) error
	// ListByUser returns a user's facts; an empty category means all of them.
	ListByUser(ctx context.Context, userID string, category string) ([]*models.LifeFact, error)
}
