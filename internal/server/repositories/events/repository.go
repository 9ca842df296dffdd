package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.LifeEvent) error
	// ListByDateRange returns events starting within [start, end], newest first.
	ListByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*models.LifeEvent, error)
	Exists(ctx context.Context, userID string, summary string, startDate time.Time) (bool, error)
}
