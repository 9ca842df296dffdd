package users

import (
	"context"

	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CompleteOnboarding(ctx context.Context, id string, aiSummary string) error
}
