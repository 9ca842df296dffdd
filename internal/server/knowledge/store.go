// Package knowledge is the persistence boundary for users and their
// timelines. Core packages depend on Store only.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

// Store methods fail with common.ErrorNotFound for missing records,
// common.ErrDuplicateIdentity for username/email collisions, and an error
// wrapping common.ErrStorage otherwise.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CompleteOnboarding(ctx context.Context, userID, aiSummary string) error

	CreateLifeEvent(ctx context.Context, e *models.LifeEvent) error
	// GetLifeEventsByDateRange returns events starting in [start, end] that
	// any of tiers may see, newest first. Nil tiers disables filtering.
	GetLifeEventsByDateRange(ctx context.Context, userID string, start, end time.Time, tiers []visibility.Tier) ([]*models.LifeEvent, error)
	LifeEventExists(ctx context.Context, userID, summary string, start time.Time) (bool, error)

	CreateLifeFact(ctx context.Context, f *models.LifeFact) error
	GetLifeFacts(ctx context.Context, userID, category string) ([]*models.LifeFact, error)

	CreateVisibilityCategories(ctx context.Context, userID string, cats []visibility.Category) error
	GetVisibilityCategories(ctx context.Context, userID string) ([]visibility.Category, error)

	CreateInfoSource(ctx context.Context, s *models.InfoSource) error
	GetInfoSources(ctx context.Context, userID string) ([]*models.InfoSource, error)
	TouchInfoSource(ctx context.Context, id string, at time.Time) error

	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocuments(ctx context.Context, userID string) ([]*models.Document, error)

	// Atomically runs fn against a store whose writes commit together or
	// not at all.
	Atomically(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// storageErr passes not-found and duplicate errors through and wraps
// everything else in common.ErrStorage.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrDuplicateIdentity) || errors.Is(err, common.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", common.ErrStorage, op, err)
}

// filterVisible keeps the events a viewer holding tiers may see.
func filterVisible(events []*models.LifeEvent, tiers []visibility.Tier) []*models.LifeEvent {
	if tiers == nil {
		return events
	}
	out := make([]*models.LifeEvent, 0, len(events))
	for _, e := range events {
		if visibility.IsVisibleTo(e.Visibility, tiers) {
			out = append(out, e)
		}
	}
	return out
}

// VisibleFacts keeps the facts a viewer holding tiers may see. Nil tiers
// keeps everything.
func VisibleFacts(facts []*models.LifeFact, tiers []visibility.Tier) []*models.LifeFact {
	if tiers == nil {
		return facts
	}
	out := make([]*models.LifeFact, 0, len(facts))
	for _, f := range facts {
		if visibility.IsVisibleTo(f.Visibility, tiers) {
			out = append(out, f)
		}
	}
	return out
}

// SortNewestFirst orders events by start date descending, ties by id.
func SortNewestFirst(events []*models.LifeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartDate.Equal(events[j].StartDate) {
			return events[i].StartDate.After(events[j].StartDate)
		}
		return events[i].ID < events[j].ID
	})
}
