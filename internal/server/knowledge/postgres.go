package knowledge

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/google/uuid"
)

// PostgresStore implements Store over the repository layer. Inside
// Atomically every repository is bound to the same transaction.
type PostgresStore struct {
	db   *sql.DB
	q    dbx.DBTX
	rm   repomanager.RepositoryManager
	inTx bool
}

func NewPostgresStore(db *sql.DB, rm repomanager.RepositoryManager) *PostgresStore {
	return &PostgresStore{db: db, q: db, rm: rm}
}

func (s *PostgresStore) Atomically(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &PostgresStore{db: s.db, q: tx, rm: s.rm, inTx: true})
	})
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return storageErr("create user", s.rm.Users(s.q).Create(ctx, u))
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.rm.Users(s.q).GetByID(ctx, id)
	return u, storageErr("get user", err)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := s.rm.Users(s.q).GetByUsername(ctx, username)
	return u, storageErr("get user by username", err)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.rm.Users(s.q).GetByEmail(ctx, email)
	return u, storageErr("get user by email", err)
}

func (s *PostgresStore) CompleteOnboarding(ctx context.Context, userID, aiSummary string) error {
	return storageErr("complete onboarding", s.rm.Users(s.q).CompleteOnboarding(ctx, userID, aiSummary))
}

func (s *PostgresStore) CreateLifeEvent(ctx context.Context, e *models.LifeEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return storageErr("create life event", s.rm.Events(s.q).Create(ctx, e))
}

func (s *PostgresStore) GetLifeEventsByDateRange(ctx context.Context, userID string, start, end time.Time, tiers []visibility.Tier) ([]*models.LifeEvent, error) {
	events, err := s.rm.Events(s.q).ListByDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, storageErr("list life events", err)
	}
	events = filterVisible(events, tiers)
	SortNewestFirst(events)
	return events, nil
}

func (s *PostgresStore) LifeEventExists(ctx context.Context, userID, summary string, start time.Time) (bool, error) {
	ok, err := s.rm.Events(s.q).Exists(ctx, userID, summary, start)
	return ok, storageErr("check life event", err)
}

func (s *PostgresStore) CreateLifeFact(ctx context.Context, f *models.LifeFact) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return storageErr("create life fact", s.rm.Facts(s.q).Create(ctx, f))
}

func (s *PostgresStore) GetLifeFacts(ctx context.Context, userID, category string) ([]*models.LifeFact, error) {
	facts, err := s.rm.Facts(s.q).ListByUser(ctx, userID, category)
	return facts, storageErr("list life facts", err)
}

func (s *PostgresStore) CreateVisibilityCategories(ctx context.Context, userID string, cats []visibility.Category) error {
	return storageErr("create visibility categories", s.rm.Categories(s.q).Create(ctx, userID, cats))
}

func (s *PostgresStore) GetVisibilityCategories(ctx context.Context, userID string) ([]visibility.Category, error) {
	cats, err := s.rm.Categories(s.q).List(ctx, userID)
	return cats, storageErr("list visibility categories", err)
}

func (s *PostgresStore) CreateInfoSource(ctx context.Context, src *models.InfoSource) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	return storageErr("create info source", s.rm.Sources(s.q).Create(ctx, src))
}

func (s *PostgresStore) GetInfoSources(ctx context.Context, userID string) ([]*models.InfoSource, error) {
	srcs, err := s.rm.Sources(s.q).ListByUser(ctx, userID)
	return srcs, storageErr("list info sources", err)
}

func (s *PostgresStore) TouchInfoSource(ctx context.Context, id string, at time.Time) error {
	return storageErr("touch info source", s.rm.Sources(s.q).Touch(ctx, id, at))
}

func (s *PostgresStore) CreateDocument(ctx context.Context, d *models.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return storageErr("create document", s.rm.Documents(s.q).Create(ctx, d))
}

func (s *PostgresStore) GetDocuments(ctx context.Context, userID string) ([]*models.Document, error) {
	docs, err := s.rm.Documents(s.q).ListByUser(ctx, userID)
	return docs, storageErr("list documents", err)
}
