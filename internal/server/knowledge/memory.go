package knowledge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It backs local runs
// without a database and the tests of the packages above this one.
type MemoryStore struct {
	txMu sync.Mutex // serializes Atomically
	mu   sync.RWMutex
	data memoryData
	now  func() time.Time
}

type memoryData struct {
	users      map[string]models.User
	events     map[string][]models.LifeEvent
	facts      map[string][]models.LifeFact
	categories map[string][]visibility.Category
	sources    map[string][]models.InfoSource
	documents  map[string][]models.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData(), now: time.Now}
}

func newMemoryData() memoryData {
	return memoryData{
		users:      make(map[string]models.User),
		events:     make(map[string][]models.LifeEvent),
		facts:      make(map[string][]models.LifeFact),
		categories: make(map[string][]visibility.Category),
		sources:    make(map[string][]models.InfoSource),
		documents:  make(map[string][]models.Document),
	}
}

func (d memoryData) clone() memoryData {
	c := newMemoryData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.events {
		c.events[k] = append([]models.LifeEvent(nil), v...)
	}
	for k, v := range d.facts {
		c.facts[k] = append([]models.LifeFact(nil), v...)
	}
	for k, v := range d.categories {
		c.categories[k] = append([]visibility.Category(nil), v...)
	}
	for k, v := range d.sources {
		c.sources[k] = append([]models.InfoSource(nil), v...)
	}
	for k, v := range d.documents {
		c.documents[k] = append([]models.Document(nil), v...)
	}
	return c
}

// Atomically restores the previous state when fn fails.
func (m *MemoryStore) Atomically(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.data.clone()
	m.mu.RUnlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.data.users {
		if strings.EqualFold(other.Username, u.Username) || strings.EqualFold(other.Email, u.Email) {
			return common.ErrDuplicateIdentity
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := m.now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.data.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.data.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (m *MemoryStore) findUser(match func(models.User) bool) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.data.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return m.findUser(func(u models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return m.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *MemoryStore) CompleteOnboarding(_ context.Context, userID, aiSummary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.data.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.OnboardingCompleted = true
	u.AISummary = aiSummary
	u.UpdatedAt = m.now()
	m.data.users[userID] = u
	return nil
}

func (m *MemoryStore) CreateLifeEvent(_ context.Context, e *models.LifeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := m.now()
	e.CreatedAt, e.UpdatedAt = now, now
	m.data.events[e.UserID] = append(m.data.events[e.UserID], e.Retag(e.Visibility))
	return nil
}

func (m *MemoryStore) GetLifeEventsByDateRange(_ context.Context, userID string, start, end time.Time, tiers []visibility.Tier) ([]*models.LifeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.LifeEvent
	for _, e := range m.data.events[userID] {
		if e.StartDate.Before(start) || e.StartDate.After(end) {
			continue
		}
		e := e.Retag(e.Visibility)
		out = append(out, &e)
	}
	out = filterVisible(out, tiers)
	SortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) LifeEventExists(_ context.Context, userID, summary string, start time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.data.events[userID] {
		if e.Summary == summary && e.StartDate.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CreateLifeFact(_ context.Context, f *models.LifeFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := m.now()
	f.CreatedAt, f.UpdatedAt = now, now
	m.data.facts[f.UserID] = append(m.data.facts[f.UserID], f.Retag(f.Visibility))
	return nil
}

func (m *MemoryStore) GetLifeFacts(_ context.Context, userID, category string) ([]*models.LifeFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.LifeFact
	for _, f := range m.data.facts[userID] {
		if category != "" && f.Category != category {
			continue
		}
		f := f.Retag(f.Visibility)
		out = append(out, &f)
	}
	return out, nil
}

func (m *MemoryStore) CreateVisibilityCategories(_ context.Context, userID string, cats []visibility.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.categories[userID] = append(m.data.categories[userID], cats...)
	return nil
}

func (m *MemoryStore) GetVisibilityCategories(_ context.Context, userID string) ([]visibility.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]visibility.Category(nil), m.data.categories[userID]...), nil
}

func (m *MemoryStore) CreateInfoSource(_ context.Context, s *models.InfoSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.data.sources[s.UserID]
	for i, existing := range list {
		if existing.Platform == s.Platform && existing.Identifier == s.Identifier {
			list[i].Credential = s.Credential
			s.ID, s.CreatedAt = existing.ID, existing.CreatedAt
			return nil
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = m.now()
	m.data.sources[s.UserID] = append(list, *s)
	return nil
}

func (m *MemoryStore) GetInfoSources(_ context.Context, userID string) ([]*models.InfoSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.InfoSource
	for _, s := range m.data.sources[userID] {
		s := s
		out = append(out, &s)
	}
	return out, nil
}

func (m *MemoryStore) TouchInfoSource(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, list := range m.data.sources {
		for i := range list {
			if list[i].ID == id {
				t := at
				m.data.sources[userID][i].LastChecked = &t
				return nil
			}
		}
	}
	return common.ErrorNotFound
}

func (m *MemoryStore) CreateDocument(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = m.now()
	m.data.documents[d.UserID] = append(m.data.documents[d.UserID], *d)
	return nil
}

func (m *MemoryStore) GetDocuments(_ context.Context, userID string) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Document
	for _, d := range m.data.documents[userID] {
		d := d
		out = append(out, &d)
	}
	return out, nil
}
