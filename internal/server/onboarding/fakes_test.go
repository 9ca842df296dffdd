package onboarding

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
)

// memSessions mirrors the SQL semantics of the sessions repository.
type memSessions struct {
	mu   sync.Mutex
	byID map[string]models.OnboardingSession
}

func newMemSessions() *memSessions {
	return &memSessions{byID: make(map[string]models.OnboardingSession)}
}

func (m *memSessions) Create(_ context.Context, s *models.OnboardingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*models.OnboardingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	s.State = append([]byte(nil), s.State...)
	return &s, nil
}

func (m *memSessions) Update(_ context.Context, s *models.OnboardingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byID[s.ID]
	if !ok {
		return common.ErrorNotFound
	}
	s.CreatedAt, s.ExpiresAt = old.CreatedAt, old.ExpiresAt
	m.byID[s.ID] = *s
	return nil
}

func (m *memSessions) IdentityReserved(_ context.Context, username, email, excludeID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.byID {
		if id == excludeID || !s.ExpiresAt.After(now) || s.Step == string(StepCompleted) {
			continue
		}
		if (s.Username != "" && strings.EqualFold(s.Username, username)) || (s.Email != "" && strings.EqualFold(s.Email, email)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.byID {
		if !s.ExpiresAt.After(now) && s.Step != string(StepCompleted) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

type fakeCollector struct {
	raw   collectors.RawData
	err   error
	calls int
	creds []collectors.Credentials
}

func (*fakeCollector) Platform() string { return collectors.PlatformGitHub }

func (f *fakeCollector) Fetch(_ context.Context, _ string, creds collectors.Credentials) (collectors.RawData, error) {
	f.calls++
	f.creds = append(f.creds, creds)
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

type memBlobs struct {
	objects map[string][]byte
	err     error
}

func (b *memBlobs) Put(_ context.Context, key, _ string, body []byte) error {
	if b.err != nil {
		return b.err
	}
	if b.objects == nil {
		b.objects = make(map[string][]byte)
	}
	b.objects[key] = body
	return nil
}

func (b *memBlobs) PresignGet(_ context.Context, key string) (string, error) {
	return "https://blobs.local/" + key, nil
}

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(context.Context, llm.Request) (string, error) {
	f.calls++
	return f.reply, f.err
}

// flakyStore fails the first failures fact writes made inside a
// transaction.
type flakyStore struct {
	knowledge.Store
	failures *int
}

func (f *flakyStore) Atomically(ctx context.Context, fn func(ctx context.Context, s knowledge.Store) error) error {
	return f.Store.Atomically(ctx, func(ctx context.Context, st knowledge.Store) error {
		return fn(ctx, &flakyStore{Store: st, failures: f.failures})
	})
}

func (f *flakyStore) CreateLifeFact(ctx context.Context, fact *models.LifeFact) error {
	if *f.failures > 0 {
		*f.failures--
		return common.ErrStorage
	}
	return f.Store.CreateLifeFact(ctx, fact)
}
