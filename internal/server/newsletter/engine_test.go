package newsletter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type fakeLLM struct {
	reply string
	err   error
	last  llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

// brokenStore fails every read.
type brokenStore struct{ EventReader }

func (brokenStore) GetUser(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func seed(t *testing.T) (*knowledge.MemoryStore, string) {
	t.Helper()
	ctx := context.Background()
	s := knowledge.NewMemoryStore()
	u := &models.User{Username: "alice", Email: "alice@example.com", FullName: "Alice Smith", Bio: "Go developer"}
	require.NoError(t, s.CreateUser(ctx, u))

	friends := visibility.Category{Tier: visibility.GoodFriends}
	family := visibility.Category{Tier: visibility.CloseFamily}
	for _, e := range []models.LifeEvent{
		{Visibility: friends, StartDate: time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC), Summary: "Shipped v2 of the parser"},
		{Visibility: friends, StartDate: time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC), Summary: "Moved to Lisbon"},
		{Visibility: family, StartDate: time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC), Summary: "Visited grandma"},
		{Visibility: friends, StartDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Summary: "Too old"},
	} {
		e := e
		e.UserID = u.ID
		require.NoError(t, s.CreateLifeEvent(ctx, &e))
	}
	return s, u.ID
}

func friendsConfig() Config {
	cfg := DefaultConfig()
	cfg.Visibility = []visibility.Category{{Tier: visibility.GoodFriends}}
	return cfg
}

func summaries(events []*models.LifeEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Summary
	}
	return out
}

func TestGenerate_UsesModelReply(t *testing.T) {
	store, userID := seed(t)
	client := &fakeLLM{reply: "  # Hi friends\n\nBusy week!  "}

	res := NewEngine(store, client, DefaultOptions(), logging.Discard()).Generate(context.Background(), userID, friendsConfig(), now)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "# Hi friends\n\nBusy week!", res.Content)
	assert.Equal(t, 2, res.EventsCount)
	assert.False(t, res.Summary.UsedFallback)
	assert.Equal(t, "claude-sonnet-4-20250514", res.Summary.Model)
	assert.Equal(t, []string{"good_friends"}, res.Summary.VisibilityTiers)

	assert.Equal(t, 0.7, client.last.Temperature)
	assert.Equal(t, 2000, client.last.MaxTokens)
	assert.Contains(t, client.last.User, "June 23, 2025 to June 30, 2025")
	assert.Contains(t, client.last.User, "- 2025-06-28: Moved to Lisbon\n- 2025-06-25: Shipped v2 of the parser")
	assert.Contains(t, client.last.User, "User Instructions: Summarize the major life events")
	assert.Contains(t, client.last.User, "- Bio: Go developer")
	assert.NotContains(t, client.last.User, "Visited grandma")
}

func TestGenerate_FallbackGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	store, userID := seed(t)
	res := NewEngine(store, &fakeLLM{err: errors.New("overloaded")}, DefaultOptions(), logging.Discard()).
		Generate(context.Background(), userID, friendsConfig(), now)

	require.True(t, res.Success)
	assert.True(t, res.Summary.UsedFallback)
	assert.Empty(t, res.Summary.Model)
	g.Assert(t, "fallback_events", []byte(res.Content))
}

func TestRenderFallback_QuietPeriodGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	start, end, err := Window(Config{Periodicity: 168}, now)
	require.NoError(t, err)
	content := renderFallback(&models.User{}, Config{}, nil, dateRange(start, end))
	g.Assert(t, "fallback_quiet", []byte(content))
}

func TestGenerate_ZeroEventsIsSuccess(t *testing.T) {
	store := knowledge.NewMemoryStore()
	u := &models.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, store.CreateUser(context.Background(), u))
	client := &fakeLLM{reply: "Quiet week."}

	res := NewEngine(store, client, DefaultOptions(), logging.Discard()).Generate(context.Background(), u.ID, DefaultConfig(), now)

	require.True(t, res.Success)
	assert.Equal(t, 0, res.EventsCount)
	assert.Contains(t, client.last.User, "No life events found in this time period.")
}

func TestGenerate_Idempotent(t *testing.T) {
	store, userID := seed(t)
	e := NewEngine(store, nil, DefaultOptions(), logging.Discard())

	a := e.Generate(context.Background(), userID, friendsConfig(), now)
	b := e.Generate(context.Background(), userID, friendsConfig(), now)

	assert.Equal(t, a.EventsCount, b.EventsCount)
	if diff := cmp.Diff(summaries(a.Events), summaries(b.Events)); diff != "" {
		t.Errorf("selected events differ (-first +second):\n%s", diff)
	}
	assert.Equal(t, a.Content, b.Content)
}

func TestGenerate_VisibilityIsOR(t *testing.T) {
	store, userID := seed(t)
	e := NewEngine(store, nil, DefaultOptions(), logging.Discard())

	friends := e.Generate(context.Background(), userID, friendsConfig(), now)

	cfg := friendsConfig()
	cfg.Visibility = append(cfg.Visibility, visibility.Category{Tier: visibility.CloseFamily})
	both := e.Generate(context.Background(), userID, cfg, now)

	assert.Equal(t, []string{"Moved to Lisbon", "Shipped v2 of the parser"}, summaries(friends.Events))
	assert.Equal(t, []string{"Moved to Lisbon", "Visited grandma", "Shipped v2 of the parser"}, summaries(both.Events))
	assert.Equal(t, []string{"good_friends", "close_family"}, both.Summary.VisibilityTiers)
}

func TestGenerate_StartDateClampsWindow(t *testing.T) {
	store, userID := seed(t)
	cfg := friendsConfig()
	since := time.Date(2025, 6, 26, 0, 0, 0, 0, time.UTC)
	cfg.StartDate = &since

	res := NewEngine(store, nil, DefaultOptions(), logging.Discard()).Generate(context.Background(), userID, cfg, now)

	require.True(t, res.Success)
	assert.Equal(t, since, res.Summary.Start)
	assert.Equal(t, []string{"Moved to Lisbon"}, summaries(res.Events))
}

func TestGenerate_Failures(t *testing.T) {
	store, userID := seed(t)

	bad := friendsConfig()
	bad.Periodicity = -1
	res := NewEngine(store, nil, DefaultOptions(), logging.Discard()).Generate(context.Background(), userID, bad, now)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "periodicity")

	res = NewEngine(brokenStore{}, nil, DefaultOptions(), logging.Discard()).Generate(context.Background(), "u", friendsConfig(), now)
	assert.False(t, res.Success)
	assert.True(t, strings.Contains(res.Error, "connection refused"))
}
