package sources

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/cryptox"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/extraction"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	collectedAt = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	secret      = []byte("s3cret")
)

type stubCollector struct {
	platform string
	raw      collectors.RawData
	err      error
	tokens   []string
}

func (c *stubCollector) Platform() string { return c.platform }

func (c *stubCollector) Fetch(_ context.Context, _ string, creds collectors.Credentials) (collectors.RawData, error) {
	c.tokens = append(c.tokens, creds.Token)
	return c.raw, c.err
}

func setup(t *testing.T) (*SourceService, *knowledge.MemoryStore, string, *stubCollector) {
	t.Helper()
	ctx := context.Background()
	store := knowledge.NewMemoryStore()

	u := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, store.CreateUser(ctx, u))
	require.NoError(t, store.CreateVisibilityCategories(ctx, u.ID, []visibility.Category{{Tier: visibility.CloseFamily}}))

	sealed, err := cryptox.Seal([]byte("ghp_token"), secret)
	require.NoError(t, err)
	require.NoError(t, store.CreateInfoSource(ctx, &models.InfoSource{UserID: u.ID, Platform: "github", Identifier: "alice", Credential: sealed}))
	require.NoError(t, store.CreateInfoSource(ctx, &models.InfoSource{UserID: u.ID, Platform: "website", Identifier: "https://alice.dev"}))

	gh := &stubCollector{platform: "github", raw: &collectors.GitHubData{
		Username:    "alice",
		Activity:    collectors.GitHubActivity{CommitsLast30Days: 4},
		CollectedAt: collectedAt,
	}}
	web := &stubCollector{platform: "website", err: &collectors.CollectorError{Platform: "website", Op: "scrape", Retryable: true, Err: common.ErrRateLimited}}

	engine, err := extraction.NewEngine(nil, extraction.DefaultOptions(), logging.Discard())
	require.NoError(t, err)

	svc := NewSourceService(store, collectors.NewRegistry(gh, web), engine, secret, logging.Discard())
	return svc, store, u.ID, gh
}

func TestRefresh_AddsNewEventsAndSurvivesFailures(t *testing.T) {
	ctx := context.Background()
	svc, store, userID, gh := setup(t)
	now := collectedAt.Add(time.Minute)

	rep, err := svc.Refresh(ctx, userID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Sources)
	assert.Equal(t, 1, rep.Refreshed)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.EventsAdded)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "website/https://alice.dev")
	assert.Equal(t, []string{"ghp_token"}, gh.tokens)

	events, err := store.GetLifeEventsByDateRange(ctx, userID, collectedAt.AddDate(0, -1, 0), collectedAt, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, visibility.CloseFamily, events[0].Visibility.Tier)

	srcs, err := store.GetInfoSources(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, srcs[0].LastChecked)
	assert.Equal(t, now, *srcs[0].LastChecked)
	assert.Nil(t, srcs[1].LastChecked, "failed sources are not touched")

	rep, err = svc.Refresh(ctx, userID, now)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.EventsAdded)
	assert.Equal(t, 1, rep.EventsSkipped)
}

func TestRefresh_UnknownUser(t *testing.T) {
	svc, _, _, _ := setup(t)
	_, err := svc.Refresh(context.Background(), "nobody", collectedAt)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
