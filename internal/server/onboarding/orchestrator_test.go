package onboarding

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/cryptox"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/extraction"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0     = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	secret = []byte("test-secret")
)

type harness struct {
	o         *Orchestrator
	sessions  *memSessions
	store     *knowledge.MemoryStore
	collector *fakeCollector
	blobs     *memBlobs
}

func newHarness(t *testing.T, client llm.Client, store knowledge.Store) *harness {
	t.Helper()
	mem := knowledge.NewMemoryStore()
	if store == nil {
		store = mem
	}
	engine, err := extraction.NewEngine(nil, extraction.DefaultOptions(), logging.Discard())
	require.NoError(t, err)

	h := &harness{
		sessions: newMemSessions(),
		store:    mem,
		collector: &fakeCollector{raw: &collectors.GitHubData{
			Username:    "alice",
			Profile:     collectors.GitHubProfile{Login: "alice", Location: "Riga"},
			Activity:    collectors.GitHubActivity{CommitsLast30Days: 12, LanguagesUsed: map[string]int{"Go": 5000}},
			Summary:     collectors.GitHubSummary{TotalRepositories: 2},
			CollectedAt: t0,
		}},
		blobs: &memBlobs{},
	}
	h.o = NewOrchestrator(Deps{
		Sessions:   h.sessions,
		Store:      store,
		Collectors: collectors.NewRegistry(h.collector),
		Extractor:  engine,
		Blobs:      h.blobs,
		LLM:        client,
		Log:        logging.Discard(),
	}, Options{Secret: secret})
	h.o.now = func() time.Time { return t0 }
	return h
}

func alice() BasicInfo {
	return BasicInfo{Username: "alice", Email: "alice@example.com", FullName: "Alice Smith", Bio: "Go developer"}
}

func (h *harness) readyToProcess(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id, err := h.o.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, h.o.SubmitBasicInfo(ctx, id, alice()))
	_, err = h.o.AddDataSource(ctx, id, collectors.PlatformGitHub, SourceCredentials{Identifier: "alice", Token: "ghp_secret"})
	require.NoError(t, err)
	_, err = h.o.UploadDocument(ctx, id, "cv.md", "text/markdown", []byte("# Alice\nGo developer"), "my cv")
	require.NoError(t, err)
	require.NoError(t, h.o.ConfigureVisibility(ctx, id, []visibility.Category{{Tier: visibility.BestFriends}, {Tier: visibility.Public}}))
	return id
}

func TestOnboarding_HappyPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	id := h.readyToProcess(t)

	st, err := h.o.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StepVisibilityConfigured, st.Step)
	assert.Equal(t, 1, st.SourcesCount)
	assert.Equal(t, 1, st.DocumentsCount)
	assert.Equal(t, 2, st.EventsCount)
	assert.Equal(t, 4, st.FactsCount)

	res, err := h.o.Process(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/profile/alice", res.ProfileURL)
	assert.Equal(t, "Meet Alice Smith. who describes themselves as: Go developer. They're active on github. "+
		"and has shared 1 documents providing insights into their life. "+
		"Their AI is ready to chat with friends and share appropriate updates based on their configured privacy preferences.", res.AISummary)
	assert.Len(t, res.NextSteps, 3)
	assert.Equal(t, 2, res.Events)
	assert.Equal(t, 4, res.Facts)

	u, err := h.store.GetUser(ctx, res.UserID)
	require.NoError(t, err)
	assert.True(t, u.OnboardingCompleted)
	assert.Equal(t, res.AISummary, u.AISummary)

	events, err := h.store.GetLifeEventsByDateRange(ctx, u.ID, t0.AddDate(0, -2, 0), t0, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, visibility.BestFriends, e.Visibility.Tier, "entries take the first configured category")
	}
	assert.Contains(t, events[0].Summary, "12")

	facts, err := h.store.GetLifeFacts(ctx, u.ID, "")
	require.NoError(t, err)
	assert.Len(t, facts, 4)

	docs, err := h.store.GetDocuments(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, h.blobs.objects, docs[0].StorageKey)
	docFacts, err := h.store.GetLifeFacts(ctx, u.ID, "background")
	require.NoError(t, err)
	var linked bool
	for _, f := range docFacts {
		if len(f.AssociatedDocs) == 1 && f.AssociatedDocs[0] == docs[0].ID {
			linked = true
		}
	}
	assert.True(t, linked, "document facts reference their document")

	srcs, err := h.store.GetInfoSources(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	require.NotNil(t, srcs[0].Credential)
	token, err := cryptox.Open(srcs[0].Credential, secret)
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", string(token))

	cats, err := h.store.GetVisibilityCategories(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, cats, 2)

	st, err = h.o.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, st.Step)

	_, err = h.o.Process(ctx, id)
	assert.ErrorIs(t, err, common.ErrInvalidStep)
}

func TestOnboarding_ProfileSummaryFromModel(t *testing.T) {
	h := newHarness(t, &fakeLLM{reply: "  Alice is a Go developer from Riga.  "}, nil)
	id := h.readyToProcess(t)

	res, err := h.o.Process(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Alice is a Go developer from Riga.", res.AISummary)
}

func TestOnboarding_BlankSummaryLogsEmptyReply(t *testing.T) {
	h := newHarness(t, &fakeLLM{reply: "  \n "}, nil)
	var buf bytes.Buffer
	h.o.log = logging.New("warn", "text", &buf)
	id := h.readyToProcess(t)

	res, err := h.o.Process(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.AISummary, "Meet Alice Smith"))
	assert.Contains(t, buf.String(), "error=\"empty reply\"")
	assert.NotContains(t, buf.String(), "<nil>")
}

func TestSubmitBasicInfo_DuplicateAcrossSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)

	first, err := h.o.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, h.o.SubmitBasicInfo(ctx, first, alice()))
	before, err := h.sessions.Get(ctx, first)
	require.NoError(t, err)

	second, err := h.o.Start(ctx)
	require.NoError(t, err)
	dup := alice()
	dup.Username = "ALICE"
	dup.Email = "other@example.com"
	err = h.o.SubmitBasicInfo(ctx, second, dup)
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	after, err := h.sessions.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the first session is untouched")

	st, err := h.o.Status(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, StepStart, st.Step)
	assert.Empty(t, st.Username)
}

func TestSubmitBasicInfo_DuplicateOfStoredUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	require.NoError(t, h.store.CreateUser(ctx, &models.User{Username: "bob", Email: "alice@example.com"}))

	id, err := h.o.Start(ctx)
	require.NoError(t, err)
	err = h.o.SubmitBasicInfo(ctx, id, alice())
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)
}

func TestSubmitBasicInfo_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	id, err := h.o.Start(ctx)
	require.NoError(t, err)

	for _, info := range []BasicInfo{
		{Email: "a@example.com", FullName: "A"},
		{Username: "a", FullName: "A"},
		{Username: "a", Email: "not-an-email", FullName: "A"},
		{Username: "a b", Email: "a@example.com", FullName: "A"},
		{Username: "a", Email: "a@example.com"},
	} {
		assert.ErrorIs(t, h.o.SubmitBasicInfo(ctx, id, info), common.ErrInvalidInput, "%+v", info)
	}

	require.NoError(t, h.o.SubmitBasicInfo(ctx, id, alice()))
	assert.ErrorIs(t, h.o.SubmitBasicInfo(ctx, id, alice()), common.ErrInvalidStep)
}

func TestAddDataSource_CollectorFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	id, err := h.o.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, h.o.SubmitBasicInfo(ctx, id, alice()))
	before, err := h.sessions.Get(ctx, id)
	require.NoError(t, err)

	h.collector.err = &collectors.CollectorError{Platform: "github", Op: "profile", Err: common.ErrorNotFound}
	_, err = h.o.AddDataSource(ctx, id, collectors.PlatformGitHub, SourceCredentials{Identifier: "ghost"})

	var ce *collectors.CollectorError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, common.ErrCollectorFailure)

	after, err := h.sessions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAddDataSource_UnknownPlatformAndReconnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	id, err := h.o.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, h.o.SubmitBasicInfo(ctx, id, alice()))

	_, err = h.o.AddDataSource(ctx, id, "myspace", SourceCredentials{Identifier: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	for i := 0; i < 2; i++ {
		sum, err := h.o.AddDataSource(ctx, id, collectors.PlatformGitHub, SourceCredentials{Identifier: "alice"})
		require.NoError(t, err)
		assert.True(t, sum.Summary.EventsFallback)
	}
	st, err := h.o.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StepDataSourcesAdded, st.Step)
	assert.Equal(t, 1, st.SourcesCount, "reconnecting replaces the source")
	assert.Empty(t, h.collector.creds[0].Token)
}

func TestConfigureVisibility(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	id, err := h.o.Start(ctx)
	require.NoError(t, err)

	cats := []visibility.Category{{Tier: visibility.GoodFriends}}
	assert.ErrorIs(t, h.o.ConfigureVisibility(ctx, id, cats), common.ErrInvalidStep)

	require.NoError(t, h.o.SubmitBasicInfo(ctx, id, alice()))
	assert.ErrorIs(t, h.o.ConfigureVisibility(ctx, id, nil), common.ErrInvalidVisibility)
	assert.ErrorIs(t, h.o.ConfigureVisibility(ctx, id, []visibility.Category{{Tier: visibility.Custom}}), common.ErrInvalidVisibility)
	require.NoError(t, h.o.ConfigureVisibility(ctx, id, cats))

	_, err = h.o.Process(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestProcess_FailureStaysInProcessingAndRetries(t *testing.T) {
	ctx := context.Background()
	failures := 1
	mem := knowledge.NewMemoryStore()
	h := newHarness(t, nil, &flakyStore{Store: mem, failures: &failures})
	h.store = mem
	id := h.readyToProcess(t)

	_, err := h.o.Process(ctx, id)
	require.ErrorIs(t, err, common.ErrProcessingIncomplete)
	assert.ErrorIs(t, err, common.ErrStorage)

	st, err := h.o.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StepProcessing, st.Step)
	_, err = h.store.GetUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound, "nothing is persisted by a failed attempt")

	res, err := h.o.Process(ctx, id)
	require.NoError(t, err)
	u, err := h.store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, u.ID)
}

func TestUploadDocument(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	id, err := h.o.Start(ctx)
	require.NoError(t, err)

	doc, err := h.o.UploadDocument(ctx, id, "../photo.png", "image/png", []byte{0x89, 'P'}, "")
	require.NoError(t, err)
	assert.Equal(t, "photo.png", doc.Filename)
	assert.Empty(t, doc.Facts, "binary documents are stored but not extracted")
	assert.Regexp(t, `^documents/2025/6/30/`, doc.StorageKey)

	h.blobs.err = errors.New("bucket gone")
	_, err = h.o.UploadDocument(ctx, id, "notes.txt", "", []byte("x"), "")
	assert.ErrorIs(t, err, common.ErrStorage)

	st, err := h.o.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, st.DocumentsCount)
}

func TestExpiryAndCleanup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	id, err := h.o.Start(ctx)
	require.NoError(t, err)

	h.o.now = func() time.Time { return t0.Add(25 * time.Hour) }
	assert.ErrorIs(t, h.o.SubmitBasicInfo(ctx, id, alice()), common.ErrSessionExpired)

	n, err := h.o.CleanupExpired(ctx, t0.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = h.o.Status(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
