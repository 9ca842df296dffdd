package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers by system prompt.
type scriptedLLM struct {
	events, facts string
	err           error
	calls         []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	if req.System == eventsSystemPrompt {
		return s.events, nil
	}
	return s.facts, nil
}

type disabledLLM struct{ scriptedLLM }

func (*disabledLLM) Enabled() bool { return false }

var collected = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func githubData(commits int, langs map[string]int) *collectors.GitHubData {
	return &collectors.GitHubData{
		Username: "alice",
		Profile:  collectors.GitHubProfile{Login: "alice", Name: "Alice", Location: "Riga"},
		Repositories: []collectors.GitHubRepository{
			{Name: "one", FullName: "alice/one"}, {Name: "two", FullName: "alice/two"},
		},
		Activity: collectors.GitHubActivity{CommitsLast30Days: commits, LanguagesUsed: langs},
		Summary: collectors.GitHubSummary{
			TotalRepositories: 2,
			PrimaryLanguages:  collectors.TopLanguages(langs, 5),
			ActivityLevel:     collectors.ActivityLevel(commits),
		},
		CollectedAt: collected,
	}
}

func newEngine(t *testing.T, client llm.Client) *Engine {
	t.Helper()
	e, err := NewEngine(client, DefaultOptions(), logging.Discard())
	require.NoError(t, err)
	return e
}

func TestExtract_ParsesAndTagsWithFirstPoolCategory(t *testing.T) {
	client := &scriptedLLM{
		events: "```json\n[{\"summary\":\"Shipped v2 of my parser\",\"start_date\":\"2025-06-10\",\"end_date\":\"2025-06-12\"}]\n```",
		facts:  `[{"summary":"Alice writes Go","category":"skills"},{"summary":"Lives in Riga"}]`,
	}
	pool := []visibility.Category{
		visibility.MustNew(visibility.BestFriends, ""),
		visibility.MustNew(visibility.Public, ""),
	}

	res := newEngine(t, client).Extract(context.Background(), githubData(3, nil), pool)

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, "Shipped v2 of my parser", ev.Summary)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), ev.StartDate)
	require.NotNil(t, ev.EndDate)
	assert.Equal(t, visibility.BestFriends, ev.Visibility.Tier)

	require.Len(t, res.Facts, 2)
	assert.Equal(t, "skills", res.Facts[0].Category)
	assert.Equal(t, "general", res.Facts[1].Category)
	assert.Equal(t, collected, res.Facts[1].Date)

	assert.False(t, res.Summary.EventsFallback)
	assert.False(t, res.Summary.FactsFallback)
	assert.Equal(t, 1, res.Summary.EventsGenerated)
	assert.Equal(t, 2, res.Summary.SourceItems)

	require.Len(t, client.calls, 2)
	assert.Equal(t, 0.3, client.calls[0].Temperature)
	assert.Equal(t, 2000, client.calls[0].MaxTokens)
}

func TestExtract_SkipsMalformedItemsIndividually(t *testing.T) {
	client := &scriptedLLM{
		events: `[
			{"summary":"Good one","start_date":"2025-05-01"},
			{"start_date":"2025-05-02"},
			{"summary":"Bad date","start_date":"sometime in May"},
			{"summary":"Bad end date kept","start_date":"2025-05-03","end_date":"later"},
			"garbage",
			{"summary":"Another good one","start_date":"2025-05-04T09:00:00Z"}
		]`,
		facts: `[{"summary":"ok"},{"category":"skills"}]`,
	}

	res := newEngine(t, client).Extract(context.Background(), githubData(0, nil), nil)

	require.Len(t, res.Events, 3)
	assert.Equal(t, "Good one", res.Events[0].Summary)
	assert.Equal(t, "Bad end date kept", res.Events[1].Summary)
	assert.Nil(t, res.Events[1].EndDate)
	assert.Equal(t, "Another good one", res.Events[2].Summary)
	assert.Equal(t, 3, res.Summary.EventsSkipped)

	require.Len(t, res.Facts, 1)
	assert.Equal(t, 1, res.Summary.FactsSkipped)
	assert.Equal(t, visibility.GoodFriends, res.Facts[0].Visibility.Tier, "empty pool uses the default")
}

func TestExtract_NoDataIsEmptyNotFallback(t *testing.T) {
	client := &scriptedLLM{
		events: "Looking at the content, I found no specific dates mentioned.\n[]",
		facts:  `[]`,
	}

	res := newEngine(t, client).Extract(context.Background(), githubData(12, map[string]int{"Go": 10}), nil)

	assert.Empty(t, res.Events)
	assert.Empty(t, res.Facts)
	assert.False(t, res.Summary.EventsFallback)
	assert.False(t, res.Summary.FactsFallback)
}

func TestExtract_UnusableReplyFallsBack(t *testing.T) {
	client := &scriptedLLM{events: "I'd love to help!", facts: "Sure thing."}

	res := newEngine(t, client).Extract(context.Background(), githubData(12, nil), nil)

	require.Len(t, res.Events, 1)
	assert.Contains(t, res.Events[0].Summary, "12")
	assert.True(t, res.Summary.EventsFallback)
	assert.True(t, res.Summary.FactsFallback)
}

func TestExtract_LLMErrorFallsBack(t *testing.T) {
	client := &scriptedLLM{err: errors.New("timeout")}

	res := newEngine(t, client).Extract(context.Background(), githubData(12, map[string]int{"Go": 5, "Rust": 9}), nil)

	coding := 0
	for _, ev := range res.Events {
		if strings.HasPrefix(ev.Summary, "Been actively coding") {
			coding++
			assert.Contains(t, ev.Summary, "12")
		}
	}
	assert.Equal(t, 1, coding)
	assert.True(t, res.Summary.EventsFallback)
}

func TestExtract_DisabledClientIsNeverCalled(t *testing.T) {
	client := &disabledLLM{}

	res := newEngine(t, client).Extract(context.Background(), githubData(1, nil), nil)

	assert.Empty(t, client.calls)
	assert.True(t, res.Summary.EventsFallback)
	require.Len(t, res.Events, 1)
}

func TestExtract_NilClient(t *testing.T) {
	res := newEngine(t, nil).Extract(context.Background(), &collectors.WebsiteData{
		URL: "https://alice.dev", Title: "Alice", Description: "Climber", MainContent: "hello", TotalPages: 1, CollectedAt: collected,
	}, nil)

	assert.Empty(t, res.Events)
	require.Len(t, res.Facts, 2)
	assert.Equal(t, 1, res.Summary.PagesScraped)
	assert.Equal(t, 5, res.Summary.ContentLength)
}

func TestExtract_TruncatesLongContent(t *testing.T) {
	client := &scriptedLLM{events: "[]", facts: "[]"}
	long := strings.Repeat("é", maxContentRunes+500)

	newEngine(t, client).Extract(context.Background(), &collectors.WebsiteData{URL: "https://x.dev", MainContent: long, TotalPages: 1}, nil)

	require.NotEmpty(t, client.calls)
	assert.Equal(t, maxContentRunes, strings.Count(client.calls[0].User, "é"))
}

func TestExtract_MultiPageWebsite(t *testing.T) {
	site := &collectors.WebsiteData{
		URL: "https://alice.dev", Title: "Alice", MainContent: "Home page.", CollectedAt: collected,
		Pages: []collectors.WebsitePage{
			{URL: "https://alice.dev", Title: "Alice", Content: "Home page."},
			{URL: "https://alice.dev/about", Title: "About", Content: "I climb."},
			{URL: "https://alice.dev/blog", Content: "Posts."},
		},
		TotalPages: 3,
	}

	client := &scriptedLLM{events: "[]", facts: "[]"}
	newEngine(t, client).Extract(context.Background(), site, nil)
	require.NotEmpty(t, client.calls)
	prompt := client.calls[0].User
	assert.Contains(t, prompt, "Pages crawled: 3\n- https://alice.dev Alice\n- https://alice.dev/about About\n")
	assert.Contains(t, prompt, "Home page.\n\n## About\nI climb.\n\n## https://alice.dev/blog\nPosts.")

	res := newEngine(t, nil).Extract(context.Background(), site, nil)
	assert.Equal(t, 3, res.Summary.PagesScraped)
	var summaries []string
	for _, f := range res.Facts {
		summaries = append(summaries, f.Summary)
	}
	assert.Contains(t, summaries, "Has published 3 pages on their personal website")
}
