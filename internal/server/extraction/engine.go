// Package extraction turns raw platform data into timeline entries. The
// model is asked for strict JSON, its reply is recovered through an ordered
// ladder of parsing strategies, and any failure degrades to a deterministic
// fallback computed from the raw data alone.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

const defaultFactCategory = "general"

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Default tags entries when the caller's pool is empty.
	Default visibility.Category
}

// DefaultOptions returns the tuning used in production.
func DefaultOptions() Options {
	return Options{Temperature: 0.3, MaxTokens: 2000, Default: visibility.Default}
}

type Result struct {
	Events  []models.LifeEvent
	Facts   []models.LifeFact
	Summary Summary
}

type Summary struct {
	Platform         string   `json:"platform"`
	SourceItems      int      `json:"source_items"`
	EventsGenerated  int      `json:"events_generated"`
	FactsGenerated   int      `json:"facts_generated"`
	EventsSkipped    int      `json:"events_skipped,omitempty"`
	FactsSkipped     int      `json:"facts_skipped,omitempty"`
	EventsFallback   bool     `json:"events_fallback"`
	FactsFallback    bool     `json:"facts_fallback"`
	PrimaryLanguages []string `json:"primary_languages,omitempty"`
	ActivityLevel    string   `json:"activity_level,omitempty"`
	PagesScraped     int      `json:"pages_scraped,omitempty"`
	ContentLength    int      `json:"content_length,omitempty"`
}

type Engine struct {
	llm       llm.Client
	opts      Options
	validator *validator
	log       logging.Logger
}

// NewEngine builds an engine. client may be nil, in which case every
// extraction uses the fallback.
func NewEngine(client llm.Client, opts Options, log logging.Logger) (*Engine, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	if opts.Default.Tier == "" {
		opts.Default = visibility.Default
	}
	return &Engine{llm: client, opts: opts, validator: v, log: log}, nil
}

// Extract never fails: model errors and unusable replies resolve to the
// fallback and are reported in the summary.
func (e *Engine) Extract(ctx context.Context, raw collectors.RawData, pool []visibility.Category) *Result {
	cat := visibility.PickDefault(pool, e.opts.Default)
	log := e.log.With("platform", raw.Platform())

	res := &Result{Summary: describe(raw)}

	if items, ok := e.ask(ctx, log, eventsSystemPrompt, userPrompt(raw, true)); ok {
		res.Events, res.Summary.EventsSkipped = e.toEvents(ctx, log, items, cat)
	} else {
		res.Events = fallbackEvents(raw, cat)
		res.Summary.EventsFallback = true
	}

	if items, ok := e.ask(ctx, log, factsSystemPrompt, userPrompt(raw, false)); ok {
		res.Facts, res.Summary.FactsSkipped = e.toFacts(ctx, log, items, cat, raw)
	} else {
		res.Facts = fallbackFacts(raw, cat)
		res.Summary.FactsFallback = true
	}

	res.Summary.EventsGenerated = len(res.Events)
	res.Summary.FactsGenerated = len(res.Facts)

	log.Info(ctx, "extraction finished",
		"events", res.Summary.EventsGenerated,
		"facts", res.Summary.FactsGenerated,
		"events_fallback", res.Summary.EventsFallback,
		"facts_fallback", res.Summary.FactsFallback)
	return res
}

// ask returns ok=false when the model is unavailable, fails, or replies
// with something the ladder cannot use.
func (e *Engine) ask(ctx context.Context, log logging.Logger, system, user string) ([]json.RawMessage, bool) {
	if e.llm == nil || !llm.Enabled(e.llm) {
		return nil, false
	}

	text, err := e.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		log.Warn(ctx, "llm call failed, using fallback", "error", err)
		return nil, false
	}

	items, strategy, ok := ParseArray(text)
	if !ok {
		log.Warn(ctx, "using fallback", "error", fmt.Errorf("%w: %d chars", common.ErrExtractionUnusable, len(text)))
		return nil, false
	}
	log.Debug(ctx, "llm reply parsed", "strategy", strategy, "items", len(items))
	return items, true
}

func (e *Engine) toEvents(ctx context.Context, log logging.Logger, items []json.RawMessage, cat visibility.Category) ([]models.LifeEvent, int) {
	out := make([]models.LifeEvent, 0, len(items))
	skipped := 0
	for i, item := range items {
		c, err := check(e.validator.events, item)
		if err != nil {
			log.Debug(ctx, "skipping event candidate", "index", i, "error", err)
			skipped++
			continue
		}
		start, err := parseDate(c.StartDate)
		if err != nil {
			log.Debug(ctx, "skipping event candidate", "index", i, "error", err)
			skipped++
			continue
		}

		ev := models.LifeEvent{Visibility: cat, StartDate: start, Summary: c.Summary}
		if c.EndDate != nil && *c.EndDate != "" {
			if end, err := parseDate(*c.EndDate); err == nil && !end.Before(start) {
				ev.EndDate = &end
			}
		}
		out = append(out, ev)
	}
	return out, skipped
}

func (e *Engine) toFacts(ctx context.Context, log logging.Logger, items []json.RawMessage, cat visibility.Category, raw collectors.RawData) ([]models.LifeFact, int) {
	out := make([]models.LifeFact, 0, len(items))
	skipped := 0
	for i, item := range items {
		c, err := check(e.validator.facts, item)
		if err != nil {
			log.Debug(ctx, "skipping fact candidate", "index", i, "error", err)
			skipped++
			continue
		}
		category := defaultFactCategory
		if c.Category != nil && *c.Category != "" {
			category = *c.Category
		}
		out = append(out, models.LifeFact{Visibility: cat, Date: raw.Collected(), Summary: c.Summary, Category: category})
	}
	return out, skipped
}

func describe(raw collectors.RawData) Summary {
	s := Summary{Platform: raw.Platform()}
	switch d := raw.(type) {
	case *collectors.GitHubData:
		s.SourceItems = len(d.Repositories)
		s.PrimaryLanguages = d.Summary.PrimaryLanguages
		s.ActivityLevel = d.Summary.ActivityLevel
	case *collectors.WebsiteData:
		s.SourceItems = d.TotalPages
		s.PagesScraped = d.TotalPages
		s.ContentLength = len(d.MainContent)
	case *collectors.DocumentData:
		s.SourceItems = 1
		s.ContentLength = len(d.Text)
	}
	return s
}
