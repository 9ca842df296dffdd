// Package newsletter renders visibility-filtered digests of a timeline.
package newsletter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

// EventReader is the part of knowledge.Store the engine reads.
type EventReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetLifeEventsByDateRange(ctx context.Context, userID string, start, end time.Time, tiers []visibility.Tier) ([]*models.LifeEvent, error)
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func DefaultOptions() Options {
	return Options{Model: "claude-sonnet-4-20250514", Temperature: 0.7, MaxTokens: 2000}
}

type Result struct {
	Success     bool    `json:"success"`
	Content     string  `json:"content,omitempty"`
	Error       string  `json:"error,omitempty"`
	EventsCount int     `json:"events_count"`
	Summary     Summary `json:"summary"`
	// Events is the selected list in the order it was rendered.
	Events []*models.LifeEvent `json:"-"`
}

type Summary struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	VisibilityTiers []string  `json:"visibility_tiers"`
	EventsProcessed int       `json:"events_processed"`
	Model           string    `json:"model,omitempty"`
	UsedFallback    bool      `json:"used_fallback"`
}

type Engine struct {
	store EventReader
	llm   llm.Client
	opts  Options
	log   logging.Logger
}

// NewEngine builds an engine. client may be nil; every newsletter then
// uses the template.
func NewEngine(store EventReader, client llm.Client, opts Options, log logging.Logger) *Engine {
	if opts.Model == "" {
		opts.Model = DefaultOptions().Model
	}
	return &Engine{store: store, llm: client, opts: opts, log: log}
}

// Window returns the [start, end] range a config covers at now.
func Window(cfg Config, now time.Time) (time.Time, time.Time, error) {
	hours, err := cfg.Hours()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := now.Add(-time.Duration(hours) * time.Hour)
	if cfg.StartDate != nil && cfg.StartDate.After(start) {
		start = *cfg.StartDate
		if start.After(now) {
			start = now
		}
	}
	return start, now, nil
}

// Generate fails only when the config is invalid or the store cannot be
// read. A model failure falls back to the template over the same events.
func (e *Engine) Generate(ctx context.Context, userID string, cfg Config, now time.Time) *Result {
	log := e.log.With("user_id", userID, "newsletter", cfg.Name)

	if err := cfg.Validate(); err != nil {
		return failed(err)
	}
	start, end, err := Window(cfg, now)
	if err != nil {
		return failed(err)
	}
	tiers := visibility.Flatten(cfg.Visibility)

	res := &Result{Summary: Summary{
		Start:           start,
		End:             end,
		VisibilityTiers: visibility.Strings(tiers),
	}}

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return failed(fmt.Errorf("load user: %w", err))
	}
	events, err := e.store.GetLifeEventsByDateRange(ctx, userID, start, end, tiers)
	if err != nil {
		return failed(fmt.Errorf("load events: %w", err))
	}
	knowledge.SortNewestFirst(events)

	res.Events = events
	res.EventsCount = len(events)
	res.Summary.EventsProcessed = len(events)

	period := dateRange(start, end)
	content, err := e.render(ctx, user, cfg, events, period)
	if err != nil {
		log.Warn(ctx, "newsletter llm failed, using template", "error", err)
		content = renderFallback(user, cfg, events, period)
		res.Summary.UsedFallback = true
	} else {
		res.Summary.Model = e.opts.Model
	}

	res.Success = true
	res.Content = content
	log.Info(ctx, "newsletter generated",
		"events", res.EventsCount,
		"tiers", strings.Join(res.Summary.VisibilityTiers, ","),
		"fallback", res.Summary.UsedFallback)
	return res
}

func (e *Engine) render(ctx context.Context, u *models.User, cfg Config, events []*models.LifeEvent, period string) (string, error) {
	if e.llm == nil || !llm.Enabled(e.llm) {
		return "", fmt.Errorf("llm disabled")
	}
	text, err := e.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        userPrompt(u, cfg, events, period),
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty reply")
	}
	return text, nil
}

func failed(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}
