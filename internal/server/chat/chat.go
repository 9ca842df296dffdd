// Package chat answers a friend's questions about a user from the part of
// the timeline the friend is allowed to see.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

const (
	maxEvents      = 20
	maxFacts       = 30
	maxHistory     = 10
	maxSuggestions = 3
	maxMatches     = 5
)

// Reader is the part of knowledge.Store chat reads.
type Reader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetLifeEventsByDateRange(ctx context.Context, userID string, start, end time.Time, tiers []visibility.Tier) ([]*models.LifeEvent, error)
	GetLifeFacts(ctx context.Context, userID, category string) ([]*models.LifeFact, error)
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func DefaultOptions() Options {
	return Options{Model: "claude-3-haiku-20240307", Temperature: 0.7, MaxTokens: 1000}
}

// Turn is one earlier message of the conversation. Role is "user" or
// "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Answer struct {
	Response           string   `json:"response"`
	SuggestedQuestions []string `json:"suggested_questions"`
	EventsUsed         int      `json:"events_used"`
	FactsUsed          int      `json:"facts_used"`
	UsedFallback       bool     `json:"used_fallback"`
}

type Service struct {
	store Reader
	llm   llm.Client
	opts  Options
	log   logging.Logger
}

// NewService builds a chat service. client may be nil; answers then come
// from keyword matching over the visible entries.
func NewService(store Reader, client llm.Client, opts Options, log logging.Logger) *Service {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	return &Service{store: store, llm: client, opts: opts, log: log}
}

// Ask answers question as userID's assistant for a viewer holding tiers.
// Nil tiers is the owner and sees everything. Entries the viewer may not
// see never reach the model.
func (s *Service) Ask(ctx context.Context, userID string, tiers []visibility.Tier, question string, history []Turn, now time.Time) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", common.ErrInvalidInput)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	events, err := s.store.GetLifeEventsByDateRange(ctx, userID, time.Time{}, now, tiers)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	facts, err := s.store.GetLifeFacts(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	facts = knowledge.VisibleFacts(facts, tiers)
	if len(facts) > maxFacts {
		facts = facts[:maxFacts]
	}

	ans := &Answer{
		EventsUsed:         len(events),
		FactsUsed:          len(facts),
		SuggestedQuestions: suggestions(events),
	}

	text, err := s.complete(ctx, user, events, facts, history, question)
	if err != nil {
		s.log.Warn(ctx, "chat llm failed, answering from entries", "user_id", userID, "error", err)
		text = fallbackAnswer(user, events, facts, question)
		ans.UsedFallback = true
	}
	ans.Response = text
	return ans, nil
}

func (s *Service) complete(ctx context.Context, u *models.User, events []*models.LifeEvent, facts []*models.LifeFact, history []Turn, question string) (string, error) {
	if s.llm == nil || !llm.Enabled(s.llm) {
		return "", fmt.Errorf("llm disabled")
	}
	text, err := s.llm.Complete(ctx, llm.Request{
		System:      systemPrompt(u, events, facts),
		User:        userPrompt(history, question),
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
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

func suggestions(events []*models.LifeEvent) []string {
	out := []string{
		"What else has been happening lately?",
		"Tell me more about recent projects or interests",
		"How are things going overall?",
	}
	if len(events) > 0 {
		out = append([]string{"Tell me more about " + truncate(events[0].Summary, 50)}, out...)
	}
	return out[:maxSuggestions]
}

// fallbackAnswer lists visible entries sharing a keyword with question.
func fallbackAnswer(u *models.User, events []*models.LifeEvent, facts []*models.LifeFact, question string) string {
	name := u.DisplayName()
	words := keywords(question)

	var hits []string
	for _, e := range events {
		if matches(e.Summary, words) {
			hits = append(hits, fmt.Sprintf("%s (%s)", e.Summary, e.StartDate.Format(dateLayout)))
		}
	}
	for _, f := range facts {
		if matches(f.Summary, words) {
			hits = append(hits, f.Summary)
		}
	}
	if len(hits) > maxMatches {
		hits = hits[:maxMatches]
	}

	switch {
	case len(hits) > 0:
		return fmt.Sprintf("Here's what %s has shared about that:\n- %s", name, strings.Join(hits, "\n- "))
	case len(events) > 0:
		e := events[0]
		return fmt.Sprintf("I don't have anything about that from %s. The latest update is: %s (%s).",
			name, e.Summary, e.StartDate.Format(dateLayout))
	default:
		return fmt.Sprintf("%s hasn't shared any updates with you yet.", name)
	}
}

var stopwords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "with": true, "have": true,
	"been": true, "about": true, "their": true, "they": true, "this": true, "that": true,
	"does": true, "doing": true, "lately": true, "there": true, "tell": true, "more": true,
}

func keywords(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len([]rune(f)) >= 4 && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

func matches(summary string, words []string) bool {
	s := strings.ToLower(summary)
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func trimHistory(history []Turn) []Turn {
	if len(history) > maxHistory {
		return history[len(history)-maxHistory:]
	}
	return history
}
