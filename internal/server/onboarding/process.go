package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/google/uuid"
)

var nextSteps = []string{
	"Share your profile URL with friends",
	"Test your AI by chatting with it",
	"Upload more content to enrich your profile",
}

type ProcessResult struct {
	UserID     string   `json:"user_id"`
	ProfileURL string   `json:"profile_url"`
	AISummary  string   `json:"ai_summary"`
	NextSteps  []string `json:"next_steps"`
	Events     int      `json:"events"`
	Facts      int      `json:"facts"`
}

// Process materializes the session. Any failure leaves the session in
// processing and is reported as common.ErrProcessingIncomplete; calling
// Process again retries with the same user id.
func (o *Orchestrator) Process(ctx context.Context, id string) (*ProcessResult, error) {
	s, err := o.load(ctx, id, StepVisibilityConfigured, StepProcessing)
	if err != nil {
		return nil, err
	}
	log := o.log.With("session_id", id, "username", s.BasicInfo.Username)

	if s.PendingUserID == "" {
		s.PendingUserID = uuid.NewString()
	}
	s.Step = StepProcessing
	if err := o.save(ctx, s); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrProcessingIncomplete, err)
	}

	if s.AISummary == "" {
		s.AISummary = o.profileSummary(ctx, s)
	}

	events, facts, err := o.materialize(ctx, s)
	if err != nil {
		log.Error(ctx, "onboarding processing failed", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrProcessingIncomplete, err)
	}

	s.Step = StepCompleted
	if err := o.save(ctx, s); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrProcessingIncomplete, err)
	}

	log.Info(ctx, "onboarding completed", "user_id", s.PendingUserID, "events", events, "facts", facts)
	return &ProcessResult{
		UserID:     s.PendingUserID,
		ProfileURL: common.ProfilePathPrefix + s.BasicInfo.Username,
		AISummary:  s.AISummary,
		NextSteps:  append([]string(nil), nextSteps...),
		Events:     events,
		Facts:      facts,
	}, nil
}

// materialize writes the user and everything collected in one
// transaction. A user already completed by an earlier attempt whose
// session update failed is accepted as is.
func (o *Orchestrator) materialize(ctx context.Context, s *Session) (int, int, error) {
	if u, err := o.store.GetUser(ctx, s.PendingUserID); err == nil && u.OnboardingCompleted {
		return s.eventCount(), s.factCount(), nil
	} else if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return 0, 0, err
	}

	cat := visibility.PickDefault(s.Visibility, o.opts.Default)
	userID := s.PendingUserID
	var events, facts int

	err := o.store.Atomically(ctx, func(ctx context.Context, st knowledge.Store) error {
		events, facts = 0, 0

		u := &models.User{
			ID:       userID,
			Username: s.BasicInfo.Username,
			Email:    s.BasicInfo.Email,
			FullName: s.BasicInfo.FullName,
			Bio:      s.BasicInfo.Bio,
		}
		if err := st.CreateUser(ctx, u); err != nil {
			return err
		}
		if len(s.Visibility) > 0 {
			if err := st.CreateVisibilityCategories(ctx, userID, s.Visibility); err != nil {
				return err
			}
		}

		for _, src := range s.Sources {
			if err := st.CreateInfoSource(ctx, &models.InfoSource{
				UserID:     userID,
				Platform:   src.Platform,
				Identifier: src.Identifier,
				Credential: src.Credential,
			}); err != nil {
				return err
			}
			n, m, err := writeEntries(ctx, st, userID, cat, src.Events, src.Facts, nil)
			if err != nil {
				return err
			}
			events, facts = events+n, facts+m
		}

		for _, d := range s.Documents {
			if err := st.CreateDocument(ctx, &models.Document{
				ID:          d.ID,
				UserID:      userID,
				Filename:    d.Filename,
				ContentType: d.ContentType,
				Size:        d.Size,
				StorageKey:  d.StorageKey,
				Description: d.Description,
			}); err != nil {
				return err
			}
			n, m, err := writeEntries(ctx, st, userID, cat, d.Events, d.Facts, []string{d.ID})
			if err != nil {
				return err
			}
			events, facts = events+n, facts+m
		}

		return st.CompleteOnboarding(ctx, userID, s.AISummary)
	})
	return events, facts, err
}

// writeEntries persists copies re-tagged with cat; the session keeps its
// own values.
func writeEntries(ctx context.Context, st knowledge.Store, userID string, cat visibility.Category,
	events []models.LifeEvent, facts []models.LifeFact, docs []string) (int, int, error) {
	for _, e := range events {
		e := e.Retag(cat)
		e.ID, e.UserID = "", userID
		if docs != nil {
			e.AssociatedDocs = append(e.AssociatedDocs, docs...)
		}
		if err := st.CreateLifeEvent(ctx, &e); err != nil {
			return 0, 0, err
		}
	}
	for _, f := range facts {
		f := f.Retag(cat)
		f.ID, f.UserID = "", userID
		if docs != nil {
			f.AssociatedDocs = append(f.AssociatedDocs, docs...)
		}
		if err := st.CreateLifeFact(ctx, &f); err != nil {
			return 0, 0, err
		}
	}
	return len(events), len(facts), nil
}
