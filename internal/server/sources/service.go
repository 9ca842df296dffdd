// Package sources refreshes the timelines of onboarded users from the
// platforms they connected.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/cryptox"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/server/onboarding"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

type Report struct {
	Sources       int      `json:"sources"`
	Refreshed     int      `json:"refreshed"`
	Failed        int      `json:"failed"`
	EventsAdded   int      `json:"events_added"`
	EventsSkipped int      `json:"events_skipped"`
	Errors        []string `json:"errors,omitempty"`
}

type SourceService struct {
	store      knowledge.Store
	collectors onboarding.CollectorSource
	extractor  onboarding.Extractor
	secret     []byte
	log        logging.Logger
}

func NewSourceService(store knowledge.Store, cs onboarding.CollectorSource, ex onboarding.Extractor, secret []byte, log logging.Logger) *SourceService {
	return &SourceService{store: store, collectors: cs, extractor: ex, secret: secret, log: log}
}

// Refresh re-collects every source of userID and stores events not seen
// before. A failing source is counted and logged; the others still run.
func (s *SourceService) Refresh(ctx context.Context, userID string, now time.Time) (*Report, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	srcs, err := s.store.GetInfoSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	pool, err := s.store.GetVisibilityCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	rep := &Report{Sources: len(srcs)}
	for _, src := range srcs {
		log := s.log.With("user_id", userID, "platform", src.Platform, "identifier", src.Identifier)
		added, skipped, err := s.refreshOne(ctx, src, pool, now)
		if err != nil {
			log.Warn(ctx, "source refresh failed", "error", err)
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s/%s: %v", src.Platform, src.Identifier, err))
			continue
		}
		log.Info(ctx, "source refreshed", "added", added, "skipped", skipped)
		rep.Refreshed++
		rep.EventsAdded += added
		rep.EventsSkipped += skipped
	}
	return rep, nil
}

func (s *SourceService) refreshOne(ctx context.Context, src *models.InfoSource, pool []visibility.Category, now time.Time) (int, int, error) {
	c, err := s.collectors.Get(src.Platform)
	if err != nil {
		return 0, 0, err
	}

	var creds collectors.Credentials
	if src.Credential != nil {
		token, err := cryptox.Open(src.Credential, s.secret)
		if err != nil {
			return 0, 0, fmt.Errorf("open credential: %w", err)
		}
		creds.Token = string(token)
	}

	raw, err := c.Fetch(ctx, src.Identifier, creds)
	if err != nil {
		return 0, 0, err
	}
	res := s.extractor.Extract(ctx, raw, pool)

	added, skipped := 0, 0
	for _, e := range res.Events {
		exists, err := s.store.LifeEventExists(ctx, src.UserID, e.Summary, e.StartDate)
		if err != nil {
			return added, skipped, err
		}
		if exists {
			skipped++
			continue
		}
		e := e
		e.UserID = src.UserID
		if err := s.store.CreateLifeEvent(ctx, &e); err != nil {
			return added, skipped, err
		}
		added++
	}

	if err := s.store.TouchInfoSource(ctx, src.ID, now); err != nil {
		return added, skipped, err
	}
	return added, skipped, nil
}
