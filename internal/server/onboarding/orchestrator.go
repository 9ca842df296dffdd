// Package onboarding drives a new user from an empty session to a
// persisted timeline. Collected data stays on the session until Process
// writes everything in one store transaction.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/cryptox"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/extraction"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/server/storage"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/google/uuid"
)

const maxDocumentSize = 10 << 20

// SessionStore persists session envelopes.
type SessionStore interface {
	Create(ctx context.Context, s *models.OnboardingSession) error
	Get(ctx context.Context, id string) (*models.OnboardingSession, error)
	Update(ctx context.Context, s *models.OnboardingSession) error
	IdentityReserved(ctx context.Context, username, email, excludeID string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type CollectorSource interface {
	Get(platform string) (collectors.Collector, error)
}

type Extractor interface {
	Extract(ctx context.Context, raw collectors.RawData, pool []visibility.Category) *extraction.Result
}

type Deps struct {
	Sessions   SessionStore
	Store      knowledge.Store
	Collectors CollectorSource
	Extractor  Extractor
	// Blobs may be nil; document uploads are then rejected.
	Blobs storage.BlobStore
	// LLM may be nil; profile summaries then use the template.
	LLM llm.Client
	Log logging.Logger
}

type Options struct {
	SessionTTL time.Duration
	// Secret seals access tokens kept on sessions and info sources.
	Secret       []byte
	Default      visibility.Category
	SummaryModel string
}

type Orchestrator struct {
	sessions   SessionStore
	store      knowledge.Store
	collectors CollectorSource
	extractor  Extractor
	blobs      storage.BlobStore
	llm        llm.Client
	log        logging.Logger
	opts       Options
	now        func() time.Time
}

func NewOrchestrator(d Deps, opts Options) *Orchestrator {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = common.DefaultSessionTTL
	}
	if opts.Default.Tier == "" {
		opts.Default = visibility.Default
	}
	return &Orchestrator{
		sessions:   d.Sessions,
		store:      d.Store,
		collectors: d.Collectors,
		extractor:  d.Extractor,
		blobs:      d.Blobs,
		llm:        d.LLM,
		log:        d.Log,
		opts:       opts,
		now:        time.Now,
	}
}

type SourceCredentials struct {
	Identifier string
	Token      string
}

type SourceSummary struct {
	Platform   string             `json:"platform"`
	Identifier string             `json:"identifier"`
	Summary    extraction.Summary `json:"summary"`
}

type Status struct {
	SessionID       string    `json:"session_id"`
	Step            Step      `json:"step"`
	Username        string    `json:"username,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	SourcesCount    int       `json:"sources_count"`
	DocumentsCount  int       `json:"documents_count"`
	EventsCount     int       `json:"events_count"`
	FactsCount      int       `json:"facts_count"`
	VisibilityCount int       `json:"visibility_count"`
}

func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	now := o.now()
	s := &Session{
		ID:        uuid.NewString(),
		Step:      StepStart,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(o.opts.SessionTTL),
	}
	env, err := s.envelope()
	if err != nil {
		return "", err
	}
	if err := o.sessions.Create(ctx, env); err != nil {
		return "", fmt.Errorf("%w: create session: %w", common.ErrStorage, err)
	}
	o.log.Info(ctx, "onboarding started", "session_id", s.ID)
	return s.ID, nil
}

// SubmitBasicInfo claims a username and email for the session. A
// collision with a stored user or another live session leaves every
// session as it was.
func (o *Orchestrator) SubmitBasicInfo(ctx context.Context, id string, info BasicInfo) error {
	s, err := o.load(ctx, id, StepStart)
	if err != nil {
		return err
	}

	info.Username = strings.TrimSpace(info.Username)
	info.Email = strings.TrimSpace(info.Email)
	info.FullName = strings.TrimSpace(info.FullName)
	info.Bio = strings.TrimSpace(info.Bio)
	if err := validateBasicInfo(info); err != nil {
		return err
	}

	if err := o.checkIdentity(ctx, id, info); err != nil {
		return err
	}

	s.BasicInfo = info
	s.Step = StepBasicInfoComplete
	return o.save(ctx, s)
}

func validateBasicInfo(info BasicInfo) error {
	var errs []error
	if info.Username == "" {
		errs = append(errs, errors.New("username is required"))
	} else if strings.ContainsAny(info.Username, " /\t") {
		errs = append(errs, errors.New("username must not contain spaces or slashes"))
	}
	if info.Email == "" {
		errs = append(errs, errors.New("email is required"))
	} else if _, err := mail.ParseAddress(info.Email); err != nil {
		errs = append(errs, fmt.Errorf("email: %w", err))
	}
	if info.FullName == "" {
		errs = append(errs, errors.New("full name is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

func (o *Orchestrator) checkIdentity(ctx context.Context, id string, info BasicInfo) error {
	if _, err := o.store.GetUserByUsername(ctx, info.Username); err == nil {
		return fmt.Errorf("%w: username %q", common.ErrDuplicateIdentity, info.Username)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if _, err := o.store.GetUserByEmail(ctx, info.Email); err == nil {
		return fmt.Errorf("%w: email %q", common.ErrDuplicateIdentity, info.Email)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	reserved, err := o.sessions.IdentityReserved(ctx, info.Username, info.Email, id, o.now())
	if err != nil {
		return fmt.Errorf("%w: check reservations: %w", common.ErrStorage, err)
	}
	if reserved {
		return fmt.Errorf("%w: claimed by another onboarding session", common.ErrDuplicateIdentity)
	}
	return nil
}

// AddDataSource collects and extracts one platform. Results stay on the
// session; a collector failure is returned as is and the session is not
// modified.
func (o *Orchestrator) AddDataSource(ctx context.Context, id, platform string, creds SourceCredentials) (*SourceSummary, error) {
	s, err := o.load(ctx, id, StepStart, StepBasicInfoComplete, StepDataSourcesAdded, StepVisibilityConfigured)
	if err != nil {
		return nil, err
	}

	identifier := strings.TrimSpace(creds.Identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", common.ErrInvalidInput)
	}
	c, err := o.collectors.Get(platform)
	if err != nil {
		return nil, err
	}

	raw, err := c.Fetch(ctx, identifier, collectors.Credentials{Token: creds.Token})
	if err != nil {
		o.log.Warn(ctx, "collector failed", "session_id", id, "platform", platform, "error", err)
		return nil, err
	}
	res := o.extractor.Extract(ctx, raw, s.Visibility)

	src := ConnectedSource{
		Platform:    platform,
		Identifier:  identifier,
		Summary:     res.Summary,
		Events:      res.Events,
		Facts:       res.Facts,
		ConnectedAt: o.now(),
	}
	if creds.Token != "" {
		sealed, err := cryptox.Seal([]byte(creds.Token), o.opts.Secret)
		if err != nil {
			return nil, fmt.Errorf("seal credential: %w", err)
		}
		src.Credential = sealed
	}

	s.Sources = replaceSource(s.Sources, src)
	if s.Step == StepBasicInfoComplete {
		s.Step = StepDataSourcesAdded
	}
	if err := o.save(ctx, s); err != nil {
		return nil, err
	}

	return &SourceSummary{Platform: platform, Identifier: identifier, Summary: res.Summary}, nil
}

// replaceSource keeps one entry per platform and identifier; reconnecting
// replaces the earlier results.
func replaceSource(list []ConnectedSource, src ConnectedSource) []ConnectedSource {
	for i := range list {
		if list[i].Platform == src.Platform && strings.EqualFold(list[i].Identifier, src.Identifier) {
			list[i] = src
			return list
		}
	}
	return append(list, src)
}

// UploadDocument stores the bytes and, for text documents, extracts facts
// from the content.
func (o *Orchestrator) UploadDocument(ctx context.Context, id, filename, contentType string, content []byte, description string) (*UploadedDocument, error) {
	s, err := o.load(ctx, id, StepStart, StepBasicInfoComplete, StepDataSourcesAdded, StepVisibilityConfigured)
	if err != nil {
		return nil, err
	}
	if o.blobs == nil {
		return nil, fmt.Errorf("%w: document storage is not configured", common.ErrInvalidInput)
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, fmt.Errorf("%w: filename is required", common.ErrInvalidInput)
	}
	if len(content) > maxDocumentSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", common.ErrInvalidInput, maxDocumentSize)
	}

	now := o.now()
	doc := UploadedDocument{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(content)),
		StorageKey:  storage.NewKey(now),
		Description: strings.TrimSpace(description),
		UploadedAt:  now,
	}
	if err := o.blobs.Put(ctx, doc.StorageKey, contentType, content); err != nil {
		return nil, fmt.Errorf("%w: store document: %w", common.ErrStorage, err)
	}

	if isText(filename, contentType) {
		res := o.extractor.Extract(ctx, &collectors.DocumentData{
			Filename:    filename,
			Description: doc.Description,
			Text:        string(content),
			CollectedAt: now,
		}, s.Visibility)
		doc.Events = res.Events
		doc.Facts = res.Facts
	}

	s.Documents = append(s.Documents, doc)
	if s.Step == StepBasicInfoComplete {
		s.Step = StepDataSourcesAdded
	}
	if err := o.save(ctx, s); err != nil {
		return nil, err
	}
	return &doc, nil
}

func isText(filename, contentType string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// ConfigureVisibility records the sharing categories. The first one tags
// every entry written by Process.
func (o *Orchestrator) ConfigureVisibility(ctx context.Context, id string, cats []visibility.Category) error {
	s, err := o.load(ctx, id, StepBasicInfoComplete, StepDataSourcesAdded)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return fmt.Errorf("%w: at least one category is required", common.ErrInvalidVisibility)
	}
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	s.Visibility = append([]visibility.Category(nil), cats...)
	s.Step = StepVisibilityConfigured
	return o.save(ctx, s)
}

func (o *Orchestrator) Status(ctx context.Context, id string) (*Status, error) {
	env, err := o.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := fromEnvelope(env)
	if err != nil {
		return nil, err
	}
	return &Status{
		SessionID:       s.ID,
		Step:            s.Step,
		Username:        s.BasicInfo.Username,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ExpiresAt:       s.ExpiresAt,
		SourcesCount:    len(s.Sources),
		DocumentsCount:  len(s.Documents),
		EventsCount:     s.eventCount(),
		FactsCount:      s.factCount(),
		VisibilityCount: len(s.Visibility),
	}, nil
}

// CleanupExpired deletes unfinished sessions whose TTL has passed.
func (o *Orchestrator) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := o.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%w: cleanup sessions: %w", common.ErrStorage, err)
	}
	if n > 0 {
		o.log.Info(ctx, "expired onboarding sessions removed", "count", n)
	}
	return n, nil
}

// load fetches a live session and checks that its step is one of allowed.
func (o *Orchestrator) load(ctx context.Context, id string, allowed ...Step) (*Session, error) {
	env, err := o.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: load session: %w", common.ErrStorage, err)
	}
	s, err := fromEnvelope(env)
	if err != nil {
		return nil, err
	}
	if s.Step != StepCompleted && !o.now().Before(s.ExpiresAt) {
		return nil, common.ErrSessionExpired
	}
	for _, step := range allowed {
		if s.Step == step {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: session is in %s", common.ErrInvalidStep, s.Step)
}

func (o *Orchestrator) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = o.now()
	env, err := s.envelope()
	if err != nil {
		return err
	}
	if err := o.sessions.Update(ctx, env); err != nil {
		return fmt.Errorf("%w: save session: %w", common.ErrStorage, err)
	}
	return nil
}
