package onboarding

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/cryptox"
	"github.com/dmitrijs2005/howyoubeen/internal/server/extraction"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

type Step string

const (
	StepStart                Step = "start"
	StepBasicInfoComplete    Step = "basic_info_complete"
	StepDataSourcesAdded     Step = "data_sources_added"
	StepVisibilityConfigured Step = "visibility_configured"
	StepProcessing           Step = "processing"
	StepCompleted            Step = sessions.StepCompleted
)

type BasicInfo struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Bio      string `json:"bio,omitempty"`
}

// ConnectedSource is a platform connected during onboarding together with
// what was extracted from it. Nothing here is persisted until Process.
type ConnectedSource struct {
	Platform    string             `json:"platform"`
	Identifier  string             `json:"identifier"`
	Credential  *cryptox.Sealed    `json:"credential,omitempty"`
	Summary     extraction.Summary `json:"summary"`
	Events      []models.LifeEvent `json:"events,omitempty"`
	Facts       []models.LifeFact  `json:"facts,omitempty"`
	ConnectedAt time.Time          `json:"connected_at"`
}

type UploadedDocument struct {
	ID          string             `json:"id"`
	Filename    string             `json:"filename"`
	ContentType string             `json:"content_type"`
	Size        int64              `json:"size"`
	StorageKey  string             `json:"storage_key"`
	Description string             `json:"description,omitempty"`
	Events      []models.LifeEvent `json:"events,omitempty"`
	Facts       []models.LifeFact  `json:"facts,omitempty"`
	UploadedAt  time.Time          `json:"uploaded_at"`
}

// Session is the typed onboarding state. Step and timestamps live in the
// envelope columns; the rest is encoded into the state column.
type Session struct {
	ID        string    `json:"-"`
	Step      Step      `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`

	BasicInfo  BasicInfo             `json:"basic_info"`
	Sources    []ConnectedSource     `json:"sources,omitempty"`
	Documents  []UploadedDocument    `json:"documents,omitempty"`
	Visibility []visibility.Category `json:"visibility,omitempty"`

	// PendingUserID is fixed before the first Process attempt so retries
	// create the same user.
	PendingUserID string `json:"pending_user_id,omitempty"`
	AISummary     string `json:"ai_summary,omitempty"`
}

func (s *Session) envelope() (*models.OnboardingSession, error) {
	state, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return &models.OnboardingSession{
		ID:        s.ID,
		Step:      string(s.Step),
		Username:  s.BasicInfo.Username,
		Email:     s.BasicInfo.Email,
		State:     state,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		ExpiresAt: s.ExpiresAt,
	}, nil
}

func fromEnvelope(m *models.OnboardingSession) (*Session, error) {
	s := &Session{}
	if len(m.State) > 0 {
		if err := json.Unmarshal(m.State, s); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", m.ID, err)
		}
	}
	s.ID = m.ID
	s.Step = Step(m.Step)
	s.CreatedAt = m.CreatedAt
	s.UpdatedAt = m.UpdatedAt
	s.ExpiresAt = m.ExpiresAt
	return s, nil
}

func (s *Session) eventCount() int {
	n := 0
	for _, src := range s.Sources {
		n += len(src.Events)
	}
	for _, d := range s.Documents {
		n += len(d.Events)
	}
	return n
}

func (s *Session) factCount() int {
	n := 0
	for _, src := range s.Sources {
		n += len(src.Facts)
	}
	for _, d := range s.Documents {
		n += len(d.Facts)
	}
	return n
}
