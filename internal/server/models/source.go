package models

import (
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/cryptox"
)

// InfoSource is an external platform a user connected, kept so the timeline
// can be refreshed later. The access token, if any, is sealed.
type InfoSource struct {
	ID          string
	UserID      string
	Platform    string
	Identifier  string
	Credential  *cryptox.Sealed
	LastChecked *time.Time
	CreatedAt   time.Time
}
