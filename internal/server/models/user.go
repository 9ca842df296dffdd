// Package models defines the records persisted by the knowledge store.
package models

import "time"

// User is the person whose timeline is kept.
type User struct {
	ID                  string
	Username            string
	Email               string
	FullName            string
	Bio                 string
	AISummary           string
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DisplayName prefers the full name, then the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
