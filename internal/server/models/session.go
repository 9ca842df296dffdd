package models

import "time"

// OnboardingSession is the persisted envelope of an in-progress onboarding
// flow. Username and Email are lifted out of State so identity reservations
// can be queried; State holds the typed step data encoded as JSON.
type OnboardingSession struct {
	ID        string
	Step      string
	Username  string
	Email     string
	State     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}
