package models

import (
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

// LifeEvent is a dated occurrence in a person's timeline.
type LifeEvent struct {
	ID             string
	UserID         string
	Visibility     visibility.Category
	StartDate      time.Time
	EndDate        *time.Time
	Summary        string
	AssociatedDocs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LifeFact is a timeless attribute of a person. Date records when the fact
// was captured, not when anything happened.
type LifeFact struct {
	ID             string
	UserID         string
	Visibility     visibility.Category
	Date           time.Time
	Summary        string
	Category       string
	AssociatedDocs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Retag returns a copy of e carrying c. Categories are values, so the copy
// shares nothing mutable with e except the docs slice, which is cloned.
func (e LifeEvent) Retag(c visibility.Category) LifeEvent {
	e.Visibility = c
	e.AssociatedDocs = append([]string(nil), e.AssociatedDocs...)
	return e
}

func (f LifeFact) Retag(c visibility.Category) LifeFact {
	f.Visibility = c
	f.AssociatedDocs = append([]string(nil), f.AssociatedDocs...)
	return f
}
