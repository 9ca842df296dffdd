package models

import (
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

// Subscription statuses.
const (
	SubscriptionActive       = "active"
	SubscriptionPaused       = "paused"
	SubscriptionUnsubscribed = "unsubscribed"
)

// Subscription delivers one user's newsletter to a friend at a fixed tier
// and frequency. Code is the secret the subscriber unsubscribes with.
type Subscription struct {
	ID              string
	UserID          string
	SubscriberEmail string
	SubscriberName  string
	Tier            visibility.Tier
	Frequency       string
	Status          string
	Code            string
	LastSent        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Delivery statuses.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Delivery records one send attempt.
type Delivery struct {
	ID             string
	SubscriptionID string
	Status         string
	Error          string
	Preview        string
	CreatedAt      time.Time
}
