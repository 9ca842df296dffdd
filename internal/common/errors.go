// Package common defines shared constants and sentinel errors used across
// the howyoubeen components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrStorage    = errors.New("storage error")

	// Identity and validation errors, surfaced to the caller as is.
	ErrDuplicateIdentity = errors.New("username or email already taken")
	ErrInvalidVisibility = errors.New("invalid visibility category")
	ErrInvalidInput      = errors.New("invalid input")

	// Extraction pipeline. ErrExtractionUnusable never leaves the engine.
	ErrExtractionUnusable = errors.New("extraction output unusable")
	ErrLLMUnavailable     = errors.New("llm unavailable")

	// Collector errors.
	ErrCollectorFailure = errors.New("collector failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrorUnauthorized   = errors.New("unauthorized")

	// Onboarding flow.
	ErrInvalidStep          = errors.New("operation not allowed in current step")
	ErrSessionExpired       = errors.New("onboarding session expired")
	ErrProcessingIncomplete = errors.New("processing incomplete")

	// Newsletter subscriptions.
	ErrDuplicateSubscription = errors.New("already subscribed")

	// Share token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
