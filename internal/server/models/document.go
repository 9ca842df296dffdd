package models

import "time"

// Document describes an uploaded file. The bytes live in object storage
// under StorageKey.
type Document struct {
	ID          string
	UserID      string
	Filename    string
	ContentType string
	Size        int64
	StorageKey  string
	Description string
	CreatedAt   time.Time
}
