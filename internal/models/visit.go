package models

import "time"

// Visit represents one recorded redirect stored in the database.
// Rows are immutable and only disappear with their link.
type Visit struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// LinkID is the foreign key referencing the Link that was followed
	LinkID string `gorm:"index;size:36;not null" json:"linkId"`

	// Raw header values, nil when the client didn't send them
	UserAgent *string `json:"userAgent"`
	Referer   *string `json:"referer"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// RequestMetadata carries the client headers captured on a redirect.
type RequestMetadata struct {
	UserAgent *string
	Referer   *string
}

// VisitEvent is a redirect whose accounting still has to be persisted.
// It is passed through the retry queue between goroutines.
type VisitEvent struct {
	LinkID    string    // The ID of the link that was followed
	Code      string    // Short code, for logs
	VisitID   string    // Pre-assigned so a replay never inserts twice
	Timestamp time.Time // When the redirect happened
	Metadata  RequestMetadata
}

// Visit converts the event into the row that records it.
func (e VisitEvent) Visit() *Visit {
	return &Visit{
		ID:        e.VisitID,
		LinkID:    e.LinkID,
		UserAgent: e.Metadata.UserAgent,
		Referer:   e.Metadata.Referer,
		CreatedAt: e.Timestamp,
	}
}
