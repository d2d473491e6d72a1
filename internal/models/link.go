package models

import "time"

// Link représente un lien raccourci dans la base de données.
// Clicks and LastClickedAt are only written by the redirect path.
type Link struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Code          string     `gorm:"uniqueIndex;size:8;not null" json:"code"`
	URL           string     `gorm:"not null" json:"url"`
	Clicks        int64      `gorm:"not null;default:0;index" json:"clicks"`
	LastClickedAt *time.Time `json:"lastClickedAt"`
	CreatedAt     time.Time  `gorm:"not null;index" json:"createdAt"`

	// Visits is never loaded implicitly; deleting a link cascades to them.
	Visits []Visit `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

// LinkDetails is a link together with its most recent visits, newest first.
type LinkDetails struct {
	Link
	Visits []Visit `json:"visits"`
}

// TopLink is the most clicked link reported by the aggregate statistics.
type TopLink struct {
	Code   string `json:"code"`
	Clicks int64  `json:"clicks"`
}

// Stats holds the cross-link aggregates shown on the dashboard.
// TopLink is nil when no link has ever been clicked.
type Stats struct {
	TotalLinks  int64    `json:"totalLinks"`
	TotalClicks int64    `json:"totalClicks"`
	ClicksToday int64    `json:"clicksToday"`
	TopLink     *TopLink `json:"topLink"`
}
