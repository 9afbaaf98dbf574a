package models

import "time"

type ReviewerRole string

const (
	ReviewerGuest ReviewerRole = "guest"
	ReviewerHost  ReviewerRole = "host"
)

type Review struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ReservationID string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_review_author" json:"reservation_id"`
	AuthorID      string       `gorm:"not null" json:"author_id"`
	AuthorRole    ReviewerRole `gorm:"type:varchar(10);not null;uniqueIndex:idx_review_author" json:"author_role"`
	Rating        int          `gorm:"not null" json:"rating"`
	Comment       string       `json:"comment"`
	Published     bool         `gorm:"not null;default:false;index" json:"published"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
}
