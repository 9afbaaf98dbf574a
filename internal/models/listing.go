package models

import "time"

// Listing is the local copy of a listing owned by the listing service.
// ProprietorID owns the property; HostID is the main tenant operating it.
type Listing struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProprietorID string    `gorm:"not null;index" json:"proprietor_id"`
	HostID       string    `gorm:"not null;index" json:"host_id"`
	NightlyRate  int64     `gorm:"not null" json:"nightly_rate"`
	Currency     string    `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	MaxGuests    int       `gorm:"not null;default:1" json:"max_guests"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
