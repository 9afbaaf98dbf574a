package models

import "time"

// AvailabilityDay is one calendar day of a listing. Rows are upserted so a
// day may or may not exist before it is first booked.
type AvailabilityDay struct {
	ListingID     uint      `gorm:"primaryKey" json:"listing_id"`
	Date          time.Time `gorm:"primaryKey;type:date" json:"date"`
	Booked        bool      `gorm:"not null;default:false" json:"booked"`
	ReservationID *string   `gorm:"type:varchar(36)" json:"reservation_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
