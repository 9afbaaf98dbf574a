package models

import "time"

// PartyBalance holds the running earnings of a proprietor or host. It is only
// credited by payout allocation.
type PartyBalance struct {
	UserID         string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	TotalEarnings  int64     `gorm:"not null;default:0" json:"total_earnings"`
	PayableBalance int64     `gorm:"not null;default:0" json:"payable_balance"`
	UpdatedAt      time.Time `json:"updated_at"`
}
