package models

import "time"

// SimulatedIntent persists a hold placed on the simulated processor.
type SimulatedIntent struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)"`
	Amount    int64             `gorm:"not null"`
	Currency  string            `gorm:"type:varchar(3);not null"`
	Status    string            `gorm:"type:varchar(20);not null"`
	Refunds   []SimulatedRefund `gorm:"foreignKey:IntentID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SimulatedRefund struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	IntentID  string `gorm:"type:varchar(36);not null;index"`
	Amount    int64  `gorm:"not null"`
	Status    string `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
}
