package models

import (
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/split"
)

type ReservationStatus string

const (
	StatusPendingHost ReservationStatus = "pending_host"
	StatusConfirmed   ReservationStatus = "confirmed"
	StatusCancelled   ReservationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
	PaymentCanceled   PaymentStatus = "canceled"
)

type CautionStatus string

const (
	CautionNone       CautionStatus = "none"
	CautionAuthorized CautionStatus = "authorized"
	CautionCaptured   CautionStatus = "captured"
	CautionReleased   CautionStatus = "released"
)

type HostValidation string

const (
	HostPending  HostValidation = "pending"
	HostAccepted HostValidation = "accepted"
	HostRejected HostValidation = "rejected"
)

type CancelledBy string

const (
	CancelledByNone   CancelledBy = ""
	CancelledByGuest  CancelledBy = "guest"
	CancelledByHost   CancelledBy = "host"
	CancelledBySystem CancelledBy = "system"
)

type RefundStatus string

const (
	RefundNone    RefundStatus = "none"
	RefundPending RefundStatus = "pending"
	RefundIssued  RefundStatus = "issued"
	RefundSkipped RefundStatus = "skipped"
)

type Reservation struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ListingID    uint   `gorm:"not null;index" json:"listing_id"`
	GuestID      string `gorm:"not null;index" json:"guest_id"`
	HostID       string `gorm:"not null;index" json:"host_id"`
	ProprietorID string `gorm:"not null" json:"proprietor_id"`

	CheckIn     time.Time `gorm:"type:date;not null" json:"check_in"`
	CheckOut    time.Time `gorm:"type:date;not null;index" json:"check_out"`
	GuestsCount int       `gorm:"not null" json:"guests_count"`

	AccommodationAmount int64  `gorm:"not null" json:"accommodation_amount"`
	PlatformFeeAmount   int64  `gorm:"not null" json:"platform_fee_amount"`
	TaxAmount           int64  `gorm:"not null" json:"tax_amount"`
	TotalPrice          int64  `gorm:"not null" json:"total_price"`
	Currency            string `gorm:"type:varchar(3);not null" json:"currency"`

	TransactionRef gateway.Ref `gorm:"embedded;embeddedPrefix:transaction_ref_" json:"transaction_ref"`
	CautionRef     gateway.Ref `gorm:"embedded;embeddedPrefix:caution_ref_" json:"caution_ref"`

	Status         ReservationStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus  PaymentStatus     `gorm:"type:varchar(20);not null" json:"payment_status"`
	CautionStatus  CautionStatus     `gorm:"type:varchar(20);not null" json:"caution_status"`
	HostValidation HostValidation    `gorm:"type:varchar(20);not null;index" json:"host_validation"`

	ProprietorShare int64 `gorm:"not null" json:"proprietor_share"`
	MainTenantShare int64 `gorm:"not null" json:"main_tenant_share"`
	PlatformShare   int64 `gorm:"not null" json:"platform_share"`

	RefundDeadlineFull time.Time `gorm:"not null" json:"refund_deadline_full"`
	RefundDeadlineZero time.Time `gorm:"not null" json:"refund_deadline_zero"`
	BalancesAllocated  bool      `gorm:"not null;default:false;index" json:"balances_allocated"`

	CancelledBy  CancelledBy  `gorm:"type:varchar(10)" json:"cancelled_by,omitempty"`
	CancelReason string       `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time   `json:"cancelled_at,omitempty"`
	RefundRate   int          `gorm:"not null;default:0" json:"refund_rate"`
	RefundAmount int64        `gorm:"not null;default:0" json:"refund_amount"`
	RefundStatus RefundStatus `gorm:"type:varchar(10);not null;default:'none';index" json:"refund_status"`

	DecidedAt          *time.Time `json:"decided_at,omitempty"`
	ReviewPromptSentAt *time.Time `json:"review_prompt_sent_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (r *Reservation) IsCancelled() bool { return r.Status == StatusCancelled }

func (r *Reservation) IsPaid() bool { return r.PaymentStatus == PaymentPaid }

func (r *Reservation) Shares() split.Shares {
	return split.Shares{
		Proprietor: r.ProprietorShare,
		MainTenant: r.MainTenantShare,
		Platform:   r.PlatformShare,
	}
}

func (r *Reservation) SetShares(s split.Shares) {
	r.ProprietorShare = s.Proprietor
	r.MainTenantShare = s.MainTenant
	r.PlatformShare = s.Platform
}

func (r *Reservation) Deadlines() split.Deadlines {
	return split.Deadlines{Full: r.RefundDeadlineFull, Zero: r.RefundDeadlineZero}
}

func (r *Reservation) Nights() int {
	return split.Nights(r.CheckIn, r.CheckOut)
}

// MarkCancelled flags the reservation cancelled. Dates must be released by
// the caller in the same transaction.
func (r *Reservation) MarkCancelled(by CancelledBy, reason string, at time.Time) {
	r.Status = StatusCancelled
	r.CancelledBy = by
	r.CancelReason = reason
	r.CancelledAt = &at
}
