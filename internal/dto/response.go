package dto

import (
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/reconcile"
)

type AuthorizePaymentResponse struct {
	TransactionRef gateway.Ref    `json:"transaction_ref"`
	Status         gateway.Status `json:"status"`
	CautionRef     *gateway.Ref   `json:"caution_ref,omitempty"`
}

type CreateReservationResponse struct {
	ReservationID string                   `json:"reservation_id"`
	Status        models.ReservationStatus `json:"status"`
}

type DecisionResponse struct {
	ReservationID  string                   `json:"reservation_id"`
	Status         models.ReservationStatus `json:"status"`
	PaymentStatus  models.PaymentStatus     `json:"payment_status"`
	HostValidation models.HostValidation    `json:"host_validation"`
}

type CancelResponse struct {
	ReservationID string              `json:"reservation_id"`
	RefundAmount  int64               `json:"refund_amount"`
	RefundRate    int                 `json:"refund_rate"`
	RefundStatus  models.RefundStatus `json:"refund_status"`
}

type ReservationResponse struct {
	ID                  string                   `json:"id"`
	ListingID           uint                     `json:"listing_id"`
	GuestID             string                   `json:"guest_id"`
	HostID              string                   `json:"host_id"`
	CheckIn             string                   `json:"check_in"`
	CheckOut            string                   `json:"check_out"`
	GuestsCount         int                      `json:"guests_count"`
	AccommodationAmount int64                    `json:"accommodation_amount"`
	PlatformFeeAmount   int64                    `json:"platform_fee_amount"`
	TaxAmount           int64                    `json:"tax_amount"`
	TotalPrice          int64                    `json:"total_price"`
	Currency            string                   `json:"currency"`
	Status              models.ReservationStatus `json:"status"`
	PaymentStatus       models.PaymentStatus     `json:"payment_status"`
	CautionStatus       models.CautionStatus     `json:"caution_status"`
	HostValidation      models.HostValidation    `json:"host_validation"`
	RefundDeadlineFull  time.Time                `json:"refund_deadline_full"`
	RefundDeadlineZero  time.Time                `json:"refund_deadline_zero"`
	RefundRate          int                      `json:"refund_rate"`
	RefundAmount        int64                    `json:"refund_amount"`
	RefundStatus        models.RefundStatus      `json:"refund_status"`
	CancelledBy         models.CancelledBy       `json:"cancelled_by,omitempty"`
	CreatedAt           time.Time                `json:"created_at"`
}

type ReviewResponse struct {
	ID            uint                `json:"id"`
	ReservationID string              `json:"reservation_id"`
	AuthorRole    models.ReviewerRole `json:"author_role"`
	Rating        int                 `json:"rating"`
	Comment       string              `json:"comment,omitempty"`
	Published     bool                `json:"published"`
}

type AvailabilityDayResponse struct {
	Date   string `json:"date"`
	Booked bool   `json:"booked"`
}

type BalanceResponse struct {
	UserID         string `json:"user_id"`
	TotalEarnings  int64  `json:"total_earnings"`
	PayableBalance int64  `json:"payable_balance"`
}

type ReconcileResponse struct {
	Summary reconcile.Summary `json:"summary"`
	Errors  []string          `json:"errors,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToReservationResponse(r *models.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                  r.ID,
		ListingID:           r.ListingID,
		GuestID:             r.GuestID,
		HostID:              r.HostID,
		CheckIn:             r.CheckIn.Format(time.DateOnly),
		CheckOut:            r.CheckOut.Format(time.DateOnly),
		GuestsCount:         r.GuestsCount,
		AccommodationAmount: r.AccommodationAmount,
		PlatformFeeAmount:   r.PlatformFeeAmount,
		TaxAmount:           r.TaxAmount,
		TotalPrice:          r.TotalPrice,
		Currency:            r.Currency,
		Status:              r.Status,
		PaymentStatus:       r.PaymentStatus,
		CautionStatus:       r.CautionStatus,
		HostValidation:      r.HostValidation,
		RefundDeadlineFull:  r.RefundDeadlineFull,
		RefundDeadlineZero:  r.RefundDeadlineZero,
		RefundRate:          r.RefundRate,
		RefundAmount:        r.RefundAmount,
		RefundStatus:        r.RefundStatus,
		CancelledBy:         r.CancelledBy,
		CreatedAt:           r.CreatedAt,
	}
}

func ToDecisionResponse(r *models.Reservation) DecisionResponse {
	return DecisionResponse{
		ReservationID:  r.ID,
		Status:         r.Status,
		PaymentStatus:  r.PaymentStatus,
		HostValidation: r.HostValidation,
	}
}

func ToReviewResponse(r *models.Review) ReviewResponse {
	return ReviewResponse{
		ID:            r.ID,
		ReservationID: r.ReservationID,
		AuthorRole:    r.AuthorRole,
		Rating:        r.Rating,
		Comment:       r.Comment,
		Published:     r.Published,
	}
}
