package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error
	Save(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Reservation, error)
	PaymentRefInUse(ctx context.Context, tx *gorm.DB, ref gateway.Ref) (bool, error)

	FindPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
	FindConfirmedCheckingOut(ctx context.Context, day time.Time) ([]models.Reservation, error)
	MarkReviewPromptSent(ctx context.Context, id string, at time.Time) (bool, error)
	FindPayoutDue(ctx context.Context, today time.Time) ([]models.Reservation, error)
	ClaimBalanceAllocation(ctx context.Context, tx *gorm.DB, id string) (bool, error)
	FindRefundsPending(ctx context.Context) ([]models.Reservation, error)
	FindCancelledWithOpenHolds(ctx context.Context) ([]models.Reservation, error)
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	return tx.WithContext(ctx).Create(reservation).Error
}

func (r *reservationRepository) Save(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	return tx.WithContext(ctx).Save(reservation).Error
}

func (r *reservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// PaymentRefInUse reports whether ref already backs a reservation, as its
// primary or its caution hold.
func (r *reservationRepository) PaymentRefInUse(ctx context.Context, tx *gorm.DB, ref gateway.Ref) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("(transaction_ref_kind = ? AND transaction_ref_id = ?) OR (caution_ref_kind = ? AND caution_ref_id = ?)",
			ref.Kind, ref.ID, ref.Kind, ref.ID).
		Count(&count).Error
	return count > 0, err
}

// FindPendingCreatedBefore returns reservations still waiting for the host
// that were created before cutoff.
func (r *reservationRepository) FindPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND host_validation = ? AND created_at < ?", models.StatusPendingHost, models.HostPending, cutoff).
		Order("created_at ASC").
		Find(&reservations).Error
	return reservations, err
}

func (r *reservationRepository) FindConfirmedCheckingOut(ctx context.Context, day time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND check_out = ? AND review_prompt_sent_at IS NULL", models.StatusConfirmed, day).
		Order("created_at ASC").
		Find(&reservations).Error
	return reservations, err
}

// MarkReviewPromptSent flips review_prompt_sent_at once. It reports false
// when another run already claimed the prompt.
func (r *reservationRepository) MarkReviewPromptSent(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND review_prompt_sent_at IS NULL", id).
		Update("review_prompt_sent_at", at)
	return result.RowsAffected == 1, result.Error
}

// FindPayoutDue returns captured reservations whose stay ended before today
// and whose balances were not allocated yet. Reservations with a refund
// still in flight are skipped until the refund settles.
func (r *reservationRepository) FindPayoutDue(ctx context.Context, today time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND balances_allocated = ? AND check_out < ? AND refund_status <> ?",
			models.PaymentPaid, false, today, models.RefundPending).
		Order("check_out ASC").
		Find(&reservations).Error
	return reservations, err
}

// ClaimBalanceAllocation sets balances_allocated inside tx and reports
// whether this caller won the flag.
func (r *reservationRepository) ClaimBalanceAllocation(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND balances_allocated = ?", id, false).
		Update("balances_allocated", true)
	return result.RowsAffected == 1, result.Error
}

func (r *reservationRepository) FindRefundsPending(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("refund_status = ?", models.RefundPending).
		Order("cancelled_at ASC").
		Find(&reservations).Error
	return reservations, err
}

// FindCancelledWithOpenHolds returns cancelled reservations whose primary or
// caution hold could not be released at cancellation time.
func (r *reservationRepository) FindCancelledWithOpenHolds(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND (payment_status = ? OR caution_status = ?)",
			models.StatusCancelled, models.PaymentAuthorized, models.CautionAuthorized).
		Order("cancelled_at ASC").
		Find(&reservations).Error
	return reservations, err
}
