package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	Create(ctx context.Context, tx *gorm.DB, review *models.Review) error
	FindByReservation(ctx context.Context, tx *gorm.DB, reservationID string) ([]models.Review, error)
	PublishForReservation(ctx context.Context, tx *gorm.DB, reservationID string, at time.Time) (int64, error)
	FindUnpublishedCheckoutBefore(ctx context.Context, cutoff time.Time) ([]models.Review, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, tx *gorm.DB, review *models.Review) error {
	return tx.WithContext(ctx).Create(review).Error
}

func (r *reviewRepository) FindByReservation(ctx context.Context, tx *gorm.DB, reservationID string) ([]models.Review, error) {
	var reviews []models.Review
	err := tx.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id ASC").
		Find(&reviews).Error
	return reviews, err
}

func (r *reviewRepository) PublishForReservation(ctx context.Context, tx *gorm.DB, reservationID string, at time.Time) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&models.Review{}).
		Where("reservation_id = ? AND published = ?", reservationID, false).
		Updates(map[string]any{"published": true, "published_at": at})
	return result.RowsAffected, result.Error
}

// FindUnpublishedCheckoutBefore returns unpublished reviews of stays that
// checked out before cutoff, i.e. whose review window has closed.
func (r *reviewRepository) FindUnpublishedCheckoutBefore(ctx context.Context, cutoff time.Time) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Joins("JOIN reservations ON reservations.id = reviews.reservation_id").
		Where("reviews.published = ? AND reservations.check_out < ?", false, cutoff).
		Order("reviews.id ASC").
		Find(&reviews).Error
	return reviews, err
}
