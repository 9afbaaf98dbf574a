package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRangeBooked is returned by BlockRange when a day in the range is
// already held by another reservation.
var ErrRangeBooked = errors.New("one or more days are already booked")

type AvailabilityRepository interface {
	BlockRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time, reservationID string) error
	UnblockRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time, reservationID string) error
	FindBookedInRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time) ([]models.AvailabilityDay, error)
	ListRange(ctx context.Context, listingID uint, start, end time.Time) ([]models.AvailabilityDay, error)
}

type availabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepository{db: db}
}

// Days expands [start, end) into calendar days at UTC midnight.
func Days(start, end time.Time) []time.Time {
	var days []time.Time
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for d.Before(last) {
		days = append(days, d)
		d = d.AddDate(0, 0, 1)
	}
	return days
}

// BlockRange upserts booked=true for every day in [start, end). The update
// only applies to free days (or days already held by the same reservation),
// so a short row count means another booking got there first.
func (r *availabilityRepository) BlockRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time, reservationID string) error {
	days := Days(start, end)
	if len(days) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]models.AvailabilityDay, len(days))
	for i, d := range days {
		rows[i] = models.AvailabilityDay{ListingID: listingID, Date: d, Booked: true, ReservationID: &reservationID, UpdatedAt: now}
	}
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"booked", "reservation_id", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL:  "availability_days.booked = false OR availability_days.reservation_id = ?",
				Vars: []any{reservationID},
			},
		}},
	}).Create(&rows)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected < int64(len(rows)) {
		return ErrRangeBooked
	}
	return nil
}

// UnblockRange upserts booked=false for every day in [start, end). Days that
// were re-booked by another reservation in the meantime are left untouched.
func (r *availabilityRepository) UnblockRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time, reservationID string) error {
	days := Days(start, end)
	if len(days) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]models.AvailabilityDay, len(days))
	for i, d := range days {
		rows[i] = models.AvailabilityDay{ListingID: listingID, Date: d, Booked: false, UpdatedAt: now}
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"booked", "reservation_id", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL:  "availability_days.reservation_id IS NULL OR availability_days.reservation_id = ?",
				Vars: []any{reservationID},
			},
		}},
	}).Create(&rows).Error
}

func (r *availabilityRepository) FindBookedInRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time) ([]models.AvailabilityDay, error) {
	var days []models.AvailabilityDay
	err := tx.WithContext(ctx).
		Where("listing_id = ? AND date >= ? AND date < ? AND booked = ?", listingID, start, end, true).
		Order("date ASC").
		Find(&days).Error
	return days, err
}

func (r *availabilityRepository) ListRange(ctx context.Context, listingID uint, start, end time.Time) ([]models.AvailabilityDay, error) {
	var days []models.AvailabilityDay
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND date >= ? AND date < ?", listingID, start, end).
		Order("date ASC").
		Find(&days).Error
	return days, err
}
