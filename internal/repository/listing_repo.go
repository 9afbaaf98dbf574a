package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListingRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Listing, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Listing, error)
	Upsert(ctx context.Context, listing *models.Listing) error
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) FindByID(ctx context.Context, id uint) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindByIDForUpdate locks the listing row so bookings of the same listing
// are serialized for the rest of the transaction.
func (r *listingRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Listing, error) {
	var listing models.Listing
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&listing, id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) Upsert(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"proprietor_id", "host_id", "nightly_rate", "currency", "max_guests", "updated_at"}),
	}).Create(listing).Error
}
