package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	Credit(ctx context.Context, tx *gorm.DB, userID string, amount int64) error
	FindBalance(ctx context.Context, userID string) (*models.PartyBalance, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Credit adds amount to both running totals of userID, creating the
// balance row on first credit.
func (r *profileRepository) Credit(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	balance := models.PartyBalance{
		UserID:         userID,
		TotalEarnings:  amount,
		PayableBalance: amount,
		UpdatedAt:      time.Now(),
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_earnings":  gorm.Expr("party_balances.total_earnings + ?", amount),
			"payable_balance": gorm.Expr("party_balances.payable_balance + ?", amount),
			"updated_at":      balance.UpdatedAt,
		}),
	}).Create(&balance).Error
}

func (r *profileRepository) FindBalance(ctx context.Context, userID string) (*models.PartyBalance, error) {
	var balance models.PartyBalance
	if err := r.db.WithContext(ctx).First(&balance, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}
