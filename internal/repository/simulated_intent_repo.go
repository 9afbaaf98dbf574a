package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type simulatedIntentRepository struct {
	db *gorm.DB
}

// NewSimulatedIntentRepository stores simulated holds in Postgres so they
// outlive the process that placed them.
func NewSimulatedIntentRepository(db *gorm.DB) gateway.IntentStore {
	return &simulatedIntentRepository{db: db}
}

func (r *simulatedIntentRepository) Create(ctx context.Context, intent *gateway.SimulatedIntent) error {
	row := toIntentRow(intent)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *simulatedIntentRepository) Get(ctx context.Context, id string) (*gateway.SimulatedIntent, error) {
	var row models.SimulatedIntent
	err := r.db.WithContext(ctx).
		Preload("Refunds", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, intentError(id, err)
	}
	intent := fromIntentRow(row)
	return &intent, nil
}

// Update locks the intent row for the duration of fn. Refunds are only ever
// appended, so new ones are inserted and existing ones left alone.
func (r *simulatedIntentRepository) Update(ctx context.Context, id string, fn func(intent *gateway.SimulatedIntent) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.SimulatedIntent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "id = ?", id).Error
		if err != nil {
			return intentError(id, err)
		}
		if err := tx.Where("intent_id = ?", id).Order("created_at ASC").Find(&row.Refunds).Error; err != nil {
			return err
		}

		intent := fromIntentRow(row)
		known := len(intent.Refunds)
		if err := fn(&intent); err != nil {
			return err
		}

		if err := tx.Model(&models.SimulatedIntent{}).
			Where("id = ?", id).
			Update("status", string(intent.Status)).Error; err != nil {
			return err
		}
		for _, refund := range intent.Refunds[known:] {
			if err := tx.Create(&models.SimulatedRefund{
				ID:       refund.ID,
				IntentID: id,
				Amount:   refund.Amount,
				Status:   string(refund.Status),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func intentError(id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", gateway.ErrUnknownRef, id)
	}
	return fmt.Errorf("%w: load intent %s: %v", gateway.ErrTransient, id, err)
}

func toIntentRow(in *gateway.SimulatedIntent) models.SimulatedIntent {
	row := models.SimulatedIntent{
		ID:       in.ID,
		Amount:   in.Amount,
		Currency: in.Currency,
		Status:   string(in.Status),
	}
	for _, r := range in.Refunds {
		row.Refunds = append(row.Refunds, models.SimulatedRefund{
			ID: r.ID, IntentID: in.ID, Amount: r.Amount, Status: string(r.Status),
		})
	}
	return row
}

func fromIntentRow(row models.SimulatedIntent) gateway.SimulatedIntent {
	intent := gateway.SimulatedIntent{
		ID:       row.ID,
		Amount:   row.Amount,
		Currency: row.Currency,
		Status:   gateway.Status(row.Status),
	}
	for _, r := range row.Refunds {
		intent.Refunds = append(intent.Refunds, gateway.Refund{
			ID: r.ID, Amount: r.Amount, Status: gateway.RefundStatus(r.Status),
		})
	}
	return intent
}
