package database

import (
	"fmt"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB opens the connection pool and migrates the schema.
// TranslateError makes unique violations surface as gorm.ErrDuplicatedKey.
func NewPostgresDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Listing{},
		&models.AvailabilityDay{},
		&models.Reservation{},
		&models.PartyBalance{},
		&models.Review{},
		&models.SimulatedIntent{},
		&models.SimulatedRefund{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// A payment hold backs at most one reservation.
	// Guards scanned by the reconciliation job are partial indexes; almost
	// every row eventually leaves the filtered state.
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_transaction_ref
		 ON reservations (transaction_ref_kind, transaction_ref_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservation_caution_ref
		 ON reservations (caution_ref_kind, caution_ref_id)
		 WHERE caution_ref_id <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_pending_host
		 ON reservations (created_at)
		 WHERE status = 'pending_host'`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_payout_due
		 ON reservations (check_out)
		 WHERE payment_status = 'paid' AND balances_allocated = false`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_refund_pending
		 ON reservations (id)
		 WHERE refund_status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_open_holds
		 ON reservations (cancelled_at)
		 WHERE status = 'cancelled' AND (payment_status = 'authorized' OR caution_status = 'authorized')`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
