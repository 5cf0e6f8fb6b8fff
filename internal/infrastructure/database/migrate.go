package database

import (
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by the billing service
var Models = []interface{}{
	&model.Estimate{},
	&model.EstimateItem{},
	&model.Invoice{},
	&model.InvoiceItem{},
	&model.Payment{},
	&model.CreditLedgerEntry{},
	&model.UserSubscription{},
	&model.ProcessedEvent{},
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.AutoMigrate(Models...); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes that struct tags cannot express
func createCustomIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_invoices_awaiting_link ON invoices (created_at) WHERE status = 'pending' AND payment_link_url IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments (invoice_id, created_at) WHERE invoice_id IS NOT NULL`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
