package repository

import (
	"context"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Create inserts a payment unless one with the same external reference exists
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_reference"}},
			DoNothing: true,
		}).
		Create(payment)

	if result.Error != nil {
		r.logger.Error("Failed to create payment",
			zap.String("external_reference", payment.ExternalReference),
			zap.Error(result.Error))
		return false, domainErrors.NewPersistenceError("create payment", result.Error)
	}

	if result.RowsAffected == 0 {
		r.logger.Info("Payment already recorded",
			zap.String("external_reference", payment.ExternalReference))
		return false, nil
	}
	return true, nil
}

// FindByExternalReference retrieves a payment by provider reference
func (r *paymentRepository) FindByExternalReference(ctx context.Context, reference string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("external_reference = ?", reference).First(&payment).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, domainErrors.NewPersistenceError("get payment", err)
	}
	return &payment, nil
}

// ListByInvoice returns payments made against an invoice, oldest first
func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, domainErrors.NewPersistenceError("list invoice payments", err)
	}
	return payments, nil
}
