package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type invoiceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func withInvoiceItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// Create saves a new invoice with its items. A second invoice for the same
// estimate violates the unique estimate_id index.
func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	err := r.db.WithContext(ctx).Create(invoice).Error
	if err == nil {
		return nil
	}

	if isDuplicate(err) && invoice.EstimateID != nil {
		return domainErrors.NewInvalidTransitionError("estimate", invoice.EstimateID.String(),
			string(model.EstimateStatusAccepted), string(model.EstimateStatusInvoiced), "invoice already exists for estimate")
	}

	r.logger.Error("Failed to create invoice",
		zap.String("number", invoice.Number),
		zap.Error(err))
	return domainErrors.NewPersistenceError("create invoice", err)
}

// FindByID retrieves an invoice and its items
func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.first(withInvoiceItems(r.db.WithContext(ctx)).Where("id = ?", id), "get invoice")
}

// FindForUpdate retrieves an invoice and locks it for the rest of the transaction
func (r *invoiceRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.first(withInvoiceItems(forUpdate(r.db.WithContext(ctx))).Where("id = ?", id), "get invoice for update")
}

// FindByEstimateID retrieves the invoice materialized from an estimate
func (r *invoiceRepository) FindByEstimateID(ctx context.Context, estimateID uuid.UUID) (*model.Invoice, error) {
	return r.first(withInvoiceItems(r.db.WithContext(ctx)).Where("estimate_id = ?", estimateID), "get invoice by estimate")
}

func (r *invoiceRepository) first(q *gorm.DB, op string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := q.First(&invoice).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		r.logger.Error("Failed to "+op, zap.Error(err))
		return nil, domainErrors.NewPersistenceError(op, err)
	}
	return &invoice, nil
}

// SaveSettlement writes amount paid, status and paid_at guarded on the values read before the payment
func (r *invoiceRepository) SaveSettlement(ctx context.Context, invoice *model.Invoice, from model.InvoiceStatus, paidBefore decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ? AND amount_paid = ?", invoice.ID, from, paidBefore).
		Updates(map[string]interface{}{
			"status":      invoice.Status,
			"amount_paid": invoice.AmountPaid,
			"paid_at":     invoice.PaidAt,
		})

	if result.Error != nil {
		r.logger.Error("Failed to save invoice settlement",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(result.Error))
		return domainErrors.NewPersistenceError("save invoice settlement", result.Error)
	}

	if result.RowsAffected == 0 {
		return domainErrors.NewInvalidTransitionError("invoice", invoice.ID.String(),
			string(from), string(invoice.Status), "invoice changed concurrently")
	}
	return nil
}

// AttachPaymentLink stores link, link id and QR reference on a pending invoice without a link
func (r *invoiceRepository) AttachPaymentLink(ctx context.Context, invoice *model.Invoice) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ? AND payment_link_url IS NULL", invoice.ID, model.InvoiceStatusPending).
		Updates(map[string]interface{}{
			"payment_link_url":     invoice.PaymentLinkURL,
			"payment_link_id":      invoice.PaymentLinkID,
			"payment_qr":           invoice.PaymentQR,
			"link_attempts":        gorm.Expr("link_attempts + 1"),
			"link_last_error":      nil,
			"link_last_attempt_at": now,
		})

	if result.Error != nil {
		r.logger.Error("Failed to attach payment link",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(result.Error))
		return domainErrors.NewPersistenceError("attach payment link", result.Error)
	}

	if result.RowsAffected == 0 {
		return domainErrors.NewInvalidTransitionError("invoice", invoice.ID.String(),
			string(invoice.Status), "link_attached", "invoice is paid or already has a payment link")
	}
	return nil
}

// RecordLinkFailure counts a failed link attempt
func (r *invoiceRepository) RecordLinkFailure(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"link_attempts":        gorm.Expr("link_attempts + 1"),
			"link_last_error":      reason,
			"link_last_attempt_at": at,
		}).Error
	if err != nil {
		r.logger.Error("Failed to record payment link failure",
			zap.String("invoice_id", id.String()),
			zap.Error(err))
		return domainErrors.NewPersistenceError("record link failure", err)
	}
	return nil
}

// ListAwaitingLink returns pending invoices that still need a payment link
func (r *invoiceRepository) ListAwaitingLink(ctx context.Context, maxAttempts, limit int) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_link_url IS NULL AND link_attempts < ? AND total > amount_paid",
			model.InvoiceStatusPending, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		r.logger.Error("Failed to list invoices awaiting link", zap.Error(err))
		return nil, domainErrors.NewPersistenceError("list invoices awaiting link", err)
	}
	return invoices, nil
}
