package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

const (
	invoiceNumberPrefix   = "INV-"
	invoiceNumberAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	invoiceNumberLength   = 10
	defaultInvoiceDueDays = 30
)

// InvoiceMaterializer turns an accepted estimate into its balance invoice
type InvoiceMaterializer struct {
	dueDays int
	logger  *zap.Logger
}

// NewInvoiceMaterializer creates a materializer. dueDays <= 0 falls back to 30.
func NewInvoiceMaterializer(dueDays int, logger *zap.Logger) *InvoiceMaterializer {
	if dueDays <= 0 {
		dueDays = defaultInvoiceDueDays
	}
	return &InvoiceMaterializer{dueDays: dueDays, logger: logger}
}

// Materialize creates the invoice for estimate inside tx. Items are copied and
// a negative deposit line is always appended, so the invoice total is the
// remaining balance and subtotal plus tax equals that total. A zero balance
// produces an invoice that is already paid.
func (m *InvoiceMaterializer) Materialize(ctx context.Context, tx domainRepo.Store, estimate *model.Estimate, breakdown deposit.Breakdown, now time.Time) (*model.Invoice, error) {
	existing, err := tx.Invoices().FindByEstimateID(ctx, estimate.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domainErrors.NewInvalidTransitionError("estimate", estimate.ID.String(),
			string(estimate.Status), string(model.EstimateStatusInvoiced), "invoice already exists for estimate")
	}

	number, err := newInvoiceNumber()
	if err != nil {
		return nil, err
	}

	estimateID := estimate.ID
	invoice := &model.Invoice{
		UserID:      estimate.UserID,
		EstimateID:  &estimateID,
		Number:      number,
		ClientName:  estimate.ClientName,
		ClientEmail: estimate.ClientEmail,
		Items:       copyItems(estimate, breakdown.Deposit),
		Currency:    estimate.Currency,
		Subtotal:    estimate.Subtotal.Sub(breakdown.Deposit),
		TaxAmount:   estimate.TaxAmount,
		Total:       breakdown.Remaining,
		AmountPaid:  decimal.Zero,
		Status:      model.InvoiceStatusPending,
		DueDate:     now.AddDate(0, 0, m.dueDays),
	}
	if breakdown.Remaining.IsZero() {
		invoice.Status = model.InvoiceStatusPaid
		invoice.PaidAt = &now
	}

	if err := tx.Invoices().Create(ctx, invoice); err != nil {
		return nil, err
	}

	m.logger.Info("Invoice materialized",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("estimate_id", estimate.ID.String()),
		zap.String("total", invoice.Total.StringFixed(deposit.CurrencyPlaces)),
		zap.String("status", string(invoice.Status)))
	return invoice, nil
}

func copyItems(estimate *model.Estimate, depositAmount decimal.Decimal) []model.InvoiceItem {
	items := make([]model.InvoiceItem, 0, len(estimate.Items)+1)
	for i, item := range estimate.Items {
		items = append(items, model.InvoiceItem{
			Position:    i,
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      item.Amount,
			Taxable:     item.Taxable,
		})
	}

	// Emitted for a zero deposit too, as a 0.00 line.
	return append(items, model.InvoiceItem{
		Position:    len(items),
		Description: fmt.Sprintf("Deposit applied (estimate %s)", estimate.Number),
		Quantity:    decimal.NewFromInt(1),
		Rate:        depositAmount.Neg(),
		Amount:      depositAmount.Neg(),
		Synthetic:   true,
	})
}

func newInvoiceNumber() (string, error) {
	id, err := gonanoid.Generate(invoiceNumberAlphabet, invoiceNumberLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate invoice number: %w", err)
	}
	return invoiceNumberPrefix + strings.ToUpper(id), nil
}
