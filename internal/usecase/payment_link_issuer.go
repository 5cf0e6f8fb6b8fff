package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/lifecycle"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

// LinkIssuerConfig tunes payment link issuance
type LinkIssuerConfig struct {
	Timeout     time.Duration
	MaxAttempts int
}

// PaymentLinkIssuer requests hosted payment pages for invoice balances.
// It never holds a transaction or row lock while calling the provider.
type PaymentLinkIssuer struct {
	store     domainRepo.Store
	links     provider.PaymentLinkProvider
	renderer  provider.CodeRenderer
	artifacts provider.ArtifactStore
	cfg       LinkIssuerConfig
	logger    *zap.Logger
}

// NewPaymentLinkIssuer creates a new payment link issuer
func NewPaymentLinkIssuer(
	store domainRepo.Store,
	links provider.PaymentLinkProvider,
	renderer provider.CodeRenderer,
	artifacts provider.ArtifactStore,
	cfg LinkIssuerConfig,
	logger *zap.Logger,
) *PaymentLinkIssuer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &PaymentLinkIssuer{
		store:     store,
		links:     links,
		renderer:  renderer,
		artifacts: artifacts,
		cfg:       cfg,
		logger:    logger,
	}
}

// Issue attaches a payment link to a pending invoice. An invoice that already
// has a link is returned unchanged. Provider failures are recorded on the
// invoice and returned as TransientExternalError; the invoice stays pending.
func (i *PaymentLinkIssuer) Issue(ctx context.Context, invoiceID uuid.UUID) (*model.Invoice, error) {
	invoice, err := i.store.Invoices().FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domainErrors.NewNotFoundError("invoice", invoiceID.String())
	}
	if invoice.HasPaymentLink() {
		return invoice, nil
	}
	if invoice.Status != model.InvoiceStatusPending || !invoice.Outstanding().IsPositive() {
		return nil, domainErrors.NewInvalidTransitionError("invoice", invoice.ID.String(),
			string(invoice.Status), "link_attached", "invoice has no outstanding balance")
	}

	logger := i.logger.With(
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int("attempt", invoice.LinkAttempts+1))

	link, err := i.requestLink(ctx, invoice)
	if err != nil {
		logger.Warn("Payment link request failed", zap.Error(err))
		if recErr := i.store.Invoices().RecordLinkFailure(ctx, invoice.ID, err.Error(), time.Now().UTC()); recErr != nil {
			logger.Error("Failed to record payment link failure", zap.Error(recErr))
		}
		return invoice, domainErrors.NewTransientExternalError("create payment link", err)
	}

	qr := i.renderQR(ctx, logger, invoice, link.URL)
	if err := lifecycle.AttachPaymentLink(invoice, link.URL, link.ID, qr); err != nil {
		return nil, err
	}

	if err := i.store.Invoices().AttachPaymentLink(ctx, invoice); err != nil {
		if domainErrors.IsAcknowledgeable(err) {
			// Paid or linked by someone else meanwhile.
			logger.Info("Invoice changed while issuing link", zap.Error(err))
			return i.store.Invoices().FindByID(ctx, invoice.ID)
		}
		return nil, err
	}
	invoice.LinkAttempts++
	invoice.LinkLastError = nil

	logger.Info("Payment link attached",
		zap.String("link_id", link.ID),
		zap.String("amount", invoice.Outstanding().StringFixed(deposit.CurrencyPlaces)))
	return invoice, nil
}

// IssueForOwner is Issue on behalf of the invoice's owner. Another user's
// invoice is reported as missing.
func (i *PaymentLinkIssuer) IssueForOwner(ctx context.Context, userID, invoiceID uuid.UUID) (*model.Invoice, error) {
	invoice, err := i.store.Invoices().FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil || invoice.UserID != userID {
		return nil, domainErrors.NewNotFoundError("invoice", invoiceID.String())
	}
	return i.Issue(ctx, invoiceID)
}

func (i *PaymentLinkIssuer) requestLink(ctx context.Context, invoice *model.Invoice) (*provider.PaymentLink, error) {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	return i.links.CreateLink(ctx, provider.LinkRequest{
		InvoiceID:      invoice.ID,
		UserID:         invoice.UserID,
		InvoiceNumber:  invoice.Number,
		Description:    fmt.Sprintf("Invoice %s", invoice.Number),
		Amount:         invoice.Outstanding(),
		Currency:       invoice.Currency,
		CustomerEmail:  invoice.ClientEmail,
		IdempotencyKey: fmt.Sprintf("invoice-link-%s-%d", invoice.ID, invoice.LinkAttempts),
		Metadata: map[string]string{
			event.MetaKind:      event.KindInvoiceBalance,
			event.MetaInvoiceID: invoice.ID.String(),
			event.MetaUserID:    invoice.UserID.String(),
		},
	})
}

// renderQR returns a displayable reference to the QR code of url, or "" when
// rendering or storing fails.
func (i *PaymentLinkIssuer) renderQR(ctx context.Context, logger *zap.Logger, invoice *model.Invoice, url string) string {
	if i.renderer == nil || i.artifacts == nil {
		return ""
	}

	png, err := i.renderer.Render(url)
	if err != nil {
		logger.Warn("Failed to render payment QR code", zap.Error(err))
		return ""
	}

	ref, err := i.artifacts.Put(ctx, fmt.Sprintf("invoices/%s/payment-qr.png", invoice.ID), i.renderer.ContentType(), png)
	if err != nil {
		logger.Warn("Failed to store payment QR code", zap.Error(err))
		return ""
	}
	return ref
}

// RetryReport summarizes one retry sweep
type RetryReport struct {
	Scanned int
	Issued  int
	Failed  int
}

// RetryPending issues links for pending invoices that still lack one
func (i *PaymentLinkIssuer) RetryPending(ctx context.Context, limit int) (RetryReport, error) {
	var report RetryReport

	invoices, err := i.store.Invoices().ListAwaitingLink(ctx, i.cfg.MaxAttempts, limit)
	if err != nil {
		return report, err
	}
	report.Scanned = len(invoices)

	for _, invoice := range invoices {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := i.Issue(ctx, invoice.ID); err != nil {
			report.Failed++
			continue
		}
		report.Issued++
	}

	i.logger.Info("Payment link retry sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("issued", report.Issued),
		zap.Int("failed", report.Failed))
	return report, nil
}
