// Package lifecycle holds the estimate and invoice transition rules.
// Each function checks preconditions and mutates the document in memory.
// Persisting the change is the repository's job, guarded on the previous status.
package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
)

const (
	entityEstimate = "estimate"
	entityInvoice  = "invoice"
)

func estimateTransitionError(e *model.Estimate, to model.EstimateStatus, reason string) error {
	return domainErrors.NewInvalidTransitionError(entityEstimate, e.ID.String(), string(e.Status), string(to), reason)
}

func invoiceTransitionError(inv *model.Invoice, to model.InvoiceStatus, reason string) error {
	return domainErrors.NewInvalidTransitionError(entityInvoice, inv.ID.String(), string(inv.Status), string(to), reason)
}

// SendEstimate moves a draft with at least one item and a positive total to sent.
func SendEstimate(e *model.Estimate, now time.Time) error {
	if e.Status != model.EstimateStatusDraft {
		return estimateTransitionError(e, model.EstimateStatusSent, "only draft estimates can be sent")
	}
	if len(e.Items) == 0 {
		return estimateTransitionError(e, model.EstimateStatusSent, "estimate has no line items")
	}
	if !e.Total.IsPositive() {
		return estimateTransitionError(e, model.EstimateStatusSent, "estimate total must be positive")
	}

	e.Status = model.EstimateStatusSent
	e.SentAt = &now
	return nil
}

// AcceptEstimate records the client's acceptance once the deposit is paid.
func AcceptEstimate(e *model.Estimate, now time.Time, remoteIP string) error {
	if e.Status != model.EstimateStatusSent {
		return estimateTransitionError(e, model.EstimateStatusAccepted, "only sent estimates can be accepted")
	}
	if !e.Total.IsPositive() {
		return estimateTransitionError(e, model.EstimateStatusAccepted, "estimate total must be positive")
	}

	e.Status = model.EstimateStatusAccepted
	e.AcceptedAt = &now
	if remoteIP != "" {
		e.AcceptedFromIP = &remoteIP
	}
	return nil
}

// MarkEstimateInvoiced closes an accepted estimate once its invoice exists.
func MarkEstimateInvoiced(e *model.Estimate, inv *model.Invoice) error {
	if e.Status != model.EstimateStatusAccepted {
		return estimateTransitionError(e, model.EstimateStatusInvoiced, "only accepted estimates can be invoiced")
	}
	if inv == nil || inv.ID == uuid.Nil || inv.EstimateID == nil || *inv.EstimateID != e.ID {
		return estimateTransitionError(e, model.EstimateStatusInvoiced, "no invoice materialized for estimate")
	}

	e.Status = model.EstimateStatusInvoiced
	return nil
}

// DeclineEstimate marks a sent estimate as declined. Declined is terminal.
func DeclineEstimate(e *model.Estimate, now time.Time) error {
	if e.Status != model.EstimateStatusSent {
		return estimateTransitionError(e, model.EstimateStatusDeclined, "only sent estimates can be declined")
	}

	e.Status = model.EstimateStatusDeclined
	e.DeclinedAt = &now
	return nil
}

// ApplyInvoicePayment adds a completed payment to the invoice and marks it
// paid when nothing is left outstanding. It reports whether the invoice became paid.
func ApplyInvoicePayment(inv *model.Invoice, p *model.Payment, now time.Time) (bool, error) {
	if inv.Status != model.InvoiceStatusPending {
		return false, invoiceTransitionError(inv, model.InvoiceStatusPaid, "invoice is not pending")
	}
	if p.Status != model.PaymentStatusCompleted {
		return false, invoiceTransitionError(inv, model.InvoiceStatusPaid, "payment is not completed")
	}
	if p.InvoiceID == nil || *p.InvoiceID != inv.ID {
		return false, invoiceTransitionError(inv, model.InvoiceStatusPaid, "payment does not reference invoice")
	}
	if !p.Amount.IsPositive() {
		return false, invoiceTransitionError(inv, model.InvoiceStatusPaid, "payment amount must be positive")
	}

	inv.AmountPaid = inv.AmountPaid.Add(p.Amount)
	if !inv.Outstanding().Equal(decimal.Zero) {
		return false, nil
	}

	inv.Status = model.InvoiceStatusPaid
	inv.PaidAt = &now
	return true, nil
}

// AttachPaymentLink stores the hosted payment page on a pending invoice.
func AttachPaymentLink(inv *model.Invoice, url, linkID, qr string) error {
	if inv.Status != model.InvoiceStatusPending {
		return domainErrors.NewInvalidTransitionError(entityInvoice, inv.ID.String(), string(inv.Status), "link_attached", "invoice is not pending")
	}
	if url == "" {
		return domainErrors.NewInvalidTransitionError(entityInvoice, inv.ID.String(), string(inv.Status), "link_attached", "payment link is empty")
	}

	inv.PaymentLinkURL = &url
	inv.PaymentLinkID = &linkID
	if qr != "" {
		inv.PaymentQR = &qr
	}
	return nil
}
