package usecase

import (
	"context"

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

const (
	paymentMethodCard  = "card"
	checkoutModeSub    = "subscription"
	checkoutStatusPaid = "paid"
)

func (r *WebhookRouter) handleCheckoutCompleted(ctx context.Context, ev event.CheckoutSessionCompleted) (Outcome, error) {
	switch ev.Purpose() {
	case event.KindEstimateDeposit:
		return r.handleDepositPaid(ctx, ev)
	case event.KindInvoiceBalance:
		return r.handleBalancePaid(ctx, ev)
	}

	if ev.Mode == checkoutModeSub {
		return r.handleSubscriptionCheckout(ctx, ev)
	}

	r.logger.Info("Checkout session has no billing purpose, acknowledging",
		zap.String("event_id", ev.EventID()),
		zap.String("session_id", ev.SessionID))
	return OutcomeIgnored, nil
}

// depositResult carries what the post-commit steps need from the deposit transaction.
type depositResult struct {
	estimate  *model.Estimate
	invoice   *model.Invoice
	breakdown deposit.Breakdown
}

// handleDepositPaid accepts the estimate and materializes its balance invoice
// in one transaction, then issues the payment link and notifies the client.
func (r *WebhookRouter) handleDepositPaid(ctx context.Context, ev event.CheckoutSessionCompleted) (Outcome, error) {
	logger := r.logger.With(
		zap.String("event_id", ev.EventID()),
		zap.String("session_id", ev.SessionID))

	if ev.PaymentStatus != checkoutStatusPaid {
		logger.Info("Deposit checkout not paid yet, acknowledging", zap.String("payment_status", ev.PaymentStatus))
		return OutcomeIgnored, nil
	}

	estimateID, err := uuid.Parse(ev.Metadata[event.MetaEstimateID])
	if err != nil {
		logger.Warn("Deposit checkout carries no valid estimate id, acknowledging",
			zap.String("estimate_id", ev.Metadata[event.MetaEstimateID]))
		return OutcomeIgnored, nil
	}

	var result depositResult
	outcome, err := r.guard.Run(ctx, ev.EventID(), ev.EventType(), func(tx domainRepo.Store) error {
		now := r.now()

		estimate, err := tx.Estimates().FindForUpdate(ctx, estimateID)
		if err != nil {
			return err
		}
		if estimate == nil {
			return domainErrors.NewNotFoundError("estimate", estimateID.String())
		}

		breakdown, err := deposit.Compute(estimate.Total, estimate.DepositSpec())
		if err != nil {
			transition := domainErrors.NewInvalidTransitionError("estimate", estimate.ID.String(),
				string(estimate.Status), string(model.EstimateStatusAccepted), err.Error())
			transition.Err = err
			return transition
		}

		amount := ev.Amount
		if amount.IsZero() {
			amount = breakdown.Deposit
		} else if !amount.Equal(breakdown.Deposit) {
			logger.Warn("Deposit paid differs from computed deposit",
				zap.String("paid", amount.String()),
				zap.String("expected", breakdown.Deposit.String()))
		}

		currency := ev.Currency
		if currency == "" {
			currency = estimate.Currency
		}

		created, err := tx.Payments().Create(ctx, &model.Payment{
			UserID:            estimate.UserID,
			EstimateID:        &estimate.ID,
			Kind:              model.PaymentKindDeposit,
			Amount:            amount,
			Currency:          currency,
			Method:            paymentMethodCard,
			ExternalReference: ev.ExternalReference(),
			Status:            model.PaymentStatusCompleted,
		})
		if err != nil {
			return err
		}
		if !created {
			// Same payment delivered under another event id.
			return domainErrors.ErrEventAlreadyProcessed
		}

		from := estimate.Status
		if err := lifecycle.AcceptEstimate(estimate, now, ev.Metadata[event.MetaClientIP]); err != nil {
			return err
		}

		invoice, err := r.materializer.Materialize(ctx, tx, estimate, breakdown, now)
		if err != nil {
			return err
		}
		if err := lifecycle.MarkEstimateInvoiced(estimate, invoice); err != nil {
			return err
		}
		if err := tx.Estimates().SaveTransition(ctx, estimate, from); err != nil {
			return err
		}

		result = depositResult{estimate: estimate, invoice: invoice, breakdown: breakdown}
		return nil
	})
	if err != nil || outcome != OutcomeProcessed {
		return outcome, err
	}

	logger.Info("Deposit recorded",
		zap.String("estimate_id", result.estimate.ID.String()),
		zap.String("invoice_id", result.invoice.ID.String()),
		zap.String("deposit", result.breakdown.Deposit.String()),
		zap.String("remaining", result.breakdown.Remaining.String()))

	r.afterDeposit(ctx, logger, result)
	return OutcomeProcessed, nil
}

// afterDeposit runs outside the transaction. Failures here are warnings; the
// invoice stays pending and the link can be retried separately.
func (r *WebhookRouter) afterDeposit(ctx context.Context, logger *zap.Logger, result depositResult) {
	invoice := result.invoice

	if invoice.Status == model.InvoiceStatusPending && invoice.Outstanding().IsPositive() && r.linkIssuer != nil {
		issued, err := r.linkIssuer.Issue(ctx, invoice.ID)
		if err != nil {
			logger.Warn("Invoice created without payment link",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err))
		} else {
			invoice = issued
		}
	}

	if r.notifier == nil {
		return
	}

	n := provider.DepositNotification{
		UserID:        result.estimate.UserID,
		ClientName:    result.estimate.ClientName,
		ClientEmail:   result.estimate.ClientEmail,
		DepositAmount: result.breakdown.Deposit,
		TotalAmount:   result.breakdown.Total,
		InvoiceNumber: invoice.Number,
	}
	if invoice.HasPaymentLink() {
		n.PaymentLink = *invoice.PaymentLinkURL
	}
	if err := r.notifier.DepositReceived(ctx, n); err != nil {
		logger.Warn("Failed to send deposit notification",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err))
	}
}

// handleBalancePaid applies a balance payment to its invoice
func (r *WebhookRouter) handleBalancePaid(ctx context.Context, ev event.CheckoutSessionCompleted) (Outcome, error) {
	logger := r.logger.With(
		zap.String("event_id", ev.EventID()),
		zap.String("session_id", ev.SessionID))

	if ev.PaymentStatus != checkoutStatusPaid {
		logger.Info("Balance checkout not paid yet, acknowledging", zap.String("payment_status", ev.PaymentStatus))
		return OutcomeIgnored, nil
	}

	invoiceID, err := uuid.Parse(ev.Metadata[event.MetaInvoiceID])
	if err != nil {
		logger.Warn("Balance checkout carries no valid invoice id, acknowledging",
			zap.String("invoice_id", ev.Metadata[event.MetaInvoiceID]))
		return OutcomeIgnored, nil
	}

	var settled bool
	outcome, err := r.guard.Run(ctx, ev.EventID(), ev.EventType(), func(tx domainRepo.Store) error {
		invoice, err := tx.Invoices().FindForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domainErrors.NewNotFoundError("invoice", invoiceID.String())
		}

		currency := ev.Currency
		if currency == "" {
			currency = invoice.Currency
		}
		payment := &model.Payment{
			UserID:            invoice.UserID,
			EstimateID:        invoice.EstimateID,
			InvoiceID:         &invoice.ID,
			Kind:              model.PaymentKindBalance,
			Amount:            ev.Amount,
			Currency:          currency,
			Method:            paymentMethodCard,
			ExternalReference: ev.ExternalReference(),
			Status:            model.PaymentStatusCompleted,
		}

		from, paidBefore := invoice.Status, invoice.AmountPaid
		settled, err = lifecycle.ApplyInvoicePayment(invoice, payment, r.now())
		if err != nil {
			return err
		}

		created, err := tx.Payments().Create(ctx, payment)
		if err != nil {
			return err
		}
		if !created {
			return domainErrors.ErrEventAlreadyProcessed
		}
		return tx.Invoices().SaveSettlement(ctx, invoice, from, paidBefore)
	})
	if err != nil || outcome != OutcomeProcessed {
		return outcome, err
	}

	logger.Info("Balance payment applied",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("amount", ev.Amount.String()),
		zap.Bool("paid", settled))
	return OutcomeProcessed, nil
}

// handleSubscriptionCheckout links the provider customer to the user who
// started the checkout. Tier and credits follow from the subscription and
// invoice events.
func (r *WebhookRouter) handleSubscriptionCheckout(ctx context.Context, ev event.CheckoutSessionCompleted) (Outcome, error) {
	userID := userFromMetadata(ev.Metadata)
	if userID == uuid.Nil {
		userID = parseUserID(ev.ClientReferenceID)
	}
	if userID == uuid.Nil {
		r.logger.Warn("Subscription checkout carries no user id, acknowledging",
			zap.String("event_id", ev.EventID()),
			zap.String("session_id", ev.SessionID))
		return OutcomeIgnored, nil
	}

	return r.guard.Run(ctx, ev.EventID(), ev.EventType(), func(tx domainRepo.Store) error {
		sub, err := tx.Subscriptions().FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			sub = r.newSubscription(userID)
		}

		sub.StripeCustomerID = ev.CustomerID
		if ev.SubscriptionID != "" {
			subscriptionID := ev.SubscriptionID
			sub.StripeSubscriptionID = &subscriptionID
		}
		return tx.Subscriptions().Save(ctx, sub)
	})
}
