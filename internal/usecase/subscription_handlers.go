package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

// errStaleEvent marks a subscription event superseded by one already applied.
var errStaleEvent = fmt.Errorf("%w: event older than stored state", domainErrors.ErrEventAlreadyProcessed)

func (r *WebhookRouter) newSubscription(userID uuid.UUID) *model.UserSubscription {
	sub := &model.UserSubscription{
		UserID: userID,
		Status: model.SubscriptionStatusActive,
	}
	applyTier(sub, model.TierNone, r.tiers)
	return sub
}

// applyTier copies the tier's allotment and feature flags onto sub
func applyTier(sub *model.UserSubscription, tier model.Tier, tiers *config.TierCatalog) {
	sub.Tier = tier
	plan, _ := tiers.Plan(string(tier))
	sub.MonthlyCredits = plan.MonthlyCredits
	sub.ExportLimit = plan.Features.ExportLimit
	sub.RemoveWatermark = plan.Features.RemoveWatermark
	sub.TemplateCount = plan.Features.TemplateCount
}

// mapSubscriptionStatus folds provider statuses onto the three states the product knows.
func mapSubscriptionStatus(status string) model.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return model.SubscriptionStatusActive
	case "canceled", "incomplete_expired":
		return model.SubscriptionStatusCanceled
	default:
		return model.SubscriptionStatusPastDue
	}
}

// isStale reports whether an event created at createdAt predates the last applied one.
func isStale(sub *model.UserSubscription, createdAt time.Time) bool {
	return sub.LastEventAt != nil && !createdAt.IsZero() && createdAt.Before(*sub.LastEventAt)
}

func markApplied(sub *model.UserSubscription, createdAt time.Time) {
	if createdAt.IsZero() {
		return
	}
	if sub.LastEventAt == nil || createdAt.After(*sub.LastEventAt) {
		at := createdAt
		sub.LastEventAt = &at
	}
}

// userFromMetadata returns the user id stamped on provider objects, or uuid.Nil.
func userFromMetadata(metadata map[string]string) uuid.UUID {
	return parseUserID(metadata[event.MetaUserID])
}

func parseUserID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// resolveUser finds the user a provider subscription belongs to: metadata
// first, then an existing row, then the provider's customer record. It runs
// before the transaction so no lock is held during the provider call.
func (r *WebhookRouter) resolveUser(ctx context.Context, metadata map[string]string, subscriptionID, customerID string) (uuid.UUID, error) {
	if id := userFromMetadata(metadata); id != uuid.Nil {
		return id, nil
	}

	sub, err := findSubscription(ctx, r.store, subscriptionID, customerID, uuid.Nil)
	if err != nil {
		return uuid.Nil, err
	}
	if sub != nil {
		return sub.UserID, nil
	}

	if r.customers == nil || customerID == "" {
		return uuid.Nil, nil
	}
	customer, err := r.customers.LookupCustomer(ctx, customerID)
	if err != nil {
		return uuid.Nil, domainErrors.NewTransientExternalError("lookup customer", err)
	}
	if customer == nil {
		return uuid.Nil, nil
	}
	return userFromMetadata(customer.Metadata), nil
}

// findSubscription looks the row up by provider subscription id, then customer id, then user id.
func findSubscription(ctx context.Context, tx domainRepo.Store, subscriptionID, customerID string, userID uuid.UUID) (*model.UserSubscription, error) {
	if subscriptionID != "" {
		sub, err := tx.Subscriptions().FindByStripeSubscriptionID(ctx, subscriptionID)
		if err != nil || sub != nil {
			return sub, err
		}
	}
	if customerID != "" {
		sub, err := tx.Subscriptions().FindByCustomerID(ctx, customerID)
		if err != nil || sub != nil {
			return sub, err
		}
	}
	if userID != uuid.Nil {
		return tx.Subscriptions().FindByUserID(ctx, userID)
	}
	return nil, nil
}

// handleSubscriptionChanged upserts the user's subscription with the tier bound to the price
func (r *WebhookRouter) handleSubscriptionChanged(ctx context.Context, ev event.SubscriptionChanged) (Outcome, error) {
	logger := r.logger.With(
		zap.String("event_id", ev.EventID()),
		zap.String("subscription_id", ev.SubscriptionID))

	binding, ok := r.tiers.Price(ev.PriceID)
	if !ok {
		logger.Warn("Subscription price is not bound to a tier, acknowledging", zap.String("price_id", ev.PriceID))
		return OutcomeIgnored, nil
	}

	userID, err := r.resolveUser(ctx, ev.Metadata, ev.SubscriptionID, ev.CustomerID)
	if err != nil {
		return "", err
	}

	return r.guard.Run(ctx, ev.EventID(), ev.EventType(), func(tx domainRepo.Store) error {
		sub, err := findSubscription(ctx, tx, ev.SubscriptionID, ev.CustomerID, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			if userID == uuid.Nil {
				return domainErrors.NewNotFoundError("subscription owner", ev.CustomerID)
			}
			sub = r.newSubscription(userID)
		}

		if isStale(sub, ev.CreatedAt()) {
			logger.Info("Subscription event older than stored state",
				zap.Time("event_created", ev.CreatedAt()),
				zap.Time("last_event_at", *sub.LastEventAt))
			return errStaleEvent
		}

		subscriptionID := ev.SubscriptionID
		sub.StripeSubscriptionID = &subscriptionID
		sub.StripeCustomerID = ev.CustomerID
		sub.StripePriceID = ev.PriceID
		sub.Status = mapSubscriptionStatus(ev.Status)
		sub.Interval = model.BillingInterval(binding.Interval)
		if !ev.CurrentPeriodStart.IsZero() {
			start := ev.CurrentPeriodStart
			sub.CurrentPeriodStart = &start
		}
		if !ev.CurrentPeriodEnd.IsZero() {
			end := ev.CurrentPeriodEnd
			sub.CurrentPeriodEnd = &end
		}
		if sub.Status == model.SubscriptionStatusCanceled {
			applyTier(sub, model.TierNone, r.tiers)
		} else {
			applyTier(sub, model.Tier(binding.Tier), r.tiers)
		}
		markApplied(sub, ev.CreatedAt())

		logger.Info("Subscription updated",
			zap.String("user_id", sub.UserID.String()),
			zap.String("tier", string(sub.Tier)),
			zap.String("status", string(sub.Status)))
		return tx.Subscriptions().Save(ctx, sub)
	})
}

// handleSubscriptionDeleted drops the user back to the free tier. Credits already granted stay.
func (r *WebhookRouter) handleSubscriptionDeleted(ctx context.Context, ev event.SubscriptionDeleted) (Outcome, error) {
	logger := r.logger.With(
		zap.String("event_id", ev.EventID()),
		zap.String("subscription_id", ev.SubscriptionID))

	userID := userFromMetadata(ev.Metadata)

	return r.guard.Run(ctx, ev.EventID(), ev.EventType(), func(tx domainRepo.Store) error {
		sub, err := findSubscription(ctx, tx, ev.SubscriptionID, ev.CustomerID, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domainErrors.NewNotFoundError("subscription", ev.SubscriptionID)
		}
		if isStale(sub, ev.CreatedAt()) {
			return errStaleEvent
		}

		now := r.now()
		sub.Status = model.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		applyTier(sub, model.TierNone, r.tiers)
		markApplied(sub, ev.CreatedAt())

		logger.Info("Subscription canceled", zap.String("user_id", sub.UserID.String()))
		return tx.Subscriptions().Save(ctx, sub)
	})
}

// handleInvoicePaymentSucceeded grants the period's credits when a subscription invoice is paid
func (r *WebhookRouter) handleInvoicePaymentSucceeded(ctx context.Context, ev event.InvoicePaymentSucceeded) (Outcome, error) {
	logger := r.logger.With(
		zap.String("event_id", ev.EventID()),
		zap.String("invoice_id", ev.InvoiceID),
		zap.String("subscription_id", ev.SubscriptionID))

	if !ev.IsRenewal() {
		logger.Info("Invoice is not a subscription period start, acknowledging", zap.String("billing_reason", ev.BillingReason))
		return OutcomeIgnored, nil
	}

	userID, err := r.resolveUser(ctx, nil, ev.SubscriptionID, ev.CustomerID)
	if err != nil {
		return "", err
	}

	return r.guard.Run(ctx, ev.EventID(), ev.EventType(), func(tx domainRepo.Store) error {
		sub, err := findSubscription(ctx, tx, ev.SubscriptionID, ev.CustomerID, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			if userID == uuid.Nil {
				return domainErrors.NewNotFoundError("subscription", ev.SubscriptionID)
			}
			sub = r.newSubscription(userID)
			sub.StripeCustomerID = ev.CustomerID
		}

		binding, bound := r.tiers.Price(ev.PriceID)

		// A paid period is granted even when the subscription has since been
		// canceled or replaced; only its state is left untouched.
		grant := sub
		if isStale(sub, ev.CreatedAt()) || sub.Status == model.SubscriptionStatusCanceled {
			logger.Info("Renewal predates stored subscription state, granting without state change",
				zap.String("status", string(sub.Status)),
				zap.Time("event_created", ev.CreatedAt()))
			if bound {
				paid := *sub
				paid.Interval = model.BillingInterval(binding.Interval)
				applyTier(&paid, model.Tier(binding.Tier), r.tiers)
				grant = &paid
			}
		} else {
			// The first invoice can arrive before customer.subscription.created.
			if bound {
				sub.StripePriceID = ev.PriceID
				sub.Interval = model.BillingInterval(binding.Interval)
				applyTier(sub, model.Tier(binding.Tier), r.tiers)
			}
			if ev.SubscriptionID != "" && sub.StripeSubscriptionID == nil {
				subscriptionID := ev.SubscriptionID
				sub.StripeSubscriptionID = &subscriptionID
			}
			sub.Status = model.SubscriptionStatusActive
			markApplied(sub, ev.CreatedAt())
			if err := tx.Subscriptions().Save(ctx, sub); err != nil {
				return err
			}
		}

		entry, err := r.ledger.GrantForRenewal(ctx, tx, grant, ev.EventID())
		if err != nil {
			return err
		}
		if entry != nil {
			logger.Info("Renewal credits granted",
				zap.String("user_id", sub.UserID.String()),
				zap.Int64("credits", entry.Delta),
				zap.String("reason", string(entry.Reason)),
				grantWindow(ev.PeriodStart, ev.PeriodEnd))
		}
		return nil
	})
}

// handleInvoicePaymentFailed marks the subscription past due
func (r *WebhookRouter) handleInvoicePaymentFailed(ctx context.Context, ev event.InvoicePaymentFailed) (Outcome, error) {
	logger := r.logger.With(
		zap.String("event_id", ev.EventID()),
		zap.String("invoice_id", ev.InvoiceID),
		zap.String("subscription_id", ev.SubscriptionID))

	return r.guard.Run(ctx, ev.EventID(), ev.EventType(), func(tx domainRepo.Store) error {
		sub, err := findSubscription(ctx, tx, ev.SubscriptionID, ev.CustomerID, uuid.Nil)
		if err != nil {
			return err
		}
		if sub == nil {
			return domainErrors.NewNotFoundError("subscription", ev.SubscriptionID)
		}
		if sub.Status == model.SubscriptionStatusCanceled {
			return domainErrors.NewInvalidTransitionError("subscription", sub.ID.String(),
				string(sub.Status), string(model.SubscriptionStatusPastDue), "subscription already canceled")
		}
		if isStale(sub, ev.CreatedAt()) {
			logger.Info("Payment failure older than stored state",
				zap.Time("event_created", ev.CreatedAt()),
				zap.Time("last_event_at", *sub.LastEventAt))
			return errStaleEvent
		}

		sub.Status = model.SubscriptionStatusPastDue
		markApplied(sub, ev.CreatedAt())
		logger.Warn("Subscription payment failed",
			zap.String("user_id", sub.UserID.String()),
			zap.Int64("attempt_count", ev.AttemptCount))
		return tx.Subscriptions().Save(ctx, sub)
	})
}
