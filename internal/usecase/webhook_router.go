package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

// RouterDeps are the collaborators of the webhook router
type RouterDeps struct {
	Store        domainRepo.Store
	Guard        *IdempotencyGuard
	Ledger       *CreditLedger
	Materializer *InvoiceMaterializer
	LinkIssuer   *PaymentLinkIssuer
	Notifier     provider.Notifier
	Customers    provider.CustomerDirectory
	Tiers        *config.TierCatalog
	Logger       *zap.Logger

	// Now defaults to the UTC wall clock.
	Now func() time.Time
}

// WebhookRouter dispatches verified provider events to their handlers
type WebhookRouter struct {
	store        domainRepo.Store
	guard        *IdempotencyGuard
	ledger       *CreditLedger
	materializer *InvoiceMaterializer
	linkIssuer   *PaymentLinkIssuer
	notifier     provider.Notifier
	customers    provider.CustomerDirectory
	tiers        *config.TierCatalog
	logger       *zap.Logger
	now          func() time.Time
}

// NewWebhookRouter creates a new webhook router
func NewWebhookRouter(deps RouterDeps) *WebhookRouter {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &WebhookRouter{
		store:        deps.Store,
		guard:        deps.Guard,
		ledger:       deps.Ledger,
		materializer: deps.Materializer,
		linkIssuer:   deps.LinkIssuer,
		notifier:     deps.Notifier,
		customers:    deps.Customers,
		tiers:        deps.Tiers,
		logger:       deps.Logger,
		now:          now,
	}
}

// Route decodes env and runs the handler for its type. Unknown types and
// payloads that fail to decode are acknowledged as ignored. A returned error
// means the provider should redeliver.
func (r *WebhookRouter) Route(ctx context.Context, env event.Envelope) (Outcome, error) {
	logger := r.logger.With(zap.String("event_id", env.ID), zap.String("event_type", env.Type))

	ev, err := event.Decode(env)
	if err != nil {
		var decodeErr *event.DecodeError
		if errors.As(err, &decodeErr) {
			logger.Warn("Event payload could not be decoded, acknowledging", zap.Error(err))
			return OutcomeIgnored, nil
		}
		return "", err
	}

	var outcome Outcome
	switch e := ev.(type) {
	case event.CheckoutSessionCompleted:
		outcome, err = r.handleCheckoutCompleted(ctx, e)
	case event.SubscriptionChanged:
		outcome, err = r.handleSubscriptionChanged(ctx, e)
	case event.SubscriptionDeleted:
		outcome, err = r.handleSubscriptionDeleted(ctx, e)
	case event.InvoicePaymentSucceeded:
		outcome, err = r.handleInvoicePaymentSucceeded(ctx, e)
	case event.InvoicePaymentFailed:
		outcome, err = r.handleInvoicePaymentFailed(ctx, e)
	case event.Unhandled:
		logger.Info("Unhandled event type, acknowledging")
		return OutcomeIgnored, nil
	}

	if err != nil {
		logger.Error("Event handling failed", zap.Error(err))
		return "", err
	}
	logger.Info("Event routed", zap.String("outcome", string(outcome)))
	return outcome, nil
}
