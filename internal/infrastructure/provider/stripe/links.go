package stripe

import (
	"context"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"go.uber.org/zap"
)

// LinkClientConfig holds the redirect targets of hosted checkout pages
type LinkClientConfig struct {
	SuccessURL string
	CancelURL  string
}

// LinkClient issues Checkout Sessions for invoice balances
type LinkClient struct {
	sessions *session.Client
	cfg      LinkClientConfig
	logger   *zap.Logger
}

// NewLinkClient creates a payment link provider on top of backend
func NewLinkClient(backend stripeapi.Backend, secretKey string, cfg LinkClientConfig, logger *zap.Logger) *LinkClient {
	return &LinkClient{
		sessions: &session.Client{B: backend, Key: secretKey},
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateLink opens a one-line Checkout Session for req.Amount. The request's
// idempotency key is forwarded so a retried call never opens a second session.
func (c *LinkClient) CreateLink(ctx context.Context, req provider.LinkRequest) (*provider.PaymentLink, error) {
	cents := req.Amount.Round(deposit.CurrencyPlaces).Shift(2).IntPart()

	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(c.cfg.SuccessURL),
		CancelURL:         stripeapi.String(c.cfg.CancelURL),
		ClientReferenceID: stripeapi.String(req.InvoiceID.String()),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(strings.ToLower(req.Currency)),
					UnitAmount: stripeapi.Int64(cents),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(req.Description),
					},
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripeapi.String(req.IdempotencyKey)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		c.logger.Error("Failed to create checkout session",
			zap.String("invoice_id", req.InvoiceID.String()),
			zap.Error(err))
		return nil, mapStripeError("create checkout session", err)
	}

	link := &provider.PaymentLink{ID: s.ID, URL: s.URL}
	if s.ExpiresAt > 0 {
		expires := time.Unix(s.ExpiresAt, 0).UTC()
		link.ExpiresAt = &expires
	}

	c.logger.Debug("Checkout session created",
		zap.String("session_id", s.ID),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.Int64("amount_cents", cents))
	return link, nil
}
