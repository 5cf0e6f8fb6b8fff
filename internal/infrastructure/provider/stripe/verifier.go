package stripe

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
	"go.uber.org/zap"
)

// Verifier checks the Stripe-Signature header against the raw body
type Verifier struct {
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
}

// NewVerifier creates a webhook verifier for the configured endpoint secret
func NewVerifier(cfg config.StripeConfig, logger *zap.Logger) *Verifier {
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{
		secret:    cfg.WebhookSecret,
		tolerance: tolerance,
		logger:    logger,
	}
}

type wireEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Verify authenticates payload and returns its envelope. The payload is not
// parsed until the signature has been checked.
func (v *Verifier) Verify(payload []byte, signature string) (event.Envelope, error) {
	if signature == "" {
		return event.Envelope{}, domainErrors.NewAuthenticationError("missing signature", webhook.ErrNotSigned)
	}

	if err := webhook.ValidatePayloadWithTolerance(payload, signature, v.secret, v.tolerance); err != nil {
		v.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return event.Envelope{}, domainErrors.NewAuthenticationError("signature mismatch", err)
	}

	var wire wireEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		return event.Envelope{}, domainErrors.NewAuthenticationError("malformed envelope", err)
	}
	if wire.ID == "" || wire.Type == "" || len(wire.Data.Object) == 0 {
		return event.Envelope{}, domainErrors.NewAuthenticationError("incomplete envelope", nil)
	}

	return event.Envelope{
		ID:      wire.ID,
		Type:    wire.Type,
		Created: time.Unix(wire.Created, 0).UTC(),
		Payload: wire.Data.Object,
	}, nil
}
