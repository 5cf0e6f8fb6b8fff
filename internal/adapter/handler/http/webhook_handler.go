package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	apperrors "github.com/wekeepgrowing/paper-n-print-billing/pkg/errors"
	"go.uber.org/zap"
)

// MaxWebhookBody is the largest webhook payload accepted
const MaxWebhookBody = 64 << 10

// EventRouter applies a verified event
type EventRouter interface {
	Route(ctx context.Context, env event.Envelope) (usecase.Outcome, error)
}

type WebhookHandler struct {
	logger   *zap.Logger
	verifier provider.EventVerifier
	router   EventRouter
}

func NewWebhookHandler(logger *zap.Logger, verifier provider.EventVerifier, router EventRouter) *WebhookHandler {
	return &WebhookHandler{
		logger:   logger,
		verifier: verifier,
		router:   router,
	}
}

// HandleWebhook handles POST /webhook. 400 tells the provider to stop
// retrying; 500 asks for redelivery.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxWebhookBody+1))
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}
	if len(body) > MaxWebhookBody {
		h.logger.Warn("Webhook payload too large", zap.Int("limit", MaxWebhookBody))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Payload too large"})
	}

	env, err := h.verifier.Verify(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		var authErr *domainErrors.AuthenticationError
		if !errors.As(err, &authErr) {
			h.logger.Error("Webhook verification error", zap.Error(err))
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Webhook signature verification failed"})
	}

	logger := h.logger.With(
		zap.String("event_id", env.ID),
		zap.String("event_type", env.Type))
	logger.Info("Webhook event received", zap.Time("created", env.Created))

	outcome, err := h.router.Route(c.Request().Context(), env)
	if err != nil {
		apperrors.LogError(logger, err, "Webhook event processing failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Webhook processing failed"})
	}

	logger.Info("Webhook event handled", zap.String("outcome", string(outcome)))
	return c.JSON(http.StatusOK, echo.Map{
		"received": true,
		"outcome":  outcome,
	})
}
