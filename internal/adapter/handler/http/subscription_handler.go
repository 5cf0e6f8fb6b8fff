package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	logger  *zap.Logger
	service *usecase.SubscriptionService
}

func NewSubscriptionHandler(logger *zap.Logger, service *usecase.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{logger: logger, service: service}
}

// GetCurrent handles GET /api/v1/subscription
func (h *SubscriptionHandler) GetCurrent(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	view, err := h.service.Get(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get subscription",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}
