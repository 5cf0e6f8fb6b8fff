package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	"go.uber.org/zap"
)

// DocumentHandler exposes the user-triggered estimate and invoice transitions
type DocumentHandler struct {
	logger    *zap.Logger
	estimates *usecase.EstimateService
	links     *usecase.PaymentLinkIssuer
}

func NewDocumentHandler(logger *zap.Logger, estimates *usecase.EstimateService, links *usecase.PaymentLinkIssuer) *DocumentHandler {
	return &DocumentHandler{logger: logger, estimates: estimates, links: links}
}

// SendEstimate handles POST /api/v1/estimates/:id/send
func (h *DocumentHandler) SendEstimate(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	estimateID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	estimate, err := h.estimates.Send(c.Request().Context(), userID, estimateID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, estimate)
}

// DeclineEstimate handles POST /api/v1/estimates/:id/decline
func (h *DocumentHandler) DeclineEstimate(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	estimateID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	estimate, err := h.estimates.Decline(c.Request().Context(), userID, estimateID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, estimate)
}

// IssuePaymentLink handles POST /api/v1/invoices/:id/payment-link. It retries
// issuance for an invoice whose link could not be created after the deposit.
func (h *DocumentHandler) IssuePaymentLink(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	invoiceID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	invoice, err := h.links.IssueForOwner(c.Request().Context(), userID, invoiceID)
	if err != nil {
		h.logger.Warn("Payment link issuance failed",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err))
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, invoice)
}
