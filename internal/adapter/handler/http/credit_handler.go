package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	"go.uber.org/zap"
)

// CreditHandler handles credit-related HTTP requests
type CreditHandler struct {
	logger *zap.Logger
	ledger *usecase.CreditLedger
}

// NewCreditHandler creates a new credit handler instance
func NewCreditHandler(logger *zap.Logger, ledger *usecase.CreditLedger) *CreditHandler {
	return &CreditHandler{
		logger: logger,
		ledger: ledger,
	}
}

// ConsumeCreditsRequest is the body of POST /api/v1/credits/consume
type ConsumeCreditsRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	ReferenceID string `json:"reference_id" validate:"omitempty,max=255"`
}

// ConsumeCreditsResponse reports the debit and the balance after it
type ConsumeCreditsResponse struct {
	Entry   *model.CreditLedgerEntry `json:"entry"`
	Balance int64                    `json:"balance"`
	Replay  bool                     `json:"replay"`
}

// GetBalance handles GET /api/v1/credits/balance
func (h *CreditHandler) GetBalance(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	balance, err := h.ledger.CurrentBalance(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get user credit balance",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]int64{"balance": balance})
}

// GetEntries handles GET /api/v1/credits/entries
func (h *CreditHandler) GetEntries(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}

	page, err := h.ledger.History(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// Consume handles POST /api/v1/credits/consume. The Idempotency-Key header
// is required; repeating a key returns the original debit.
func (h *CreditHandler) Consume(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key == "" || len(key) > 200 {
		return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key header required")
	}

	var req ConsumeCreditsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var reference *string
	if req.ReferenceID != "" {
		reference = &req.ReferenceID
	}

	result, err := h.ledger.ConsumeCredits(c.Request().Context(), userID, req.Amount, key, reference)
	if err != nil {
		h.logger.Warn("Credit consumption rejected",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", req.Amount),
			zap.Error(err))
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ConsumeCreditsResponse{
		Entry:   result.Entry,
		Balance: result.Balance,
		Replay:  result.Replay,
	})
}
