package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/middleware/auth"
)

// Handlers groups the endpoint handlers served over HTTP
type Handlers struct {
	Webhook      *WebhookHandler
	Credits      *CreditHandler
	Subscription *SubscriptionHandler
	Documents    *DocumentHandler
}

// RequestValidator adapts validator/v10 to echo.Validator
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// RegisterRoutes mounts the public and JWT-protected routes on e
func RegisterRoutes(e *echo.Echo, h Handlers, jwtConfig auth.JWTConfig, serviceName string) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	// Webhook route (outside API versioning)
	e.POST("/webhook", h.Webhook.HandleWebhook)

	v1 := e.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	credits := v1.Group("/credits")
	credits.GET("/balance", h.Credits.GetBalance)
	credits.GET("/entries", h.Credits.GetEntries)
	credits.POST("/consume", h.Credits.Consume)

	v1.GET("/subscription", h.Subscription.GetCurrent)

	v1.POST("/estimates/:id/send", h.Documents.SendEstimate)
	v1.POST("/estimates/:id/decline", h.Documents.DeclineEstimate)
	v1.POST("/invoices/:id/payment-link", h.Documents.IssuePaymentLink)
}
