// Package stripe adapts the Stripe API to the billing pipeline's provider interfaces.
package stripe

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"go.uber.org/zap"
)

// NewBackend builds an API backend bound to the configured base URL and retry budget.
// Clients built on it never touch stripe-go's global key or backends.
func NewBackend(cfg config.StripeConfig, httpClient *http.Client, logger *zap.Logger) stripeapi.Backend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	backendCfg := &stripeapi.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripeapi.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     logger.Named("stripe").Sugar(),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripeapi.String(cfg.APIURL)
	}
	return stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg)
}

// mapStripeError keeps the API error code in the message so logs stay useful
// after the usecase layer wraps it.
func mapStripeError(op string, err error) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s: %s (status %d, code %s): %w",
			op, stripeErr.Msg, stripeErr.HTTPStatusCode, stripeErr.Code, err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

func isResourceMissing(err error) bool {
	var stripeErr *stripeapi.Error
	return errors.As(err, &stripeErr) &&
		(stripeErr.Code == stripeapi.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound)
}
