package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type JWTConfig struct {
	Secret string `yaml:"secret" validate:"required"`
	Issuer string `yaml:"issuer"`
}

type StripeConfig struct {
	SecretKey        string        `yaml:"secret_key" validate:"required"`
	WebhookSecret    string        `yaml:"webhook_secret" validate:"required"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance"`
	// APIURL overrides the Stripe API base URL (stripe-mock, tests).
	APIURL            string `yaml:"api_url"`
	MaxNetworkRetries int64  `yaml:"max_network_retries"`
}

// BillingConfig controls invoice materialization and payment-link issuance.
type BillingConfig struct {
	Currency        string        `yaml:"currency" validate:"len=3"`
	InvoiceDueDays  int           `yaml:"invoice_due_days" validate:"gt=0"`
	LinkTimeout     time.Duration `yaml:"link_timeout" validate:"gt=0"`
	MaxLinkAttempts int           `yaml:"max_link_attempts" validate:"gt=0"`
	SuccessURL      string        `yaml:"success_url" validate:"required,url"`
	CancelURL       string        `yaml:"cancel_url" validate:"required,url"`
	QRSize          int           `yaml:"qr_size"`
	TiersPath       string        `yaml:"tiers_path"`
}

func (c *StripeConfig) applyDefaults() {
	if c.WebhookTolerance == 0 {
		c.WebhookTolerance = 5 * time.Minute
	}
	if c.MaxNetworkRetries == 0 {
		c.MaxNetworkRetries = 2
	}
}

func (c *BillingConfig) applyDefaults() {
	if c.Currency == "" {
		c.Currency = "usd"
	}
	if c.InvoiceDueDays == 0 {
		c.InvoiceDueDays = 30
	}
	if c.LinkTimeout == 0 {
		c.LinkTimeout = 10 * time.Second
	}
	if c.MaxLinkAttempts == 0 {
		c.MaxLinkAttempts = 5
	}
	if c.QRSize == 0 {
		c.QRSize = 256
	}
}
