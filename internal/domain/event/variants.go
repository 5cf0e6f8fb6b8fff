package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutSessionCompleted is a finished hosted payment page.
type CheckoutSessionCompleted struct {
	Meta
	SessionID         string
	Mode              string
	PaymentStatus     string
	PaymentIntentID   string
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
	CustomerEmail     string
	CustomerName      string
	Amount            decimal.Decimal
	Currency          string
	Metadata          map[string]string
}

// Purpose returns the MetaKind the session was created with.
func (e CheckoutSessionCompleted) Purpose() string {
	return e.Metadata[MetaKind]
}

// ExternalReference identifies the money movement for payment deduplication.
func (e CheckoutSessionCompleted) ExternalReference() string {
	if e.PaymentIntentID != "" {
		return e.PaymentIntentID
	}
	return e.SessionID
}

// SubscriptionChanged is a created or updated subscription.
type SubscriptionChanged struct {
	Meta
	SubscriptionID     string
	CustomerID         string
	Status             string
	PriceID            string
	Interval           string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	Metadata           map[string]string
}

// SubscriptionDeleted is a subscription that ended.
type SubscriptionDeleted struct {
	Meta
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// InvoicePaymentSucceeded is a paid subscription invoice (initial or renewal).
type InvoicePaymentSucceeded struct {
	Meta
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	BillingReason  string
	PriceID        string
	AmountPaid     decimal.Decimal
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// IsRenewal reports whether the invoice starts a new billing period.
func (e InvoicePaymentSucceeded) IsRenewal() bool {
	return e.BillingReason == "subscription_cycle" || e.BillingReason == "subscription_create"
}

// InvoicePaymentFailed is a failed subscription charge.
type InvoicePaymentFailed struct {
	Meta
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	AttemptCount   int64
}

// Unhandled is any event type the pipeline does not act on.
type Unhandled struct {
	Meta
}
