// Package event decodes verified provider events into a closed set of typed variants.
package event

import (
	"encoding/json"
	"time"
)

// Provider event type names. Nothing outside this package and the router
// depends on these strings.
const (
	TypeCheckoutSessionCompleted = "checkout.session.completed"
	TypeSubscriptionCreated      = "customer.subscription.created"
	TypeSubscriptionUpdated      = "customer.subscription.updated"
	TypeSubscriptionDeleted      = "customer.subscription.deleted"
	TypeInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	TypeInvoicePaymentFailed     = "invoice.payment_failed"
)

// Metadata keys written on checkout sessions so completions can be matched back.
const (
	MetaKind       = "kind"
	MetaEstimateID = "estimate_id"
	MetaInvoiceID  = "invoice_id"
	MetaUserID     = "user_id"
	MetaClientIP   = "client_ip"
)

// Values of MetaKind.
const (
	KindEstimateDeposit = "estimate_deposit"
	KindInvoiceBalance  = "invoice_balance"
)

// Envelope is a verified event whose payload has not been interpreted yet.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created time.Time       `json:"created"`
	Payload json.RawMessage `json:"payload"`
}

// Meta identifies the event a variant was decoded from.
type Meta struct {
	ID      string
	Type    string
	Created time.Time
}

func (m Meta) EventID() string      { return m.ID }
func (m Meta) EventType() string    { return m.Type }
func (m Meta) CreatedAt() time.Time { return m.Created }
func (Meta) isEvent()               {}

// Event is implemented only by the variants in this package.
type Event interface {
	EventID() string
	EventType() string
	CreatedAt() time.Time
	isEvent()
}
