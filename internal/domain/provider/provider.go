// Package provider defines the outbound collaborators of the billing pipeline.
package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
)

// EventVerifier authenticates raw webhook deliveries.
type EventVerifier interface {
	// Verify checks signature against the exact payload bytes before parsing anything.
	Verify(payload []byte, signature string) (event.Envelope, error)
}

// LinkRequest asks for a hosted payment page for an invoice balance.
type LinkRequest struct {
	InvoiceID      uuid.UUID
	UserID         uuid.UUID
	InvoiceNumber  string
	Description    string
	Amount         decimal.Decimal
	Currency       string
	CustomerEmail  string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentLink is a hosted payment page reference.
type PaymentLink struct {
	ID        string
	URL       string
	ExpiresAt *time.Time
}

// PaymentLinkProvider issues hosted payment pages.
type PaymentLinkProvider interface {
	CreateLink(ctx context.Context, req LinkRequest) (*PaymentLink, error)
}

// Customer is a provider-side customer record.
type Customer struct {
	ID       string
	Email    string
	Name     string
	Metadata map[string]string
}

// CustomerDirectory resolves provider customers. Returns nil, nil when unknown.
type CustomerDirectory interface {
	LookupCustomer(ctx context.Context, customerID string) (*Customer, error)
}

// CodeRenderer turns a URL into a scannable image.
type CodeRenderer interface {
	Render(content string) ([]byte, error)
	ContentType() string
}

// ArtifactStore keeps rendered artifacts and returns a reference to display them.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// DepositNotification is the data handed to the email collaborator after a deposit.
type DepositNotification struct {
	UserID        uuid.UUID       `json:"userId"`
	ClientName    string          `json:"clientName"`
	ClientEmail   string          `json:"clientEmail"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	InvoiceNumber string          `json:"invoiceNumber"`
	PaymentLink   string          `json:"paymentLink,omitempty"`
}

// Notifier delivers client notifications.
type Notifier interface {
	DepositReceived(ctx context.Context, n DepositNotification) error
}
