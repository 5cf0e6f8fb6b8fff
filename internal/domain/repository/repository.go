// Package repository defines persistence ports of the billing pipeline.
//
// Lookups return (nil, nil) when the row does not exist so callers can tell
// "nothing there" apart from a failed query.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
)

// Store groups the repositories that share one database handle.
// Repositories obtained from the tx passed to WithinTransaction join that transaction.
type Store interface {
	Estimates() EstimateRepository
	Invoices() InvoiceRepository
	Payments() PaymentRepository
	Ledger() LedgerRepository
	Subscriptions() SubscriptionRepository
	ProcessedEvents() ProcessedEventRepository

	// WithinTransaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

type EstimateRepository interface {
	Create(ctx context.Context, estimate *model.Estimate) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Estimate, error)
	// FindForUpdate loads the estimate and locks its row until the transaction ends.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Estimate, error)
	// SaveTransition persists a lifecycle change made in memory. It fails with
	// InvalidTransitionError if the stored status is no longer from.
	SaveTransition(ctx context.Context, estimate *model.Estimate, from model.EstimateStatus) error
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByEstimateID(ctx context.Context, estimateID uuid.UUID) (*model.Invoice, error)
	// SaveSettlement persists amount paid and status after a payment. It fails with
	// InvalidTransitionError if status or amount paid changed since the invoice was read.
	SaveSettlement(ctx context.Context, invoice *model.Invoice, from model.InvoiceStatus, paidBefore decimal.Decimal) error
	// AttachPaymentLink stores the link only while the invoice is pending and has none.
	AttachPaymentLink(ctx context.Context, invoice *model.Invoice) error
	RecordLinkFailure(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	// ListAwaitingLink returns pending invoices with a balance, no link and fewer than maxAttempts tries.
	ListAwaitingLink(ctx context.Context, maxAttempts, limit int) ([]*model.Invoice, error)
}

type PaymentRepository interface {
	// Create inserts the payment. It returns false without error when a payment
	// with the same external reference already exists.
	Create(ctx context.Context, payment *model.Payment) (bool, error)
	FindByExternalReference(ctx context.Context, reference string) (*model.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Payment, error)
}

type LedgerRepository interface {
	// Append inserts the entry. It returns false without error when an entry
	// for the same event id already exists.
	Append(ctx context.Context, entry *model.CreditLedgerEntry) (bool, error)
	FindByEventID(ctx context.Context, eventID string) (*model.CreditLedgerEntry, error)
	// Balance is the sum of all deltas of the user.
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditLedgerEntry, int64, error)
	// LockUser serializes debits for one user until the transaction ends.
	LockUser(ctx context.Context, userID uuid.UUID) error
}

type SubscriptionRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.UserSubscription, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*model.UserSubscription, error)
	FindByCustomerID(ctx context.Context, customerID string) (*model.UserSubscription, error)
	// Save inserts or updates the subscription row of the user.
	Save(ctx context.Context, subscription *model.UserSubscription) error
}

type ProcessedEventRepository interface {
	// Claim records the event id. It returns false when the id was already recorded.
	Claim(ctx context.Context, eventID, eventType string) (bool, error)
	Exists(ctx context.Context, eventID string) (bool, error)
}
