package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentKind tells which document a payment settles
type PaymentKind string

const (
	PaymentKindDeposit PaymentKind = "deposit"
	PaymentKindBalance PaymentKind = "balance"
)

// PaymentStatus represents the settlement state of a payment
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is an immutable record of money received against an estimate or invoice.
// ExternalReference is unique so a redelivered provider event cannot record it twice.
type Payment struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	EstimateID        *uuid.UUID      `gorm:"type:uuid;index" json:"estimate_id,omitempty"`
	InvoiceID         *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id,omitempty"`
	Kind              PaymentKind     `gorm:"size:20;not null" json:"kind"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency          string          `gorm:"size:3;not null" json:"currency"`
	Method            string          `gorm:"size:50;not null" json:"method"`
	ExternalReference string          `gorm:"size:255;not null;uniqueIndex" json:"external_reference"`
	Status            PaymentStatus   `gorm:"size:20;not null" json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Payment) TableName() string { return "payments" }
