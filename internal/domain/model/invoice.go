package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// Invoice is a bill for the balance left after a deposit
type Invoice struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	EstimateID  *uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"estimate_id,omitempty"`
	Number      string          `gorm:"size:50;not null;uniqueIndex" json:"number"`
	ClientName  string          `gorm:"size:200;not null" json:"client_name"`
	ClientEmail string          `gorm:"size:320" json:"client_email"`
	Items       []InvoiceItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	AmountPaid  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount_paid"`
	Status      InvoiceStatus   `gorm:"size:20;not null;index" json:"status"`
	DueDate     time.Time       `gorm:"not null" json:"due_date"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`

	// Hosted payment page for the outstanding balance, nil until issued.
	PaymentLinkURL    *string    `gorm:"size:2048" json:"payment_link,omitempty"`
	PaymentLinkID     *string    `gorm:"size:255" json:"payment_link_id,omitempty"`
	PaymentQR         *string    `json:"payment_qr,omitempty"`
	LinkAttempts      int        `gorm:"not null;default:0" json:"link_attempts"`
	LinkLastError     *string    `json:"link_last_error,omitempty"`
	LinkLastAttemptAt *time.Time `json:"link_last_attempt_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceItem is one line of an invoice. Synthetic marks the deposit credit line.
type InvoiceItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position    int             `gorm:"not null" json:"position"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Taxable     bool            `gorm:"not null;default:false" json:"taxable"`
	Synthetic   bool            `gorm:"not null;default:false" json:"synthetic"`
}

// Outstanding is the unpaid part of the invoice total, never negative
func (i *Invoice) Outstanding() decimal.Decimal {
	rest := i.Total.Sub(i.AmountPaid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// HasPaymentLink reports whether a hosted payment page is attached
func (i *Invoice) HasPaymentLink() bool {
	return i.PaymentLinkURL != nil && *i.PaymentLinkURL != ""
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *InvoiceItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (Invoice) TableName() string { return "invoices" }

func (InvoiceItem) TableName() string { return "invoice_items" }
