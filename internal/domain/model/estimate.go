package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	"gorm.io/gorm"
)

// EstimateStatus is the lifecycle state of an estimate
type EstimateStatus string

const (
	EstimateStatusDraft    EstimateStatus = "draft"
	EstimateStatusSent     EstimateStatus = "sent"
	EstimateStatusAccepted EstimateStatus = "accepted"
	EstimateStatusInvoiced EstimateStatus = "invoiced"
	EstimateStatusDeclined EstimateStatus = "declined"
)

// Estimate is a priced proposal sent to a client. Totals are frozen by the
// editor before the estimate reaches the billing pipeline.
type Estimate struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	ClientID       *uuid.UUID      `gorm:"type:uuid" json:"client_id,omitempty"`
	ClientName     string          `gorm:"size:200;not null" json:"client_name"`
	ClientEmail    string          `gorm:"size:320" json:"client_email"`
	Number         string          `gorm:"size:50;not null;uniqueIndex" json:"number"`
	Items          []EstimateItem  `gorm:"foreignKey:EstimateID;constraint:OnDelete:CASCADE" json:"items"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	TaxRate        decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	DepositKind    deposit.Kind    `gorm:"size:10;not null" json:"deposit_kind"`
	DepositValue   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"deposit_value"`
	Status         EstimateStatus  `gorm:"size:20;not null;index" json:"status"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	AcceptedAt     *time.Time      `json:"accepted_at,omitempty"`
	AcceptedFromIP *string         `gorm:"size:64" json:"accepted_from_ip,omitempty"`
	DeclinedAt     *time.Time      `json:"declined_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EstimateItem is one line of an estimate
type EstimateItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EstimateID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"estimate_id"`
	Position    int             `gorm:"not null" json:"position"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Taxable     bool            `gorm:"not null;default:false" json:"taxable"`
}

// DepositSpec returns the deposit terms of the estimate
func (e *Estimate) DepositSpec() deposit.Spec {
	return deposit.Spec{Kind: e.DepositKind, Value: e.DepositValue}
}

// BeforeCreate assigns ids to the estimate and its items
func (e *Estimate) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = EstimateStatusDraft
	}
	return nil
}

func (i *EstimateItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (Estimate) TableName() string { return "estimates" }

func (EstimateItem) TableName() string { return "estimate_items" }
