package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerReason explains why a ledger entry exists
type LedgerReason string

const (
	LedgerReasonMonthlyGrant     LedgerReason = "monthly_grant"
	LedgerReasonAnnualFirstGrant LedgerReason = "annual_first_grant"
	LedgerReasonTemplatePurchase LedgerReason = "template_purchase"
	LedgerReasonAdjustment       LedgerReason = "adjustment"
)

// CreditLedgerEntry is an append-only signed credit delta.
// A user's balance is the sum of their entries.
type CreditLedgerEntry struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID    `gorm:"type:uuid;not null;index:idx_ledger_user_created" json:"user_id"`
	Delta       int64        `gorm:"not null" json:"delta"`
	Reason      LedgerReason `gorm:"size:40;not null" json:"reason"`
	EventID     string       `gorm:"size:255;not null;uniqueIndex" json:"event_id"`
	ReferenceID *string      `gorm:"size:255" json:"reference_id,omitempty"`
	CreatedAt   time.Time    `gorm:"index:idx_ledger_user_created" json:"created_at"`
}

func (e *CreditLedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }
