package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tier is a subscription plan level
type Tier string

const (
	TierNone   Tier = "none"
	TierLite   Tier = "lite"
	TierPro    Tier = "pro"
	TierAgency Tier = "agency"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// BillingInterval is how often the subscription renews
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

// UserSubscription is the single subscription row of a user, mirrored from Stripe.
type UserSubscription struct {
	ID                   uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Tier                 Tier               `gorm:"size:20;not null" json:"tier"`
	Status               SubscriptionStatus `gorm:"size:20;not null" json:"status"`
	Interval             BillingInterval    `gorm:"size:10" json:"interval"`
	StripeSubscriptionID *string            `gorm:"size:100;uniqueIndex" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     string             `gorm:"size:100;index" json:"stripe_customer_id"`
	StripePriceID        string             `gorm:"size:100" json:"stripe_price_id"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`

	// Derived from the tier catalog when the tier changes.
	MonthlyCredits  int64 `gorm:"not null;default:0" json:"monthly_credits"`
	ExportLimit     int   `gorm:"not null;default:0" json:"export_limit"`
	RemoveWatermark bool  `gorm:"not null;default:false" json:"remove_watermark"`
	TemplateCount   int   `gorm:"not null;default:0" json:"template_count"`

	// Creation time of the newest provider event applied, used to drop stale deliveries.
	LastEventAt *time.Time `json:"last_event_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *UserSubscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (UserSubscription) TableName() string { return "user_subscriptions" }
