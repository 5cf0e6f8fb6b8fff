package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

// SubscriptionView is the user's plan as the product sees it
type SubscriptionView struct {
	Tier             model.Tier               `json:"tier"`
	Status           model.SubscriptionStatus `json:"status"`
	Interval         model.BillingInterval    `json:"interval,omitempty"`
	CurrentPeriodEnd *string                  `json:"current_period_end,omitempty"`
	MonthlyCredits   int64                    `json:"monthly_credits"`
	Features         config.Features          `json:"features"`
	CreditBalance    int64                    `json:"credit_balance"`
}

// SubscriptionService answers plan queries for the API
type SubscriptionService struct {
	store  domainRepo.Store
	tiers  *config.TierCatalog
	logger *zap.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(store domainRepo.Store, tiers *config.TierCatalog, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{store: store, tiers: tiers, logger: logger}
}

// Get returns the user's subscription. Users without one are on the free tier.
func (s *SubscriptionService) Get(ctx context.Context, userID uuid.UUID) (*SubscriptionView, error) {
	sub, err := s.store.Subscriptions().FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.store.Ledger().Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub == nil {
		plan, _ := s.tiers.Plan(string(model.TierNone))
		return &SubscriptionView{
			Tier:           model.TierNone,
			Status:         model.SubscriptionStatusActive,
			MonthlyCredits: plan.MonthlyCredits,
			Features:       plan.Features,
			CreditBalance:  balance,
		}, nil
	}

	view := &SubscriptionView{
		Tier:           sub.Tier,
		Status:         sub.Status,
		Interval:       sub.Interval,
		MonthlyCredits: sub.MonthlyCredits,
		Features: config.Features{
			ExportLimit:     sub.ExportLimit,
			RemoveWatermark: sub.RemoveWatermark,
			TemplateCount:   sub.TemplateCount,
		},
		CreditBalance: balance,
	}
	if sub.CurrentPeriodEnd != nil {
		end := sub.CurrentPeriodEnd.Format(time.RFC3339)
		view.CurrentPeriodEnd = &end
	}
	return view, nil
}
