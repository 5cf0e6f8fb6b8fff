package repository

import (
	"context"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func (r *subscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.UserSubscription, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *subscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*model.UserSubscription, error) {
	return r.first(ctx, "stripe_subscription_id = ?", subscriptionID)
}

func (r *subscriptionRepository) FindByCustomerID(ctx context.Context, customerID string) (*model.UserSubscription, error) {
	return r.first(ctx, "stripe_customer_id = ?", customerID)
}

func (r *subscriptionRepository) first(ctx context.Context, query string, arg interface{}) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	if err := forUpdate(r.db.WithContext(ctx)).Where(query, arg).First(&sub).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription", zap.Error(err))
		return nil, domainErrors.NewPersistenceError("get subscription", err)
	}
	return &sub, nil
}

// Save inserts a new subscription row or updates the existing one
func (r *subscriptionRepository) Save(ctx context.Context, sub *model.UserSubscription) error {
	db := r.db.WithContext(ctx)

	var err error
	if sub.ID == uuid.Nil {
		err = db.Create(sub).Error
	} else {
		err = db.Save(sub).Error
	}

	if err != nil {
		r.logger.Error("Failed to save subscription",
			zap.String("user_id", sub.UserID.String()),
			zap.Error(err))
		return domainErrors.NewPersistenceError("save subscription", err)
	}
	return nil
}
