package repository

import (
	"context"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type estimateRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func withEstimateItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// Create saves a new estimate with its items
func (r *estimateRepository) Create(ctx context.Context, estimate *model.Estimate) error {
	if err := r.db.WithContext(ctx).Create(estimate).Error; err != nil {
		r.logger.Error("Failed to create estimate",
			zap.String("number", estimate.Number),
			zap.Error(err))
		return domainErrors.NewPersistenceError("create estimate", err)
	}
	return nil
}

// FindByID retrieves an estimate and its items
func (r *estimateRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Estimate, error) {
	return r.find(withEstimateItems(r.db.WithContext(ctx)), id)
}

// FindForUpdate retrieves an estimate and locks it for the rest of the transaction
func (r *estimateRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Estimate, error) {
	return r.find(withEstimateItems(forUpdate(r.db.WithContext(ctx))), id)
}

func (r *estimateRepository) find(q *gorm.DB, id uuid.UUID) (*model.Estimate, error) {
	var estimate model.Estimate
	if err := q.Where("id = ?", id).First(&estimate).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		r.logger.Error("Failed to get estimate",
			zap.String("estimate_id", id.String()),
			zap.Error(err))
		return nil, domainErrors.NewPersistenceError("get estimate", err)
	}
	return &estimate, nil
}

// SaveTransition writes the lifecycle columns if the stored status still equals from
func (r *estimateRepository) SaveTransition(ctx context.Context, estimate *model.Estimate, from model.EstimateStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.Estimate{}).
		Where("id = ? AND status = ?", estimate.ID, from).
		Updates(map[string]interface{}{
			"status":           estimate.Status,
			"sent_at":          estimate.SentAt,
			"accepted_at":      estimate.AcceptedAt,
			"accepted_from_ip": estimate.AcceptedFromIP,
			"declined_at":      estimate.DeclinedAt,
		})

	if result.Error != nil {
		r.logger.Error("Failed to save estimate transition",
			zap.String("estimate_id", estimate.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(estimate.Status)),
			zap.Error(result.Error))
		return domainErrors.NewPersistenceError("save estimate transition", result.Error)
	}

	if result.RowsAffected == 0 {
		return domainErrors.NewInvalidTransitionError("estimate", estimate.ID.String(),
			string(from), string(estimate.Status), "estimate status changed concurrently")
	}
	return nil
}
