package repository

import (
	"context"

	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type processedEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Claim inserts the event id. ON CONFLICT keeps a duplicate from aborting the surrounding transaction.
func (r *processedEventRepository) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ProcessedEvent{EventID: eventID, EventType: eventType})

	if result.Error != nil {
		r.logger.Error("Failed to record processed event",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(result.Error))
		return false, domainErrors.NewPersistenceError("record processed event", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Exists reports whether the event id was recorded
func (r *processedEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, domainErrors.NewPersistenceError("check processed event", err)
	}
	return count > 0, nil
}
