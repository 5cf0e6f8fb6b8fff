package repository

import (
	"context"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Append inserts a ledger entry unless one for the same event id exists
func (r *ledgerRepository) Append(ctx context.Context, entry *model.CreditLedgerEntry) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(entry)

	if result.Error != nil {
		r.logger.Error("Failed to append ledger entry",
			zap.String("user_id", entry.UserID.String()),
			zap.String("event_id", entry.EventID),
			zap.Int64("delta", entry.Delta),
			zap.Error(result.Error))
		return false, domainErrors.NewPersistenceError("append ledger entry", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByEventID retrieves the entry recorded for an event
func (r *ledgerRepository) FindByEventID(ctx context.Context, eventID string) (*model.CreditLedgerEntry, error) {
	var entry model.CreditLedgerEntry
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, domainErrors.NewPersistenceError("get ledger entry", err)
	}
	return &entry, nil
}

// Balance folds all entries of the user into a single sum
func (r *ledgerRepository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&model.CreditLedgerEntry{}).
		Select("CAST(COALESCE(SUM(delta), 0) AS BIGINT)").
		Where("user_id = ?", userID).
		Scan(&balance).Error
	if err != nil {
		r.logger.Error("Failed to sum ledger",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return 0, domainErrors.NewPersistenceError("sum ledger", err)
	}
	return balance, nil
}

// List returns the newest entries of a user and the total entry count
func (r *ledgerRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditLedgerEntry, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&model.CreditLedgerEntry{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domainErrors.NewPersistenceError("count ledger entries", err)
	}

	var entries []*model.CreditLedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, domainErrors.NewPersistenceError("list ledger entries", err)
	}
	return entries, total, nil
}

// LockUser takes a transaction scoped advisory lock on postgres
func (r *ledgerRepository) LockUser(ctx context.Context, userID uuid.UUID) error {
	if !isPostgres(r.db) {
		return nil
	}
	if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", userID.String()).Error; err != nil {
		return domainErrors.NewPersistenceError("lock user ledger", err)
	}
	return nil
}
