package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/lifecycle"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

// EstimateService runs the user-triggered estimate transitions
type EstimateService struct {
	store  domainRepo.Store
	logger *zap.Logger
}

// NewEstimateService creates a new estimate service
func NewEstimateService(store domainRepo.Store, logger *zap.Logger) *EstimateService {
	return &EstimateService{store: store, logger: logger}
}

// Send moves the user's draft estimate to sent
func (s *EstimateService) Send(ctx context.Context, userID, estimateID uuid.UUID) (*model.Estimate, error) {
	return s.transition(ctx, userID, estimateID, func(e *model.Estimate, now time.Time) error {
		return lifecycle.SendEstimate(e, now)
	})
}

// Decline moves the user's sent estimate to declined
func (s *EstimateService) Decline(ctx context.Context, userID, estimateID uuid.UUID) (*model.Estimate, error) {
	return s.transition(ctx, userID, estimateID, func(e *model.Estimate, now time.Time) error {
		return lifecycle.DeclineEstimate(e, now)
	})
}

func (s *EstimateService) transition(ctx context.Context, userID, estimateID uuid.UUID, apply func(*model.Estimate, time.Time) error) (*model.Estimate, error) {
	var estimate *model.Estimate
	err := s.store.WithinTransaction(ctx, func(tx domainRepo.Store) error {
		var err error
		estimate, err = tx.Estimates().FindForUpdate(ctx, estimateID)
		if err != nil {
			return err
		}
		// Another user's estimate is reported as missing.
		if estimate == nil || estimate.UserID != userID {
			return domainErrors.NewNotFoundError("estimate", estimateID.String())
		}

		from := estimate.Status
		if err := apply(estimate, time.Now().UTC()); err != nil {
			return err
		}
		return tx.Estimates().SaveTransition(ctx, estimate, from)
	})
	if err != nil {
		s.logger.Warn("Estimate transition rejected",
			zap.String("estimate_id", estimateID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Estimate transitioned",
		zap.String("estimate_id", estimate.ID.String()),
		zap.String("status", string(estimate.Status)))
	return estimate, nil
}
