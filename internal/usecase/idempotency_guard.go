package usecase

import (
	"context"
	"errors"

	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

// Outcome is what happened to one delivered event
type Outcome string

const (
	// OutcomeProcessed means the event mutated state and was recorded.
	OutcomeProcessed Outcome = "processed"
	// OutcomeSkipped means the event id was already recorded.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means the event was acknowledged without effect.
	OutcomeIgnored Outcome = "ignored"
)

// IdempotencyGuard makes event handling exactly-once on top of at-least-once delivery
type IdempotencyGuard struct {
	store  domainRepo.Store
	logger *zap.Logger
}

// NewIdempotencyGuard creates a new idempotency guard
func NewIdempotencyGuard(store domainRepo.Store, logger *zap.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, logger: logger}
}

// ShouldProcess reports whether the event id has not been recorded yet.
// It is a read-only shortcut; RecordProcessed is the authoritative check.
func (g *IdempotencyGuard) ShouldProcess(ctx context.Context, eventID string) (bool, error) {
	exists, err := g.store.ProcessedEvents().Exists(ctx, eventID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// RecordProcessed claims the event id inside tx. It returns
// ErrEventAlreadyProcessed when another delivery claimed it first.
func (g *IdempotencyGuard) RecordProcessed(ctx context.Context, tx domainRepo.Store, eventID, eventType string) error {
	claimed, err := tx.ProcessedEvents().Claim(ctx, eventID, eventType)
	if err != nil {
		return err
	}
	if !claimed {
		return domainErrors.ErrEventAlreadyProcessed
	}
	return nil
}

// Run claims the event id and applies fn in the same transaction.
//
// A replay or a lost race yields OutcomeSkipped. Invalid transitions and
// missing documents yield OutcomeIgnored; the event id is then recorded on its
// own so redeliveries short-circuit.
func (g *IdempotencyGuard) Run(ctx context.Context, eventID, eventType string, fn func(tx domainRepo.Store) error) (Outcome, error) {
	logger := g.logger.With(zap.String("event_id", eventID), zap.String("event_type", eventType))

	ok, err := g.ShouldProcess(ctx, eventID)
	if err != nil {
		return "", err
	}
	if !ok {
		logger.Info("Event already processed, skipping")
		return OutcomeSkipped, nil
	}

	err = g.store.WithinTransaction(ctx, func(tx domainRepo.Store) error {
		if err := g.RecordProcessed(ctx, tx, eventID, eventType); err != nil {
			return err
		}
		return fn(tx)
	})

	switch {
	case err == nil:
		return OutcomeProcessed, nil
	case errors.Is(err, domainErrors.ErrEventAlreadyProcessed):
		logger.Info("Event already applied, skipping", zap.Error(err))
		return OutcomeSkipped, nil
	case domainErrors.IsAcknowledgeable(err):
		logger.Warn("Event acknowledged without effect", zap.Error(err))
		g.markIgnored(ctx, logger, eventID, eventType)
		return OutcomeIgnored, nil
	default:
		return "", err
	}
}

func (g *IdempotencyGuard) markIgnored(ctx context.Context, logger *zap.Logger, eventID, eventType string) {
	if _, err := g.store.ProcessedEvents().Claim(ctx, eventID, eventType); err != nil {
		logger.Warn("Failed to record ignored event", zap.Error(err))
	}
}
