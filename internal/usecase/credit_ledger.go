package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
)

const consumeEventPrefix = "consume:"

// CreditLedger grants and debits credits through the append-only ledger
type CreditLedger struct {
	store  domainRepo.Store
	tiers  *config.TierCatalog
	logger *zap.Logger
}

// NewCreditLedger creates a new credit ledger service
func NewCreditLedger(store domainRepo.Store, tiers *config.TierCatalog, logger *zap.Logger) *CreditLedger {
	return &CreditLedger{store: store, tiers: tiers, logger: logger}
}

// Grant appends a positive entry inside tx. A replay of eventID returns the
// entry recorded the first time.
func (l *CreditLedger) Grant(ctx context.Context, tx domainRepo.Store, userID uuid.UUID, amount int64, reason model.LedgerReason, eventID string) (*model.CreditLedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	entry := &model.CreditLedgerEntry{
		UserID:  userID,
		Delta:   amount,
		Reason:  reason,
		EventID: eventID,
	}
	inserted, err := tx.Ledger().Append(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		l.logger.Info("Credits already granted for event",
			zap.String("user_id", userID.String()),
			zap.String("event_id", eventID))
		return tx.Ledger().FindByEventID(ctx, eventID)
	}

	l.logger.Info("Credits granted",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.String("reason", string(reason)),
		zap.String("event_id", eventID))
	return entry, nil
}

// GrantCredits is Grant in its own transaction
func (l *CreditLedger) GrantCredits(ctx context.Context, userID uuid.UUID, amount int64, reason model.LedgerReason, eventID string) (*model.CreditLedgerEntry, error) {
	var entry *model.CreditLedgerEntry
	err := l.store.WithinTransaction(ctx, func(tx domainRepo.Store) error {
		var err error
		entry, err = l.Grant(ctx, tx, userID, amount, reason, eventID)
		return err
	})
	return entry, err
}

// CurrentBalance folds the user's ledger into a balance
func (l *CreditLedger) CurrentBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return l.store.Ledger().Balance(ctx, userID)
}

// GrantForRenewal grants the allotment of the subscription's tier for a new
// billing period. Monthly plans get the full allotment; annual plans get the
// current month's share under a separate reason. Later months of an annual
// plan are granted by an external scheduler. It returns nil when the tier
// carries no credits.
func (l *CreditLedger) GrantForRenewal(ctx context.Context, tx domainRepo.Store, sub *model.UserSubscription, eventID string) (*model.CreditLedgerEntry, error) {
	plan, ok := l.tiers.Plan(string(sub.Tier))
	if !ok {
		return nil, domainErrors.NewNotFoundError("tier", string(sub.Tier))
	}
	if plan.MonthlyCredits == 0 {
		l.logger.Info("Tier carries no credits, nothing to grant",
			zap.String("user_id", sub.UserID.String()),
			zap.String("tier", string(sub.Tier)))
		return nil, nil
	}

	reason := model.LedgerReasonMonthlyGrant
	if sub.Interval == model.BillingIntervalYear {
		reason = model.LedgerReasonAnnualFirstGrant
	}
	return l.Grant(ctx, tx, sub.UserID, plan.MonthlyCredits, reason, eventID)
}

// ConsumeResult is the outcome of a debit
type ConsumeResult struct {
	Entry   *model.CreditLedgerEntry
	Balance int64
	Replay  bool
}

// ConsumeCredits debits amount for a template purchase. requestKey makes the
// debit idempotent; an empty key always debits.
func (l *CreditLedger) ConsumeCredits(ctx context.Context, userID uuid.UUID, amount int64, requestKey string, referenceID *string) (*ConsumeResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	if requestKey == "" {
		requestKey = uuid.NewString()
	}
	eventID := consumeEventPrefix + userID.String() + ":" + requestKey

	result := &ConsumeResult{}
	err := l.store.WithinTransaction(ctx, func(tx domainRepo.Store) error {
		if err := tx.Ledger().LockUser(ctx, userID); err != nil {
			return err
		}

		existing, err := tx.Ledger().FindByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Entry = existing
			result.Replay = true
		} else {
			balance, err := tx.Ledger().Balance(ctx, userID)
			if err != nil {
				return err
			}
			if balance < amount {
				return domainErrors.NewInsufficientCreditsError(amount, balance)
			}

			entry := &model.CreditLedgerEntry{
				UserID:      userID,
				Delta:       -amount,
				Reason:      model.LedgerReasonTemplatePurchase,
				EventID:     eventID,
				ReferenceID: referenceID,
			}
			if _, err := tx.Ledger().Append(ctx, entry); err != nil {
				return err
			}
			result.Entry = entry
		}

		balance, err := tx.Ledger().Balance(ctx, userID)
		if err != nil {
			return err
		}
		result.Balance = balance
		return nil
	})
	if err != nil {
		l.logger.Warn("Credit consumption failed",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	l.logger.Info("Credits consumed",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.Int64("balance", result.Balance),
		zap.Bool("replay", result.Replay))
	return result, nil
}

// LedgerPage is one page of a user's ledger history
type LedgerPage struct {
	Entries []*model.CreditLedgerEntry `json:"entries"`
	Total   int64                      `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
	HasMore bool                       `json:"has_more"`
}

// History returns ledger entries newest first
func (l *CreditLedger) History(ctx context.Context, userID uuid.UUID, limit, offset int) (*LedgerPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := l.store.Ledger().List(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &LedgerPage{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(entries)) < total,
	}, nil
}

// grantWindow is the period a renewal grant covers, used only for logging.
func grantWindow(start, end time.Time) zap.Field {
	if start.IsZero() || end.IsZero() {
		return zap.Skip()
	}
	return zap.String("period", start.Format("2006-01-02")+".."+end.Format("2006-01-02"))
}
