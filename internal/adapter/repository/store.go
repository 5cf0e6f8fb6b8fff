package repository

import (
	"context"
	"errors"

	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore implements the Store interface on one *gorm.DB, which is either
// the pool or an open transaction.
type gormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a Store backed by gorm
func NewStore(db *gorm.DB, logger *zap.Logger) domainRepo.Store {
	return &gormStore{db: db, logger: logger}
}

func (s *gormStore) Estimates() domainRepo.EstimateRepository {
	return &estimateRepository{db: s.db, logger: s.logger}
}

func (s *gormStore) Invoices() domainRepo.InvoiceRepository {
	return &invoiceRepository{db: s.db, logger: s.logger}
}

func (s *gormStore) Payments() domainRepo.PaymentRepository {
	return &paymentRepository{db: s.db, logger: s.logger}
}

func (s *gormStore) Ledger() domainRepo.LedgerRepository {
	return &ledgerRepository{db: s.db, logger: s.logger}
}

func (s *gormStore) Subscriptions() domainRepo.SubscriptionRepository {
	return &subscriptionRepository{db: s.db, logger: s.logger}
}

func (s *gormStore) ProcessedEvents() domainRepo.ProcessedEventRepository {
	return &processedEventRepository{db: s.db, logger: s.logger}
}

// WithinTransaction runs fn in a database transaction. Errors returned by fn are
// passed through unchanged; commit failures become PersistenceError.
func (s *gormStore) WithinTransaction(ctx context.Context, fn func(tx domainRepo.Store) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&gormStore{db: tx, logger: s.logger})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return domainErrors.NewPersistenceError("commit transaction", err)
	}
	return nil
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// forUpdate adds a row lock on dialects that support it. SQLite serializes
// writers at the database level, so no clause is needed there.
func forUpdate(db *gorm.DB) *gorm.DB {
	if isPostgres(db) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
