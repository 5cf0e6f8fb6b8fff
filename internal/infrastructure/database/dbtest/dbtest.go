// Package dbtest provides databases for tests. Only _test.go files import it.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New opens a migrated in-memory SQLite database private to t.
// A single connection is used so concurrent transactions queue instead of
// failing with "database is locked".
func New(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Name:         fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	log := zap.NewNop()
	db, err := database.NewConnection(cfg, log)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db, log); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() { _ = database.Close(db, log) })
	return db
}
