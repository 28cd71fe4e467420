package database

import (
	"fmt"
	"sync/atomic"

	"github.com/0xtpsn/ethermon-market-api/internal/database/migrations"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddLedgerTransactions(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddBidExpiry(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Auction{},
		&types.Balance{},
		&types.Item{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

var testDBCounter int64

// NewTestDatabase returns an isolated in-memory database for tests. Each call
// gets its own shared-cache name so the connection pool sees one database.
func NewTestDatabase() (*gorm.DB, error) {
	n := atomic.AddInt64(&testDBCounter, 1)
	return NewDatabase(fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n))
}
