package migrations

import (
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"gorm.io/gorm"
)

func AddLedgerTransactions(db *gorm.DB) error {
	return db.AutoMigrate(&types.LedgerTransaction{})
}
