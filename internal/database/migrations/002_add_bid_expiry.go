package migrations

import (
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"gorm.io/gorm"
)

// AddBidExpiry migrates the bids table, including the optional expires_at
// column added after the initial schema.
func AddBidExpiry(db *gorm.DB) error {
	return db.AutoMigrate(&types.Bid{})
}
