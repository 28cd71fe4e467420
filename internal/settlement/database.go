package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Transaction runs fn inside one storage transaction scoped to a single
// auction's settlement. A failure rolls everything back, leaving the auction
// ACTIVE and retryable on the next sweep.
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := d.db.WithContext(ctx).Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetExpiredActiveAuctions returns auctions still ACTIVE whose end time has
// passed. The sweep re-checks each one's status inside its own transaction,
// so a stale scan result is harmless.
func (d *Database) GetExpiredActiveAuctions(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.
		Where("status = ? AND end_time <= ?", types.AuctionStatusActive, now).
		Order("end_time ASC").
		Find(&auctions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch expired auctions: %w", err)
	}
	return auctions, nil
}

// GetAuction reads an auction inside the caller's transaction.
func (d *Database) GetAuction(tx *gorm.DB, auctionID string) (*types.Auction, error) {
	var auction types.Auction
	if err := tx.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch auction: %w", err)
	}
	return &auction, nil
}

// GetLiveBids returns every escrow-holding bid for an auction, highest amount
// first with earlier bids winning ties.
func (d *Database) GetLiveBids(tx *gorm.DB, auctionID string) ([]types.Bid, error) {
	var bids []types.Bid
	if err := tx.
		Where("auction_id = ? AND status IN ?", auctionID, []string{types.BidStatusActive, types.BidStatusOutbid}).
		Order("amount DESC, created_at ASC").
		Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch live bids: %w", err)
	}
	return bids, nil
}

func (d *Database) UpdateAuction(tx *gorm.DB, auction *types.Auction) error {
	auction.UpdatedAt = time.Now()
	return tx.Save(auction).Error
}

func (d *Database) UpdateBidStatus(tx *gorm.DB, bidID, status string) error {
	result := tx.Model(&types.Bid{}).
		Where("bid_id = ?", bidID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update bid status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bid %s not found", bidID)
	}
	return nil
}
