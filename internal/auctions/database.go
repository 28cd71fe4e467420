package auctions

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

// Transaction runs fn inside one storage transaction bound to ctx.
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

// AuctionView is an auction with its current bid derived from live bids.
// The current bid is never stored on the auction row.
type AuctionView struct {
	AuctionID    string    `json:"auction_id"`
	ItemID       string    `json:"item_id"`
	SellerID     string    `json:"seller_id"`
	StartPrice   float64   `json:"start_price"`
	ReservePrice *float64  `json:"reserve_price,omitempty"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	WinnerID     string    `json:"winner_id,omitempty"`
	CurrentBid   *float64  `json:"current_bid,omitempty"`
	BidCount     int       `json:"bid_count"`
	CreatedAt    time.Time `json:"created_at"`
}

const viewSelect = `
	SELECT a.auction_id, a.item_id, a.seller_id, a.start_price, a.reserve_price,
	       a.end_time, a.status, a.winner_id, a.created_at,
	       (SELECT MAX(b.amount) FROM bids b
	         WHERE b.auction_id = a.auction_id
	           AND b.status IN ('ACTIVE', 'OUTBID')
	           AND b.deleted_at IS NULL) AS current_bid,
	       (SELECT COUNT(*) FROM bids b
	         WHERE b.auction_id = a.auction_id
	           AND b.status IN ('ACTIVE', 'OUTBID')
	           AND b.deleted_at IS NULL) AS bid_count
	FROM auctions a
	WHERE a.deleted_at IS NULL`

// ListOpen returns all ACTIVE auctions, soonest ending first.
func (d *Database) ListOpen() ([]AuctionView, error) {
	var views []AuctionView
	query := viewSelect + ` AND a.status = ? ORDER BY a.end_time ASC`
	if err := d.db.Raw(query, types.AuctionStatusActive).Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return views, nil
}

// GetView returns one auction with derived bid figures, or nil if absent.
func (d *Database) GetView(auctionID string) (*AuctionView, error) {
	var view AuctionView
	query := viewSelect + ` AND a.auction_id = ?`
	result := d.db.Raw(query, auctionID).Scan(&view)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch auction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &view, nil
}
