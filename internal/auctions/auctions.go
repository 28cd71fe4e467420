package auctions

import (
	"context"
	"fmt"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ItemStore creates the item backing a new listing.
type ItemStore interface {
	Create(tx *gorm.DB, ownerID, title, description string) (*types.Item, error)
}

// Service manages the auction listing lifecycle: creation and reads. Closing
// is settlement's job; this service never writes a terminal status.
type Service struct {
	db    *Database
	items ItemStore
	clock types.Clock
}

func NewService(gormDB *gorm.DB, items ItemStore, clock types.Clock) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		items: items,
		clock: clock,
	}
}

// CreateInput carries the seller-provided fields for a new auction.
type CreateInput struct {
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	StartPrice   float64   `json:"start_price" binding:"required"`
	ReservePrice *float64  `json:"reserve_price,omitempty"`
	EndTime      time.Time `json:"end_time" binding:"required"`
}

// Create lists a new item for auction. The item and the auction are created
// in one transaction.
func (s *Service) Create(ctx context.Context, sellerID string, input CreateInput) (*types.Auction, error) {
	now := s.clock.Now()

	if input.StartPrice <= 0 {
		return nil, fmt.Errorf("%w: start price must be positive", marketerrors.ErrValidation)
	}
	if input.ReservePrice != nil && *input.ReservePrice < input.StartPrice {
		return nil, fmt.Errorf("%w: reserve price must be at least the start price", marketerrors.ErrValidation)
	}
	if !input.EndTime.After(now) {
		return nil, fmt.Errorf("%w: end time must be in the future", marketerrors.ErrValidation)
	}

	var auction *types.Auction
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		item, err := s.items.Create(tx, sellerID, input.Title, input.Description)
		if err != nil {
			return err
		}

		auction = &types.Auction{
			AuctionID:    "AUC_" + uuid.New().String(),
			ItemID:       item.ItemID,
			SellerID:     sellerID,
			StartPrice:   input.StartPrice,
			ReservePrice: input.ReservePrice,
			EndTime:      input.EndTime,
			Status:       types.AuctionStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.Create(auction).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "auctions").
		Str("auction_id", auction.AuctionID).
		Str("seller_id", sellerID).
		Float64("start_price", input.StartPrice).
		Time("end_time", input.EndTime).
		Msg("auction created")

	return auction, nil
}

// List returns open auctions with their derived current bid.
func (s *Service) List() ([]AuctionView, error) {
	return s.db.ListOpen()
}

// Get returns one auction with its derived current bid.
func (s *Service) Get(auctionID string) (*AuctionView, error) {
	view, err := s.db.GetView(auctionID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, marketerrors.ErrAuctionNotFound
	}
	return view, nil
}
