package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/events"
	"github.com/0xtpsn/ethermon-market-api/internal/ledger"
	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service validates and accepts bids against live auctions, coordinating with
// the ledger to place and replace escrow holds. It never writes
// Auction.Status; that belongs to settlement.
type Service struct {
	db           *Database
	ledger       *ledger.Service
	sink         events.Sink
	clock        types.Clock
	minIncrement float64
}

func NewService(gormDB *gorm.DB, ledgerSvc *ledger.Service, sink events.Sink, clock types.Clock, minIncrement float64) *Service {
	return &Service{
		db:           NewDatabase(gormDB),
		ledger:       ledgerSvc,
		sink:         sink,
		clock:        clock,
		minIncrement: minIncrement,
	}
}

// PlaceBid accepts a bid on an open auction. Preconditions are checked in
// order with no side effects on failure; on success the escrow hold, the bid
// row and any demotions commit in one storage transaction. Events publish
// only after the commit.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, expiresAt *time.Time) (*types.Bid, error) {
	logger := log.With().
		Str("service", "bidding").
		Str("auction_id", auctionID).
		Str("bidder_id", bidderID).
		Logger()

	now := s.clock.Now()

	var (
		bid     *types.Bid
		pending []events.Event
	)

	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		auction, err := s.db.GetAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil || auction.Status != types.AuctionStatusActive || !now.Before(auction.EndTime) {
			return marketerrors.ErrAuctionNotOpen
		}

		if auction.SellerID == bidderID {
			return marketerrors.ErrSelfBiddingForbidden
		}

		liveBids, err := s.db.GetLiveBids(tx, auctionID)
		if err != nil {
			return err
		}

		var existing *types.Bid
		for i := range liveBids {
			if liveBids[i].BidderID == bidderID {
				existing = &liveBids[i]
				break
			}
		}

		// Current price is always derived from live bids, never stored on
		// the auction. The bidder's own bid is excluded so they can replace
		// it in either direction against the rest of the field.
		current := auction.StartPrice - s.minIncrement
		for i := range liveBids {
			if liveBids[i].BidderID == bidderID {
				continue
			}
			if expired(&liveBids[i], now) {
				continue
			}
			if liveBids[i].Amount > current {
				current = liveBids[i].Amount
			}
		}

		if amount < current+s.minIncrement {
			return fmt.Errorf("%w: minimum acceptable bid is %.2f", marketerrors.ErrBidTooLow, current+s.minIncrement)
		}

		delta := amount
		if existing != nil {
			delta = amount - existing.Amount
		}
		if delta > 0 {
			balance, err := s.ledger.GetBalanceTx(tx, bidderID)
			if err != nil {
				return err
			}
			if balance.Available < delta {
				return fmt.Errorf("%w: available %.2f, additional %.2f required",
					marketerrors.ErrInsufficientFunds, balance.Available, delta)
			}
		}

		newBid := &types.Bid{
			BidID:     "BID_" + uuid.New().String(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			Status:    types.BidStatusActive,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if existing != nil {
			if _, err := s.ledger.Release(tx, bidderID, existing.Amount, "bid replaced", auctionID, existing.BidID); err != nil {
				return err
			}
			if err := s.db.UpdateBidStatus(tx, existing.BidID, types.BidStatusReplaced); err != nil {
				return err
			}
		}

		if _, err := s.ledger.Hold(tx, bidderID, amount, "bid placed", auctionID, newBid.BidID); err != nil {
			return err
		}

		if err := s.db.CreateBid(tx, newBid); err != nil {
			return fmt.Errorf("failed to create bid: %w", err)
		}

		// Demote every other bid that was still marked ACTIVE. Their escrow
		// stays held until settlement; a demoted bidder can still win if the
		// top bid is later replaced downward.
		for i := range liveBids {
			other := &liveBids[i]
			if other.BidderID == bidderID || other.Status != types.BidStatusActive {
				continue
			}
			if err := s.db.UpdateBidStatus(tx, other.BidID, types.BidStatusOutbid); err != nil {
				return err
			}
			pending = append(pending, events.Event{
				Type:       events.TypeOutbid,
				UserID:     other.BidderID,
				AuctionID:  auctionID,
				Amount:     amount,
				OccurredAt: now,
			})
		}

		bid = newBid
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range pending {
		if err := s.sink.Publish(ctx, ev); err != nil {
			logger.Error().Err(err).Str("event_type", ev.Type).Msg("failed to publish event")
		}
	}

	logger.Info().
		Str("bid_id", bid.BidID).
		Float64("amount", amount).
		Int("outbid_count", len(pending)).
		Msg("bid accepted")

	return bid, nil
}

// AuctionBids returns the live bids for an auction, highest first.
func (s *Service) AuctionBids(ctx context.Context, auctionID string) ([]types.Bid, error) {
	var bids []types.Bid
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		bids, err = s.db.GetLiveBids(tx, auctionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func expired(b *types.Bid, now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}
