package settlement

import (
	"context"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/events"
	"github.com/0xtpsn/ethermon-market-api/internal/ledger"
	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OwnershipStore transfers item ownership as part of a settlement
// transaction. A failed transfer aborts the settlement.
type OwnershipStore interface {
	TransferOwnership(tx *gorm.DB, itemID, fromUser, toUser string) error
	Delist(tx *gorm.DB, itemID string) error
}

// Service closes auctions: it determines the winner, enforces the reserve
// price, moves money and ownership through the ledger, and refunds everyone
// else. Each auction settles inside its own storage transaction, and a status
// re-check at the top makes re-runs no-ops.
type Service struct {
	db     *Database
	ledger *ledger.Service
	items  OwnershipStore
	sink   events.Sink
	clock  types.Clock
}

func NewService(gormDB *gorm.DB, ledgerSvc *ledger.Service, items OwnershipStore, sink events.Sink, clock types.Clock) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: ledgerSvc,
		items:  items,
		sink:   sink,
		clock:  clock,
	}
}

// Result describes the outcome of settling one auction.
type Result struct {
	AuctionID       string  `json:"auction_id"`
	Status          string  `json:"status"`
	WinnerID        string  `json:"winner_id,omitempty"`
	WinningAmount   float64 `json:"winning_amount,omitempty"`
	SellerNetAmount float64 `json:"seller_net_amount,omitempty"`
	RefundedBidders int     `json:"refunded_bidders"`
	AlreadySettled  bool    `json:"already_settled"`
}

// RunSweep settles every auction whose end time has passed. One auction's
// failure never affects another: the failed auction stays ACTIVE and is
// retried on the next tick.
func (s *Service) RunSweep(ctx context.Context) ([]Result, error) {
	logger := log.With().Str("service", "settlement").Logger()

	now := s.clock.Now()
	auctions, err := s.db.GetExpiredActiveAuctions(now)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(auctions))
	for _, auction := range auctions {
		result, err := s.closeOne(ctx, auction.AuctionID, false)
		if err != nil {
			logger.Error().
				Err(err).
				Str("auction_id", auction.AuctionID).
				Msg("failed to settle auction, will retry next sweep")
			continue
		}
		results = append(results, *result)
	}

	if len(results) > 0 {
		logger.Info().Int("settled_count", len(results)).Msg("settlement sweep completed")
	}
	return results, nil
}

// CloseAuction settles a single auction on demand. Closing an already settled
// auction is a safe no-op. Before the end time it is rejected with
// ErrAuctionStillOpen unless no live bids exist, in which case the auction is
// cancelled.
func (s *Service) CloseAuction(ctx context.Context, auctionID, requestedBy string) (*Result, error) {
	result, err := s.closeOne(ctx, auctionID, true)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "settlement").
		Str("auction_id", auctionID).
		Str("requested_by", requestedBy).
		Str("status", result.Status).
		Bool("already_settled", result.AlreadySettled).
		Msg("manual close processed")
	return result, nil
}

// closeOne runs the per-auction close algorithm in one transaction and
// publishes the resulting events after commit.
func (s *Service) closeOne(ctx context.Context, auctionID string, allowEarlyCancel bool) (*Result, error) {
	now := s.clock.Now()

	var (
		result  *Result
		pending []events.Event
	)

	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		auction, err := s.db.GetAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return marketerrors.ErrAuctionNotFound
		}

		// Re-check under the transaction: a concurrent sweep or manual close
		// may have settled this auction already.
		if auction.Status != types.AuctionStatusActive {
			result = &Result{
				AuctionID:      auctionID,
				Status:         auction.Status,
				WinnerID:       auction.WinnerID,
				AlreadySettled: true,
			}
			return nil
		}

		liveBids, err := s.db.GetLiveBids(tx, auctionID)
		if err != nil {
			return err
		}

		if now.Before(auction.EndTime) {
			if !allowEarlyCancel || len(liveBids) > 0 {
				return marketerrors.ErrAuctionStillOpen
			}
			// Early cancellation: permitted only with zero bids, no money moves.
			auction.Status = types.AuctionStatusCancelled
			if err := s.db.UpdateAuction(tx, auction); err != nil {
				return err
			}
			if err := s.items.Delist(tx, auction.ItemID); err != nil {
				return err
			}
			pending = append(pending, events.Event{
				Type:       events.TypeAuctionCancelled,
				UserID:     auction.SellerID,
				AuctionID:  auctionID,
				OccurredAt: now,
			})
			result = &Result{AuctionID: auctionID, Status: auction.Status}
			return nil
		}

		// Bids carrying their own expiry that has since passed still hold
		// escrow but cannot win; they are refunded alongside the losers.
		var candidates []types.Bid
		for _, b := range liveBids {
			if b.ExpiresAt == nil || b.ExpiresAt.After(now) {
				candidates = append(candidates, b)
			}
		}

		if len(candidates) == 0 {
			return s.closeUnsold(tx, auction, liveBids, now, &result, &pending)
		}

		// GetLiveBids orders by amount descending, earliest first on ties.
		winning := candidates[0]

		if auction.ReservePrice != nil && winning.Amount < *auction.ReservePrice {
			return s.closeUnsold(tx, auction, liveBids, now, &result, &pending)
		}

		return s.closeSold(tx, auction, winning, liveBids, now, &result, &pending)
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range pending {
		if err := s.sink.Publish(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Str("service", "settlement").
				Str("event_type", ev.Type).
				Str("auction_id", auctionID).
				Msg("failed to publish event")
		}
	}

	return result, nil
}

// closeUnsold ends an auction without a sale, refunding every live bid.
func (s *Service) closeUnsold(tx *gorm.DB, auction *types.Auction, liveBids []types.Bid, now time.Time, result **Result, pending *[]events.Event) error {
	auction.Status = types.AuctionStatusUnsold
	if err := s.db.UpdateAuction(tx, auction); err != nil {
		return err
	}
	if err := s.items.Delist(tx, auction.ItemID); err != nil {
		return err
	}

	for _, b := range liveBids {
		if _, err := s.ledger.Refund(tx, b.BidderID, b.Amount, "auction closed without sale", auction.AuctionID, b.BidID); err != nil {
			return err
		}
		if err := s.db.UpdateBidStatus(tx, b.BidID, types.BidStatusExpired); err != nil {
			return err
		}
		*pending = append(*pending, events.Event{
			Type:       events.TypeBidRefund,
			UserID:     b.BidderID,
			AuctionID:  auction.AuctionID,
			Amount:     b.Amount,
			OccurredAt: now,
		})
	}

	*pending = append(*pending, events.Event{
		Type:       events.TypeAuctionUnsold,
		UserID:     auction.SellerID,
		AuctionID:  auction.AuctionID,
		OccurredAt: now,
	})

	*result = &Result{
		AuctionID:       auction.AuctionID,
		Status:          auction.Status,
		RefundedBidders: len(liveBids),
	}
	return nil
}

// closeSold completes a sale: captures the winner's escrow, transfers the
// item, pays the seller net of fees and refunds everyone else.
func (s *Service) closeSold(tx *gorm.DB, auction *types.Auction, winning types.Bid, liveBids []types.Bid, now time.Time, result **Result, pending *[]events.Event) error {
	if err := s.db.UpdateBidStatus(tx, winning.BidID, types.BidStatusWon); err != nil {
		return err
	}

	if _, err := s.ledger.Capture(tx, winning.BidderID, winning.Amount, "auction won", auction.AuctionID, winning.BidID); err != nil {
		return err
	}

	if err := s.items.TransferOwnership(tx, auction.ItemID, auction.SellerID, winning.BidderID); err != nil {
		return err
	}

	payout, err := s.ledger.Payout(tx, auction.SellerID, winning.Amount, "auction sold", auction.AuctionID)
	if err != nil {
		return err
	}

	auction.Status = types.AuctionStatusSold
	auction.WinnerID = winning.BidderID
	if err := s.db.UpdateAuction(tx, auction); err != nil {
		return err
	}

	refunded := 0
	for _, b := range liveBids {
		if b.BidID == winning.BidID {
			continue
		}
		if _, err := s.ledger.Refund(tx, b.BidderID, b.Amount, "auction ended, bid refunded", auction.AuctionID, b.BidID); err != nil {
			return err
		}
		status := types.BidStatusRefunded
		if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			status = types.BidStatusExpired
		}
		if err := s.db.UpdateBidStatus(tx, b.BidID, status); err != nil {
			return err
		}
		refunded++
		*pending = append(*pending, events.Event{
			Type:       events.TypeBidRefund,
			UserID:     b.BidderID,
			AuctionID:  auction.AuctionID,
			Amount:     b.Amount,
			OccurredAt: now,
		})
	}

	*pending = append(*pending,
		events.Event{
			Type:       events.TypeAuctionWon,
			UserID:     winning.BidderID,
			AuctionID:  auction.AuctionID,
			Amount:     winning.Amount,
			OccurredAt: now,
		},
		events.Event{
			Type:       events.TypeAuctionSold,
			UserID:     auction.SellerID,
			AuctionID:  auction.AuctionID,
			Amount:     payout.NetAmount,
			OccurredAt: now,
		},
	)

	*result = &Result{
		AuctionID:       auction.AuctionID,
		Status:          auction.Status,
		WinnerID:        winning.BidderID,
		WinningAmount:   winning.Amount,
		SellerNetAmount: payout.NetAmount,
		RefundedBidders: refunded,
	}
	return nil
}
