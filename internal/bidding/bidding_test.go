package bidding

import (
	"context"
	"testing"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/database"
	"github.com/0xtpsn/ethermon-market-api/internal/events"
	"github.com/0xtpsn/ethermon-market-api/internal/ledger"
	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type testHarness struct {
	service *Service
	ledger  *ledger.Service
	sink    *events.MemorySink
	clock   *fakeClock
	gormDB  *gorm.DB
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gormDB, err := database.NewTestDatabase()
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sink := events.NewMemorySink()
	ledgerService := ledger.NewService(gormDB, 0.025)

	return &testHarness{
		service: NewService(gormDB, ledgerService, sink, clock, 1.0),
		ledger:  ledgerService,
		sink:    sink,
		clock:   clock,
		gormDB:  gormDB,
	}
}

func (h *testHarness) seedAuction(t *testing.T, auctionID, sellerID string, startPrice float64, endTime time.Time) {
	t.Helper()
	auction := &types.Auction{
		AuctionID:  auctionID,
		ItemID:     "ITM_" + auctionID,
		SellerID:   sellerID,
		StartPrice: startPrice,
		EndTime:    endTime,
		Status:     types.AuctionStatusActive,
		CreatedAt:  h.clock.now,
		UpdatedAt:  h.clock.now,
	}
	require.NoError(t, h.gormDB.Create(auction).Error)
}

func (h *testHarness) deposit(t *testing.T, userID string, amount float64) {
	t.Helper()
	_, err := h.ledger.Deposit(userID, amount)
	require.NoError(t, err)
}

func (h *testHarness) balance(t *testing.T, userID string) *types.Balance {
	t.Helper()
	balance, err := h.ledger.GetBalance(userID)
	require.NoError(t, err)
	return balance
}

func TestPlaceBid_FirstBid(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "bidder1", 1000)

	bid, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 100, nil)
	require.NoError(t, err)
	require.Equal(t, types.BidStatusActive, bid.Status)
	require.Equal(t, 100.0, bid.Amount)

	balance := h.balance(t, "bidder1")
	require.Equal(t, 900.0, balance.Available)
	require.Equal(t, 100.0, balance.Pending)
}

func TestPlaceBid_BelowStartPrice(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "bidder1", 1000)

	_, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 99, nil)
	require.ErrorIs(t, err, marketerrors.ErrBidTooLow)

	// Rejected bids leave no escrow behind.
	balance := h.balance(t, "bidder1")
	require.Equal(t, 1000.0, balance.Available)
	require.Equal(t, 0.0, balance.Pending)
}

func TestPlaceBid_MustBeatCurrentByIncrement(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "bidder1", 1000)
	h.deposit(t, "bidder2", 1000)

	_, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 100, nil)
	require.NoError(t, err)

	// Matching the current high bid is not enough.
	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder2", 100, nil)
	require.ErrorIs(t, err, marketerrors.ErrBidTooLow)

	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder2", 101, nil)
	require.NoError(t, err)
}

func TestPlaceBid_AuctionNotOpen(t *testing.T) {
	h := newTestHarness(t)
	h.deposit(t, "bidder1", 1000)

	t.Run("unknown auction", func(t *testing.T) {
		_, err := h.service.PlaceBid(context.Background(), "AUC_missing", "bidder1", 100, nil)
		require.ErrorIs(t, err, marketerrors.ErrAuctionNotOpen)
	})

	t.Run("past end time", func(t *testing.T) {
		h.seedAuction(t, "AUC_ended", "seller", 100, h.clock.now.Add(-time.Minute))
		_, err := h.service.PlaceBid(context.Background(), "AUC_ended", "bidder1", 100, nil)
		require.ErrorIs(t, err, marketerrors.ErrAuctionNotOpen)
	})

	t.Run("settled auction", func(t *testing.T) {
		auction := &types.Auction{
			AuctionID:  "AUC_sold",
			SellerID:   "seller",
			StartPrice: 100,
			EndTime:    h.clock.now.Add(time.Hour),
			Status:     types.AuctionStatusSold,
		}
		require.NoError(t, h.gormDB.Create(auction).Error)
		_, err := h.service.PlaceBid(context.Background(), "AUC_sold", "bidder1", 100, nil)
		require.ErrorIs(t, err, marketerrors.ErrAuctionNotOpen)
	})
}

func TestPlaceBid_SelfBiddingForbidden(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "seller", 1000)

	_, err := h.service.PlaceBid(context.Background(), "AUC_1", "seller", 100, nil)
	require.ErrorIs(t, err, marketerrors.ErrSelfBiddingForbidden)
}

func TestPlaceBid_InsufficientFunds(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "bidder1", 50)

	_, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 100, nil)
	require.ErrorIs(t, err, marketerrors.ErrInsufficientFunds)
}

// Precondition failures are reported in a fixed order, so a request failing
// several checks always gets the same error.
func TestPlaceBid_PreconditionOrder(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_open", "seller", 100, h.clock.now.Add(time.Hour))
	h.seedAuction(t, "AUC_ended", "seller", 100, h.clock.now.Add(-time.Minute))

	t.Run("closed auction beats self bidding", func(t *testing.T) {
		_, err := h.service.PlaceBid(context.Background(), "AUC_ended", "seller", 1, nil)
		require.ErrorIs(t, err, marketerrors.ErrAuctionNotOpen)
	})

	t.Run("self bidding beats bid too low", func(t *testing.T) {
		_, err := h.service.PlaceBid(context.Background(), "AUC_open", "seller", 1, nil)
		require.ErrorIs(t, err, marketerrors.ErrSelfBiddingForbidden)
	})

	t.Run("bid too low beats insufficient funds", func(t *testing.T) {
		// No deposit for this bidder, and the amount is below minimum.
		_, err := h.service.PlaceBid(context.Background(), "AUC_open", "broke", 1, nil)
		require.ErrorIs(t, err, marketerrors.ErrBidTooLow)
	})
}

func TestPlaceBid_OutbidDemotesPrevious(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "bidder1", 1000)
	h.deposit(t, "bidder2", 1000)

	first, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 100, nil)
	require.NoError(t, err)
	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder2", 110, nil)
	require.NoError(t, err)

	demoted, err := h.service.db.GetBid(first.BidID)
	require.NoError(t, err)
	require.Equal(t, types.BidStatusOutbid, demoted.Status)

	// Outbid escrow stays held until settlement.
	require.Equal(t, 100.0, h.balance(t, "bidder1").Pending)
	require.Equal(t, 110.0, h.balance(t, "bidder2").Pending)

	outbidEvents := h.sink.ByType(events.TypeOutbid)
	require.Len(t, outbidEvents, 1)
	require.Equal(t, "bidder1", outbidEvents[0].UserID)
	require.Equal(t, 110.0, outbidEvents[0].Amount)
}

func TestPlaceBid_ReplaceRaisesOwnBid(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	// Enough to cover the delta but not a second full hold.
	h.deposit(t, "bidder1", 160)

	first, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 100, nil)
	require.NoError(t, err)

	second, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 150, nil)
	require.NoError(t, err)
	require.NotEqual(t, first.BidID, second.BidID)

	replaced, err := h.service.db.GetBid(first.BidID)
	require.NoError(t, err)
	require.Equal(t, types.BidStatusReplaced, replaced.Status)

	// Only the new amount is held after replacement.
	balance := h.balance(t, "bidder1")
	require.Equal(t, 10.0, balance.Available)
	require.Equal(t, 150.0, balance.Pending)
}

func TestPlaceBid_ReplaceLowersAgainstField(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "bidder1", 1000)
	h.deposit(t, "bidder2", 1000)

	_, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 150, nil)
	require.NoError(t, err)
	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder2", 200, nil)
	require.NoError(t, err)
	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 250, nil)
	require.NoError(t, err)

	// The top bidder may lower their own bid as long as it still beats the
	// rest of the field.
	lowered, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 201, nil)
	require.NoError(t, err)
	require.Equal(t, 201.0, lowered.Amount)

	balance := h.balance(t, "bidder1")
	require.Equal(t, 201.0, balance.Pending)

	// Below the next-best bid plus increment it is rejected.
	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 200, nil)
	require.ErrorIs(t, err, marketerrors.ErrBidTooLow)
}

func TestPlaceBid_ExpiredBidIgnoredForPricing(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(2*time.Hour))
	h.deposit(t, "bidder1", 1000)
	h.deposit(t, "bidder2", 1000)

	expiry := h.clock.now.Add(30 * time.Minute)
	_, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 500, &expiry)
	require.NoError(t, err)

	h.clock.now = h.clock.now.Add(time.Hour)

	// The expired bid no longer anchors the price floor.
	bid, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder2", 100, nil)
	require.NoError(t, err)
	require.Equal(t, 100.0, bid.Amount)
}

func TestAuctionBids_Ordering(t *testing.T) {
	h := newTestHarness(t)
	h.seedAuction(t, "AUC_1", "seller", 100, h.clock.now.Add(time.Hour))
	h.deposit(t, "bidder1", 1000)
	h.deposit(t, "bidder2", 1000)
	h.deposit(t, "bidder3", 1000)

	_, err := h.service.PlaceBid(context.Background(), "AUC_1", "bidder1", 100, nil)
	require.NoError(t, err)
	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder3", 110, nil)
	require.NoError(t, err)
	_, err = h.service.PlaceBid(context.Background(), "AUC_1", "bidder2", 120, nil)
	require.NoError(t, err)

	bids, err := h.service.AuctionBids(context.Background(), "AUC_1")
	require.NoError(t, err)
	require.Len(t, bids, 3)
	require.Equal(t, 120.0, bids[0].Amount)
	require.Equal(t, 110.0, bids[1].Amount)
	require.Equal(t, 100.0, bids[2].Amount)
}
