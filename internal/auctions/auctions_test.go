package auctions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/bidding"
	"github.com/0xtpsn/ethermon-market-api/internal/database"
	"github.com/0xtpsn/ethermon-market-api/internal/events"
	"github.com/0xtpsn/ethermon-market-api/internal/items"
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
	bidding *bidding.Service
	ledger  *ledger.Service
	items   *items.Service
	clock   *fakeClock
	gormDB  *gorm.DB
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gormDB, err := database.NewTestDatabase()
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ledgerService := ledger.NewService(gormDB, 0.025)
	itemService := items.NewService(gormDB)

	return &testHarness{
		service: NewService(gormDB, itemService, clock),
		bidding: bidding.NewService(gormDB, ledgerService, events.NewMemorySink(), clock, 1.0),
		ledger:  ledgerService,
		items:   itemService,
		clock:   clock,
		gormDB:  gormDB,
	}
}

func TestCreate(t *testing.T) {
	h := newTestHarness(t)

	auction, err := h.service.Create(context.Background(), "seller", CreateInput{
		Title:       "Charizard #006",
		Description: "Holographic, near mint",
		StartPrice:  100,
		EndTime:     h.clock.now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(auction.AuctionID, "AUC_"))
	require.Equal(t, types.AuctionStatusActive, auction.Status)
	require.Equal(t, "seller", auction.SellerID)

	// The backing item is created in the same transaction, owned by the
	// seller and listed.
	item, err := h.items.Get(auction.ItemID)
	require.NoError(t, err)
	require.Equal(t, "seller", item.OwnerID)
	require.Equal(t, "Charizard #006", item.Title)
	require.True(t, item.Listed)
}

func TestCreate_Validation(t *testing.T) {
	h := newTestHarness(t)
	future := h.clock.now.Add(time.Hour)
	lowReserve := 50.0

	tests := []struct {
		name  string
		input CreateInput
	}{
		{
			name:  "zero start price",
			input: CreateInput{Title: "Card", StartPrice: 0, EndTime: future},
		},
		{
			name:  "negative start price",
			input: CreateInput{Title: "Card", StartPrice: -10, EndTime: future},
		},
		{
			name:  "reserve below start price",
			input: CreateInput{Title: "Card", StartPrice: 100, ReservePrice: &lowReserve, EndTime: future},
		},
		{
			name:  "end time in the past",
			input: CreateInput{Title: "Card", StartPrice: 100, EndTime: h.clock.now.Add(-time.Minute)},
		},
		{
			name:  "end time is now",
			input: CreateInput{Title: "Card", StartPrice: 100, EndTime: h.clock.now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.service.Create(context.Background(), "seller", tt.input)
			require.ErrorIs(t, err, marketerrors.ErrValidation)
		})
	}
}

func TestGet_DerivedCurrentBid(t *testing.T) {
	h := newTestHarness(t)

	auction, err := h.service.Create(context.Background(), "seller", CreateInput{
		Title:      "Pikachu #025",
		StartPrice: 50,
		EndTime:    h.clock.now.Add(time.Hour),
	})
	require.NoError(t, err)

	view, err := h.service.Get(auction.AuctionID)
	require.NoError(t, err)
	require.Nil(t, view.CurrentBid)
	require.Equal(t, 0, view.BidCount)

	_, err = h.ledger.Deposit("bidder1", 1000)
	require.NoError(t, err)
	_, err = h.ledger.Deposit("bidder2", 1000)
	require.NoError(t, err)
	_, err = h.bidding.PlaceBid(context.Background(), auction.AuctionID, "bidder1", 50, nil)
	require.NoError(t, err)
	_, err = h.bidding.PlaceBid(context.Background(), auction.AuctionID, "bidder2", 60, nil)
	require.NoError(t, err)

	// Both live bids count; the high one is the current bid.
	view, err = h.service.Get(auction.AuctionID)
	require.NoError(t, err)
	require.NotNil(t, view.CurrentBid)
	require.Equal(t, 60.0, *view.CurrentBid)
	require.Equal(t, 2, view.BidCount)
}

func TestGet_NotFound(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.service.Get("AUC_missing")
	require.ErrorIs(t, err, marketerrors.ErrAuctionNotFound)
}

func TestList_OpenOnly(t *testing.T) {
	h := newTestHarness(t)

	later, err := h.service.Create(context.Background(), "seller", CreateInput{
		Title:      "Mewtwo #150",
		StartPrice: 100,
		EndTime:    h.clock.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	sooner, err := h.service.Create(context.Background(), "seller", CreateInput{
		Title:      "Gengar #094",
		StartPrice: 100,
		EndTime:    h.clock.now.Add(time.Hour),
	})
	require.NoError(t, err)

	// A settled auction never shows up in the open listing.
	require.NoError(t, h.gormDB.Create(&types.Auction{
		AuctionID:  "AUC_done",
		SellerID:   "seller",
		StartPrice: 100,
		EndTime:    h.clock.now.Add(-time.Hour),
		Status:     types.AuctionStatusSold,
	}).Error)

	views, err := h.service.List()
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, sooner.AuctionID, views[0].AuctionID)
	require.Equal(t, later.AuctionID, views[1].AuctionID)
}
