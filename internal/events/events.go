package events

import (
	"context"
	"time"
)

// Event types emitted by bid intake and settlement.
const (
	TypeOutbid           = "outbid"
	TypeBidRefund        = "bid_refund"
	TypeAuctionWon       = "auction_won"
	TypeAuctionSold      = "auction_sold"
	TypeAuctionUnsold    = "auction_unsold"
	TypeAuctionCancelled = "auction_cancelled"
)

// Event is a domain event pushed to the notification sink. Delivery (in-app
// row, email) is entirely external to this engine.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	AuctionID  string    `json:"auction_id"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink consumes domain events. Implementations must be safe for concurrent
// use; Publish is called after the originating storage transaction has
// committed, so a failed publish never rolls back ledger state.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
