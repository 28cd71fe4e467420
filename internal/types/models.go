package types

import (
	"time"

	"gorm.io/gorm"
)

// Auction statuses. Transitions are one-way: an auction never leaves a
// terminal state once settlement has written it.
const (
	AuctionStatusActive    = "ACTIVE"
	AuctionStatusSold      = "SOLD"
	AuctionStatusUnsold    = "UNSOLD"
	AuctionStatusCancelled = "CANCELLED"
)

// Bid statuses. ACTIVE and OUTBID bids both hold escrow until settlement;
// OUTBID only records that a higher bid has since been placed.
const (
	BidStatusActive   = "ACTIVE"
	BidStatusOutbid   = "OUTBID"
	BidStatusReplaced = "REPLACED"
	BidStatusWon      = "WON"
	BidStatusRefunded = "REFUNDED"
	BidStatusExpired  = "EXPIRED"
)

// Ledger transaction types.
const (
	TxnTypeHold    = "HOLD"
	TxnTypeRelease = "RELEASE"
	TxnTypeCapture = "CAPTURE"
	TxnTypePayout  = "PAYOUT"
	TxnTypeRefund  = "REFUND"
	TxnTypeDeposit = "DEPOSIT"
)

// Ledger transaction statuses.
const (
	TxnStatusPending   = "PENDING"
	TxnStatusCompleted = "COMPLETED"
	TxnStatusCancelled = "CANCELLED"
)

type Auction struct {
	gorm.Model   `json:"-"`
	AuctionID    string     `gorm:"uniqueIndex" json:"auction_id"`
	ItemID       string     `gorm:"index" json:"item_id"`
	SellerID     string     `gorm:"index" json:"seller_id"`
	StartPrice   float64    `json:"start_price"`
	ReservePrice *float64   `json:"reserve_price,omitempty"`
	EndTime      time.Time  `json:"end_time"`
	Status       string     `gorm:"index" json:"status"` // ACTIVE, SOLD, UNSOLD, CANCELLED
	WinnerID     string     `json:"winner_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Bid struct {
	gorm.Model `json:"-"`
	BidID      string     `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string     `gorm:"index" json:"auction_id"`
	BidderID   string     `gorm:"index" json:"bidder_id"`
	Amount     float64    `json:"amount"`
	Status     string     `gorm:"index" json:"status"` // ACTIVE, OUTBID, REPLACED, WON, REFUNDED, EXPIRED
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Live reports whether the bid still holds escrow against its auction.
func (b *Bid) Live() bool {
	return b.Status == BidStatusActive || b.Status == BidStatusOutbid
}

// Balance is a user's internal ledger position. Mutated only through the
// ledger package; available and pending never go negative.
type Balance struct {
	gorm.Model `json:"-"`
	UserID     string    `gorm:"uniqueIndex" json:"user_id"`
	Available  float64   `json:"available"`
	Pending    float64   `json:"pending"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LedgerTransaction is an append-only record of a single balance movement.
// Rows are never rewritten after creation; only Status moves from PENDING to
// COMPLETED or CANCELLED.
type LedgerTransaction struct {
	gorm.Model    `json:"-"`
	TransactionID string    `gorm:"uniqueIndex" json:"transaction_id"`
	UserID        string    `gorm:"index" json:"user_id"`
	Type          string    `gorm:"index" json:"type"` // HOLD, RELEASE, CAPTURE, PAYOUT, REFUND, DEPOSIT
	Amount        float64   `json:"amount"`
	FeeAmount     float64   `json:"fee_amount,omitempty"`
	NetAmount     float64   `json:"net_amount,omitempty"`
	Status        string    `gorm:"index" json:"status"` // PENDING, COMPLETED, CANCELLED
	Reason        string    `json:"reason"`
	AuctionID     string    `gorm:"index" json:"auction_id,omitempty"`
	BidID         string    `json:"bid_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Item struct {
	gorm.Model  `json:"-"`
	ItemID      string    `gorm:"uniqueIndex" json:"item_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `gorm:"index" json:"owner_id"`
	Listed      bool      `json:"listed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
