package marketerrors

import "errors"

// User errors: expected outcomes of a request, returned to the caller and
// never logged as failures.
var (
	ErrAuctionNotOpen        = errors.New("auction not open")
	ErrAuctionStillOpen      = errors.New("auction still open")
	ErrBidTooLow             = errors.New("bid amount too low")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrSelfBiddingForbidden  = errors.New("cannot bid on your own auction")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrValidation            = errors.New("invalid auction parameters")
)

// Not-found errors.
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrItemNotFound    = errors.New("item not found")
)

// ErrInvariantViolation marks a broken ledger contract: releasing or
// capturing more than is held, or a transfer from a non-owner. It is a bug in
// the calling code or a corrupted ledger, never a user error, and must abort
// the enclosing transaction.
var ErrInvariantViolation = errors.New("ledger invariant violation")
