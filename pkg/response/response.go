package response

import (
	"errors"
	"net/http"

	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeDuplicateResource  = "DUPLICATE_RESOURCE"
	ErrCodeAuctionNotOpen     = "AUCTION_NOT_OPEN"
	ErrCodeAuctionStillOpen   = "AUCTION_STILL_OPEN"
	ErrCodeBidTooLow          = "BID_TOO_LOW"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeSelfBidding        = "SELF_BIDDING_FORBIDDEN"
	ErrCodeInvalidAmount      = "INVALID_AMOUNT"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvariantViolation = "INVARIANT_VIOLATION"
)

// Handle processes the error and returns the appropriate response. Domain
// errors map to structured codes; storage errors are never surfaced raw.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, marketerrors.ErrAuctionNotOpen):
		fail(c, http.StatusConflict, ErrCodeAuctionNotOpen, err.Error())
	case errors.Is(err, marketerrors.ErrAuctionStillOpen):
		fail(c, http.StatusConflict, ErrCodeAuctionStillOpen, err.Error())
	case errors.Is(err, marketerrors.ErrBidTooLow):
		fail(c, http.StatusUnprocessableEntity, ErrCodeBidTooLow, err.Error())
	case errors.Is(err, marketerrors.ErrInsufficientFunds):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, err.Error())
	case errors.Is(err, marketerrors.ErrSelfBiddingForbidden):
		fail(c, http.StatusForbidden, ErrCodeSelfBidding, err.Error())
	case errors.Is(err, marketerrors.ErrInvalidAmount):
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, err.Error())
	case errors.Is(err, marketerrors.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, marketerrors.ErrAuctionNotFound),
		errors.Is(err, marketerrors.ErrItemNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, marketerrors.ErrInvariantViolation):
		fail(c, http.StatusInternalServerError, ErrCodeInvariantViolation, "Ledger invariant violation")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	fail(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, ErrCodeDuplicateResource, message)
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}
