package bidding

import (
	"time"

	"github.com/0xtpsn/ethermon-market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceBidHandler handles POST requests placing a bid on an auction
// Requires a valid JWT token
// URL parameter: auction_id
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID := c.GetString("userID")
		if bidderID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		auctionID := c.Param("auction_id")
		if auctionID == "" {
			response.BadRequest(c, "Auction ID is required")
			return
		}

		var request struct {
			Amount    float64    `json:"amount" binding:"required"`
			ExpiresAt *time.Time `json:"expires_at,omitempty"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		bid, err := h.service.PlaceBid(c.Request.Context(), auctionID, bidderID, request.Amount, request.ExpiresAt)
		response.Handle(c, bid, err)
	}
}

// AuctionBidsHandler handles GET requests listing live bids for an auction
// URL parameter: auction_id
func (h *GinHandlers) AuctionBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		bids, err := h.service.AuctionBids(c.Request.Context(), auctionID)
		response.Handle(c, bids, err)
	}
}
