package auctions

import (
	"github.com/0xtpsn/ethermon-market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for auction endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateAuctionHandler handles POST requests listing a new auction
// Requires a valid JWT token
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("userID")
		if sellerID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var input CreateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.service.Create(c.Request.Context(), sellerID, input)
		response.Handle(c, auction, err)
	}
}

// ListAuctionsHandler handles GET requests for open auctions
func (h *GinHandlers) ListAuctionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := h.service.List()
		response.Handle(c, views, err)
	}
}

// GetAuctionHandler handles GET requests for a single auction
// URL parameter: auction_id
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		view, err := h.service.Get(auctionID)
		response.Handle(c, view, err)
	}
}
