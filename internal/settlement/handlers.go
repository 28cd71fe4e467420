package settlement

import (
	"github.com/0xtpsn/ethermon-market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CloseAuctionHandler handles POST requests closing a single auction
// Requires internal authentication; idempotent
// URL parameter: auction_id
func (h *GinHandlers) CloseAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")
		requestedBy := c.GetString("userID")

		result, err := h.service.CloseAuction(c.Request.Context(), auctionID, requestedBy)
		response.Handle(c, result, err)
	}
}

// SweepHandler handles POST requests triggering a settlement sweep on demand
// Requires internal authentication
func (h *GinHandlers) SweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := h.service.RunSweep(c.Request.Context())
		response.Handle(c, results, err)
	}
}
