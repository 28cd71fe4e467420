package ledger

import (
	"github.com/0xtpsn/ethermon-market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for balance endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetBalanceHandler handles GET requests for the caller's balance
func (h *GinHandlers) GetBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		balance, err := h.service.GetBalance(userID)
		response.Handle(c, balance, err)
	}
}

// DepositHandler handles POST requests crediting the caller's available balance
func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var request struct {
			Amount float64 `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		txn, err := h.service.Deposit(userID, request.Amount)
		response.Handle(c, txn, err)
	}
}

// SummaryHandler handles GET requests for lifetime earned/spent figures
func (h *GinHandlers) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		summary, err := h.service.Summary(userID)
		response.Handle(c, summary, err)
	}
}

// TransactionsHandler handles GET requests for the caller's ledger history
func (h *GinHandlers) TransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		txns, err := h.service.db.GetUserTransactions(userID)
		response.Handle(c, txns, err)
	}
}
