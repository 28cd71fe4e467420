package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/0xtpsn/ethermon-market-api/internal/auctions"
	"github.com/0xtpsn/ethermon-market-api/internal/auth"
	"github.com/0xtpsn/ethermon-market-api/internal/bidding"
	"github.com/0xtpsn/ethermon-market-api/internal/config"
	"github.com/0xtpsn/ethermon-market-api/internal/database"
	"github.com/0xtpsn/ethermon-market-api/internal/events"
	"github.com/0xtpsn/ethermon-market-api/internal/items"
	"github.com/0xtpsn/ethermon-market-api/internal/ledger"
	"github.com/0xtpsn/ethermon-market-api/internal/settlement"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/0xtpsn/ethermon-market-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the marketplace API server with graceful shutdown
// support. It wires the ledger, bidding and settlement services, starts the
// settlement sweep processor and registers all routes.
func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Domain events go to RabbitMQ when a broker is configured, otherwise to
	// the structured log.
	var sink events.Sink = events.NewLogSink()
	if cfg.AMQPURL != "" {
		amqpSink, err := events.NewAMQPSink(cfg.AMQPURL)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to connect to event broker")
		}
		defer amqpSink.Close()
		sink = amqpSink
	}

	clock := types.SystemClock()

	router := gin.Default()

	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)

	ledgerService := ledger.NewService(db, cfg.PlatformFeeRate)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	itemService := items.NewService(db)

	auctionService := auctions.NewService(db, itemService, clock)
	auctionHandlers := auctions.NewGinHandlers(auctionService)

	biddingService := bidding.NewService(db, ledgerService, sink, clock, cfg.MinimumIncrement)
	biddingHandlers := bidding.NewGinHandlers(biddingService)

	settlementService := settlement.NewService(db, ledgerService, itemService, sink, clock)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Create and start settlement processor
	settlementProcessor := settlement.NewProcessor(settlementService, cfg.SweepInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go settlementProcessor.Start(processorCtx)

	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.JWTSecret, authHandlers, auctionHandlers, biddingHandlers, ledgerHandlers, settlementHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Auction/bid/balance routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auctions.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Auction routes
		auctionGroup := v1.Group("/auctions")
		{
			auctionGroup.GET("", auctionHandlers.ListAuctionsHandler())
			auctionGroup.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctionGroup.GET("/:auction_id/bids", biddingHandlers.AuctionBidsHandler())
		}

		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(jwtSecret))
		{
			authed.POST("/auctions", auctionHandlers.CreateAuctionHandler())
			authed.POST("/auctions/:auction_id/bids", biddingHandlers.PlaceBidHandler())
			authed.GET("/balance", ledgerHandlers.GetBalanceHandler())
			authed.POST("/balance/deposit", ledgerHandlers.DepositHandler())
			authed.GET("/balance/summary", ledgerHandlers.SummaryHandler())
			authed.GET("/balance/transactions", ledgerHandlers.TransactionsHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/settlement/sweep", settlementHandlers.SweepHandler())
			internal.POST("/settlement/:auction_id", settlementHandlers.CloseAuctionHandler())
		}
	}
}
