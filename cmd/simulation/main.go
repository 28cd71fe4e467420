package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xtpsn/ethermon-market-api/internal/auctions"
	"github.com/0xtpsn/ethermon-market-api/internal/auth"
	"github.com/0xtpsn/ethermon-market-api/internal/bidding"
	"github.com/0xtpsn/ethermon-market-api/internal/database"
	"github.com/0xtpsn/ethermon-market-api/internal/events"
	"github.com/0xtpsn/ethermon-market-api/internal/items"
	"github.com/0xtpsn/ethermon-market-api/internal/ledger"
	"github.com/0xtpsn/ethermon-market-api/internal/settlement"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/0xtpsn/ethermon-market-api/pkg/middleware"
)

const (
	numBidders      = 8
	numAuctions     = 5
	bidsPerBidder   = 6
	serverAddress   = "http://localhost:8080"
	depositAmount   = 10_000.0
	simJWTSecret    = "simulation-secret-key"
	auctionLifetime = 20 * time.Second
)

var itemTitles = []string{"Charizard #006", "Pikachu #025", "Mewtwo #150", "Gengar #094", "Snorlax #143"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
	mu         sync.Mutex
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate computes performance statistics from recorded durations
func (rs *routeStats) calculate() (min, max, mean, p95 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p95 = rs.durations[p95idx]

	return
}

// apiEnvelope matches the standard API response wrapper
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// simulationClient handles HTTP communication with the marketplace API on
// behalf of one simulated user
type simulationClient struct {
	baseURL   string
	userID    string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient authenticates one simulated user and prepares
// performance tracking
func newSimulationClient(userID string, stats map[string]*routeStats) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		userID:  userID,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats:   stats,
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate %s: %w", userID, err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) do(method, path, statKey string, payload, out interface{}) error {
	start := time.Now()
	failed := false
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start), failed)
	}()

	body := bytes.NewBuffer(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		failed = true
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		failed = true
		return err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		failed = true
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !envelope.Success {
		failed = true
		if envelope.Error != nil {
			return fmt.Errorf("%s %s: %s (%s)", method, path, envelope.Error.Message, envelope.Error.Code)
		}
		return fmt.Errorf("%s %s: request failed with status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	var result struct {
		Token string `json:"jwt_token"`
	}
	err := sc.do("POST", "/api/v1/auth/token", "auth", map[string]string{
		"api_key":    sc.userID,
		"api_secret": simSecretFor(sc.userID),
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Token, nil
}

func (sc *simulationClient) deposit(amount float64) error {
	return sc.do("POST", "/api/v1/balance/deposit", "deposit", map[string]float64{"amount": amount}, nil)
}

func (sc *simulationClient) createAuction(title string, startPrice float64, endTime time.Time) (string, error) {
	var auction struct {
		AuctionID string `json:"auction_id"`
	}
	err := sc.do("POST", "/api/v1/auctions", "create", map[string]interface{}{
		"title":       title,
		"start_price": startPrice,
		"end_time":    endTime,
	}, &auction)
	return auction.AuctionID, err
}

func (sc *simulationClient) placeBid(auctionID string, amount float64) error {
	return sc.do("POST", fmt.Sprintf("/api/v1/auctions/%s/bids", auctionID), "bid",
		map[string]float64{"amount": amount}, nil)
}

func (sc *simulationClient) triggerSweep() error {
	return sc.do("POST", "/api/v1/internal/settlement/sweep", "sweep", nil, nil)
}

func (sc *simulationClient) getBalance() (available, pending float64, err error) {
	var balance struct {
		Available float64 `json:"available"`
		Pending   float64 `json:"pending"`
	}
	err = sc.do("GET", "/api/v1/balance", "balance", nil, &balance)
	return balance.Available, balance.Pending, err
}

func simSecretFor(userID string) string {
	return "sim-secret-" + userID
}

func simUserIDs() []string {
	ids := []string{"sim-seller"}
	for i := 0; i < numBidders; i++ {
		ids = append(ids, fmt.Sprintf("sim-bidder-%d", i))
	}
	return ids
}

// startServer initializes and starts the marketplace API server backed by an
// in-memory database, with credentials registered for every simulated user
func startServer() error {
	db, err := database.NewDatabase("file::memory:?cache=shared")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	sink := events.NewLogSink()
	clock := types.SystemClock()

	authService := auth.NewService(simJWTSecret)
	for _, userID := range simUserIDs() {
		authService.RegisterAPICredentials(userID, simSecretFor(userID))
	}

	ledgerService := ledger.NewService(db, 0.025)
	itemService := items.NewService(db)
	auctionService := auctions.NewService(db, itemService, clock)
	biddingService := bidding.NewService(db, ledgerService, sink, clock, 1.0)
	settlementService := settlement.NewService(db, ledgerService, itemService, sink, clock)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	auctionHandlers := auctions.NewGinHandlers(auctionService)
	biddingHandlers := bidding.NewGinHandlers(biddingService)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	setupRoutes(router, authHandlers, auctionHandlers, biddingHandlers, ledgerHandlers, settlementHandlers)

	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auctions.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		auctionGroup := v1.Group("/auctions")
		{
			auctionGroup.GET("", auctionHandlers.ListAuctionsHandler())
			auctionGroup.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctionGroup.GET("/:auction_id/bids", biddingHandlers.AuctionBidsHandler())
		}

		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(simJWTSecret))
		{
			authed.POST("/auctions", auctionHandlers.CreateAuctionHandler())
			authed.POST("/auctions/:auction_id/bids", biddingHandlers.PlaceBidHandler())
			authed.GET("/balance", ledgerHandlers.GetBalanceHandler())
			authed.POST("/balance/deposit", ledgerHandlers.DepositHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(simJWTSecret))
		{
			internal.POST("/settlement/sweep", settlementHandlers.SweepHandler())
			internal.POST("/settlement/:auction_id", settlementHandlers.CloseAuctionHandler())
		}
	}
}

// main runs the marketplace simulation. It starts a local API server, then
// drives a full cycle: a seller lists auctions with short end times, bidders
// deposit funds and compete concurrently, the sweep settles everything, and
// the final balances are reported.
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	stats := map[string]*routeStats{
		"auth":    {name: "Authentication"},
		"deposit": {name: "Deposit"},
		"create":  {name: "Create Auction"},
		"bid":     {name: "Place Bid"},
		"sweep":   {name: "Settlement Sweep"},
		"balance": {name: "Get Balance"},
	}

	seller, err := newSimulationClient("sim-seller", stats)
	if err != nil {
		log.Fatal().Err(err).Msg("seller setup failed")
	}

	bidders := make([]*simulationClient, 0, numBidders)
	for i := 0; i < numBidders; i++ {
		bidder, err := newSimulationClient(fmt.Sprintf("sim-bidder-%d", i), stats)
		if err != nil {
			log.Fatal().Err(err).Msg("bidder setup failed")
		}
		if err := bidder.deposit(depositAmount); err != nil {
			log.Fatal().Err(err).Msg("deposit failed")
		}
		bidders = append(bidders, bidder)
	}

	endTime := time.Now().Add(auctionLifetime)
	auctionIDs := make([]string, 0, numAuctions)
	for i := 0; i < numAuctions; i++ {
		id, err := seller.createAuction(itemTitles[i%len(itemTitles)], 10+float64(i*5), endTime)
		if err != nil {
			log.Fatal().Err(err).Msg("auction creation failed")
		}
		auctionIDs = append(auctionIDs, id)
	}
	log.Info().Int("auctions", len(auctionIDs)).Int("bidders", numBidders).Msg("Simulation setup complete")

	var wg sync.WaitGroup
	for _, bidder := range bidders {
		wg.Add(1)
		go func(bc *simulationClient) {
			defer wg.Done()
			for i := 0; i < bidsPerBidder; i++ {
				auctionID := auctionIDs[rand.Intn(len(auctionIDs))]
				amount := 10 + rand.Float64()*200
				if err := bc.placeBid(auctionID, amount); err != nil {
					// Rejections (too low, insufficient funds) are an
					// expected part of the load shape.
					log.Debug().Err(err).Str("user", bc.userID).Msg("Bid rejected")
				}
				time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
			}
		}(bidder)
	}
	wg.Wait()

	log.Info().Msg("Bidding complete, waiting for auctions to expire")
	time.Sleep(time.Until(endTime) + time.Second)

	if err := seller.triggerSweep(); err != nil {
		log.Fatal().Err(err).Msg("settlement sweep failed")
	}

	available, pending, err := seller.getBalance()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch seller balance")
	}
	log.Info().
		Float64("seller_available", available).
		Float64("seller_pending", pending).
		Msg("Simulation complete")

	printStats(stats)
}

// printStats outputs performance statistics for all tracked routes
func printStats(stats map[string]*routeStats) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\n=== Route Performance ===")
	for _, k := range keys {
		rs := stats[k]
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, p95 := rs.calculate()
		fmt.Printf("%-18s calls=%-4d failures=%-3d min=%-10v max=%-10v mean=%-10v p95=%v\n",
			rs.name, rs.totalCalls, rs.failures,
			min.Round(time.Millisecond), max.Round(time.Millisecond),
			mean.Round(time.Millisecond), p95.Round(time.Millisecond))
	}
}
