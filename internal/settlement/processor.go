package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor drives the periodic settlement sweep. Overlapping runs are safe:
// each auction's close re-checks its status under the transaction, so a slow
// previous sweep cannot double-settle.
type Processor struct {
	service       *Service
	sweepInterval time.Duration
}

func NewProcessor(service *Service, sweepInterval time.Duration) *Processor {
	return &Processor{
		service:       service,
		sweepInterval: sweepInterval,
	}
}

// Start begins the settlement sweep loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Dur("interval", p.sweepInterval).Msg("starting settlement processor")

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			results, err := p.service.RunSweep(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("settlement sweep failed")
				continue
			}
			if len(results) > 0 {
				logger.Info().Int("auction_count", len(results)).Msg("sweep settled auctions")
			}
		}
	}
}
