package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink writes events to the structured log. It is the default sink when no
// broker is configured.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Publish(_ context.Context, event Event) error {
	log.Info().
		Str("component", "event_sink").
		Str("event_type", event.Type).
		Str("user_id", event.UserID).
		Str("auction_id", event.AuctionID).
		Float64("amount", event.Amount).
		Msg("domain event")
	return nil
}
