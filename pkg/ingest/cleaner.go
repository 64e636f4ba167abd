package ingest

import (
	"context"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
)

const cleanInterval = 5 * time.Minute

// Cleaner returns deliveries held by dead consumer connections to their queues
type Cleaner interface {
	Clean() (int64, error)
}

func StartCleaner(ctx context.Context, connection rmq.Connection) {
	ticker := time.NewTicker(cleanInterval)
	defer ticker.Stop()

	RunCleaner(ctx, rmq.NewCleaner(connection), ticker.C)
}

func RunCleaner(ctx context.Context, cleaner Cleaner, ticks <-chan time.Time) {
	log.Info().Str("queue", QueueName).Msg("Starting queue cleaner process")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			returned, err := cleaner.Clean()
			if err != nil {
				log.Error().Err(err).Msg("Failed to clean")
				continue
			}

			if returned != 0 {
				log.Info().Int64("returned", returned).Msg("Cleaned deliveries")
			}
		}
	}
}
