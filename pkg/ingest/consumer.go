package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

// LocationWriter persists a batch of samples
type LocationWriter interface {
	InsertLocations(ctx context.Context, samples []tracking.LocationSample) error
}

// IndexFunc sends a document to the search index
type IndexFunc func(indexName string, document io.ReadSeeker)

type locationElasticEvent struct {
	Timestamp time.Time

	ResearcherRef string
	Location      tracking.Location
	Accuracy      float64

	// Delay between the sample being taken and it being ingested
	IngestDelay float64
}

// BatchConsumer writes queued location reports to the database and indexes
// them. Payloads that cannot be decoded or fail validation are rejected.
type BatchConsumer struct {
	id     int
	writer LocationWriter
	index  IndexFunc
	now    func() time.Time
}

func NewBatchConsumer(id int, writer LocationWriter, index IndexFunc) *BatchConsumer {
	return &BatchConsumer{
		id:     id,
		writer: writer,
		index:  index,
		now:    time.Now,
	}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	var samples []tracking.LocationSample
	var accepted []rmq.Delivery

	for _, delivery := range batch {
		var sample tracking.LocationSample
		err := json.Unmarshal([]byte(delivery.Payload()), &sample)
		if err == nil {
			err = sample.Validate()
		}

		if err != nil {
			log.Error().Err(err).Int("consumer", consumer.id).Msg("Rejecting location report")
			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject location report")
			}
			continue
		}

		samples = append(samples, sample)
		accepted = append(accepted, delivery)
	}

	if len(samples) == 0 {
		return
	}

	startTime := time.Now()
	if err := consumer.writer.InsertLocations(context.Background(), samples); err != nil {
		log.Error().Err(err).Int("consumer", consumer.id).Msg("Failed to write location reports")

		// Push puts the delivery back on the ready list for another attempt
		for _, delivery := range accepted {
			if err := delivery.Push(); err != nil {
				log.Error().Err(err).Msg("Failed to return location report to queue")
			}
		}
		return
	}
	log.Info().Int("length", len(samples)).Dur("time", time.Since(startTime)).Msg("Bulk write")

	consumer.indexSamples(samples)

	for _, delivery := range accepted {
		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack location report")
		}
	}
}

func (consumer *BatchConsumer) indexSamples(samples []tracking.LocationSample) {
	if consumer.index == nil {
		return
	}

	now := consumer.now()
	yearNumber, weekNumber := now.ISOWeek()
	indexName := fmt.Sprintf("fieldtrack-locations-%d-%d", yearNumber, weekNumber)

	for _, sample := range samples {
		elasticEvent, err := json.Marshal(locationElasticEvent{
			Timestamp:     sample.Timestamp,
			ResearcherRef: sample.ResearcherRef,
			Location:      sample.Location,
			Accuracy:      sample.Accuracy,
			IngestDelay:   now.Sub(sample.Timestamp).Seconds(),
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode location event")
			continue
		}

		consumer.index(indexName, bytes.NewReader(elasticEvent))
	}
}
