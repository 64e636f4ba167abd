package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/travigo/fieldtrack/pkg/tracking"
)

const QueueName = "locations-queue"

// Publisher is the part of rmq.Queue used to enqueue reports
type Publisher interface {
	Publish(payload ...string) error
}

// QueueReporter enqueues reports straight onto the ingest queue, bypassing the web API
type QueueReporter struct {
	Queue Publisher
}

func (r QueueReporter) ReportLocation(_ context.Context, sample tracking.LocationSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	if err := r.Queue.Publish(string(payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", QueueName, err)
	}

	return nil
}
