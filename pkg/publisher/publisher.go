package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

var ErrAlreadyRunning = errors.New("publisher is already running")

// Reporter forwards a sample to the backend
type Reporter interface {
	ReportLocation(ctx context.Context, sample tracking.LocationSample) error
}

type Stats struct {
	Forwarded       int
	Throttled       int
	Failed          int
	TransientErrors int
}

// Publisher forwards at most one sensor reading per throttle window on behalf
// of one researcher
type Publisher struct {
	ResearcherRef string

	sensor   Sensor
	reporter Reporter
	clock    clockwork.Clock
	config   Config

	mutex    sync.Mutex
	running  bool
	denied   bool
	lastSent time.Time
	hasSent  bool
	stats    Stats
}

func NewPublisher(researcherRef string, sensor Sensor, reporter Reporter, clock clockwork.Clock, config Config) *Publisher {
	return &Publisher{
		ResearcherRef: researcherRef,
		sensor:        sensor,
		reporter:      reporter,
		clock:         clock,
		config:        config,
	}
}

func (p *Publisher) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.stats
}

// Denied reports whether the sensor refused permission. Once denied the
// publisher never subscribes again.
func (p *Publisher) Denied() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.denied
}

// Run holds one sensor subscription until ctx is done, the feed ends or
// permission is denied. The subscription and throttle state are released on
// return.
func (p *Publisher) Run(ctx context.Context) error {
	p.mutex.Lock()
	if p.denied {
		p.mutex.Unlock()
		return ErrPermissionDenied
	}
	if p.running {
		p.mutex.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.mutex.Unlock()

	defer func() {
		p.mutex.Lock()
		p.running = false
		p.hasSent = false
		p.lastSent = time.Time{}
		p.mutex.Unlock()
	}()

	subscription, err := p.sensor.Subscribe(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			p.deny()
		}
		return err
	}
	defer func() {
		if err := subscription.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close sensor subscription")
		}
	}()

	log.Info().Str("researcher", p.ResearcherRef).Dur("throttle", p.config.ThrottleInterval).Msg("Publishing location")

	events := subscription.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				log.Info().Str("researcher", p.ResearcherRef).Msg("Sensor feed ended")
				return nil
			}

			if event.Err != nil {
				if event.Err.Fatal() {
					log.Error().Err(event.Err).Str("researcher", p.ResearcherRef).Msg("Sensor permission denied, stopping")
					p.deny()
					return ErrPermissionDenied
				}

				log.Warn().Err(event.Err).Str("researcher", p.ResearcherRef).Msg("Sensor error")
				p.mutex.Lock()
				p.stats.TransientErrors++
				p.mutex.Unlock()
				continue
			}

			p.handleReading(ctx, event.Reading)
		}
	}
}

func (p *Publisher) deny() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.denied = true
}

func (p *Publisher) handleReading(ctx context.Context, reading Reading) {
	sample := tracking.NewLocationSample(p.ResearcherRef, reading.Latitude, reading.Longitude, reading.Timestamp)
	sample.Accuracy = reading.Accuracy
	if sample.Timestamp.IsZero() {
		sample.Timestamp = p.clock.Now()
	}

	if err := sample.Validate(); err != nil {
		log.Warn().Err(err).Str("researcher", p.ResearcherRef).Msg("Dropping reading")
		return
	}

	now := p.clock.Now()

	p.mutex.Lock()
	if p.hasSent && now.Sub(p.lastSent) < p.config.ThrottleInterval {
		p.stats.Throttled++
		p.mutex.Unlock()
		return
	}
	p.hasSent = true
	p.lastSent = now
	p.mutex.Unlock()

	reportContext, cancel := context.WithTimeout(ctx, p.config.ReportTimeout)
	defer cancel()

	if err := p.reporter.ReportLocation(reportContext, sample); err != nil {
		log.Error().Err(err).Str("researcher", p.ResearcherRef).Msg("Failed to report location")

		p.mutex.Lock()
		p.stats.Failed++
		p.mutex.Unlock()
		return
	}

	log.Debug().
		Str("researcher", p.ResearcherRef).
		Float64("latitude", sample.Latitude()).
		Float64("longitude", sample.Longitude()).
		Msg("Reported location")

	p.mutex.Lock()
	p.stats.Forwarded++
	p.mutex.Unlock()
}
