package publisher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulcager/osgridref"
	"github.com/rs/zerolog/log"
)

// LineSensor reads one JSON event per line, eg.
//
//	{"lat": 51.5, "lon": -0.12, "accuracy": 8, "timestamp": "2024-03-12T10:00:00Z"}
//	{"easting": 530000, "northing": 180000}
//	{"error": "timeout", "message": "no fix within 10s"}
//
// One goroutine per sensor reads the feed. A line read while nothing is
// subscribed is held for the next subscription.
type LineSensor struct {
	reader io.Reader
	clock  clockwork.Clock

	startReader sync.Once
	lines       chan []byte

	mutex      sync.Mutex
	subscribed bool
}

type lineEvent struct {
	Latitude  *float64   `json:"lat"`
	Longitude *float64   `json:"lon"`
	Easting   *float64   `json:"easting"`
	Northing  *float64   `json:"northing"`
	Accuracy  float64    `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
	Error     string     `json:"error"`
	Message   string     `json:"message"`
}

func NewLineSensor(reader io.Reader, clock clockwork.Clock) *LineSensor {
	return &LineSensor{
		reader: reader,
		clock:  clock,
		lines:  make(chan []byte),
	}
}

// Subscribe starts delivering events from the feed. The slot is free again
// once Close on the subscription has returned, even if the reader is idle.
func (l *LineSensor) Subscribe(ctx context.Context) (Subscription, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.subscribed {
		return nil, ErrAlreadySubscribed
	}
	l.subscribed = true

	l.startReader.Do(func() {
		go l.readLines()
	})

	ctx, cancel := context.WithCancel(ctx)
	subscription := &lineSubscription{
		events: make(chan SensorEvent),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer func() {
			l.mutex.Lock()
			l.subscribed = false
			l.mutex.Unlock()

			close(subscription.events)
			close(subscription.done)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-l.lines:
				if !ok {
					return
				}

				event, err := l.parse(line)
				if err != nil {
					log.Warn().Err(err).Msg("Skipping malformed sensor line")
					continue
				}

				select {
				case subscription.events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return subscription, nil
}

func (l *LineSensor) readLines() {
	defer close(l.lines)

	scanner := bufio.NewScanner(l.reader)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		l.lines <- append([]byte(nil), scanner.Bytes()...)
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Sensor feed read failed")
	}
}

func (l *LineSensor) parse(line []byte) (SensorEvent, error) {
	var raw lineEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return SensorEvent{}, err
	}

	if raw.Error != "" {
		code := SensorErrorCode(raw.Error)
		switch code {
		case SensorPermissionDenied, SensorTimeout, SensorPositionUnavailable:
		default:
			return SensorEvent{}, fmt.Errorf("unknown sensor error %q", raw.Error)
		}

		return SensorEvent{Err: &SensorError{Code: code, Message: raw.Message}}, nil
	}

	reading := Reading{
		Accuracy:  raw.Accuracy,
		Timestamp: l.clock.Now(),
	}
	if raw.Timestamp != nil {
		reading.Timestamp = *raw.Timestamp
	}

	switch {
	case raw.Latitude != nil && raw.Longitude != nil:
		reading.Latitude = *raw.Latitude
		reading.Longitude = *raw.Longitude
	case raw.Easting != nil && raw.Northing != nil:
		gridRef, err := osgridref.ParseOsGridRef(fmt.Sprintf("%.0f,%.0f", *raw.Easting, *raw.Northing))
		if err != nil {
			return SensorEvent{}, err
		}

		reading.Latitude, reading.Longitude = gridRef.ToLatLon()
	default:
		return SensorEvent{}, fmt.Errorf("line has no position")
	}

	return SensorEvent{Reading: reading}, nil
}

type lineSubscription struct {
	events chan SensorEvent
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *lineSubscription) Events() <-chan SensorEvent {
	return s.events
}

// Close stops delivery and waits until the sensor slot has been released
func (s *lineSubscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}
