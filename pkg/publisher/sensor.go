package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrPermissionDenied  = errors.New("location permission denied")
	ErrAlreadySubscribed = errors.New("sensor already has an active subscription")
)

type SensorErrorCode string

const (
	SensorPermissionDenied    SensorErrorCode = "permission-denied"
	SensorTimeout             SensorErrorCode = "timeout"
	SensorPositionUnavailable SensorErrorCode = "position-unavailable"
)

// SensorError is an error delivered through the feed. Only permission denied
// is fatal, the others leave the subscription running.
type SensorError struct {
	Code    SensorErrorCode
	Message string
}

func (e *SensorError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sensor %s", e.Code)
	}
	return fmt.Sprintf("sensor %s: %s", e.Code, e.Message)
}

func (e *SensorError) Fatal() bool {
	return e.Code == SensorPermissionDenied
}

func (e *SensorError) Is(target error) bool {
	return target == ErrPermissionDenied && e.Fatal()
}

// Reading is a raw position fix from the device
type Reading struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// SensorEvent carries either a Reading or an Err
type SensorEvent struct {
	Reading Reading
	Err     *SensorError
}

type Subscription interface {
	// Events is closed when the feed ends
	Events() <-chan SensorEvent
	Close() error
}

type Sensor interface {
	Subscribe(ctx context.Context) (Subscription, error)
}
