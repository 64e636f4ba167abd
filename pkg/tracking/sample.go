package tracking

import (
	"errors"
	"time"
)

var ErrInvalidSample = errors.New("invalid location sample")

// LocationSample is a single timestamped position report for a researcher
type LocationSample struct {
	ResearcherRef string `groups:"basic"`

	Location Location `groups:"basic"`
	Accuracy float64  `groups:"detailed"`

	Timestamp time.Time `groups:"basic"`
}

func NewLocationSample(researcherRef string, latitude float64, longitude float64, timestamp time.Time) LocationSample {
	return LocationSample{
		ResearcherRef: researcherRef,
		Location:      NewLocation(latitude, longitude),
		Timestamp:     timestamp,
	}
}

func (s LocationSample) Latitude() float64 {
	return s.Location.Latitude()
}

func (s LocationSample) Longitude() float64 {
	return s.Location.Longitude()
}

func (s LocationSample) Validate() error {
	if s.ResearcherRef == "" {
		return errors.Join(ErrInvalidSample, errors.New("missing researcher reference"))
	}
	if !s.Location.Valid() {
		return errors.Join(ErrInvalidSample, errors.New("coordinates out of range"))
	}
	if s.Timestamp.IsZero() {
		return errors.Join(ErrInvalidSample, errors.New("missing timestamp"))
	}

	return nil
}
