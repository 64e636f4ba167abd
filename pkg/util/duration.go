package util

import (
	"fmt"
	"time"

	iso8601 "github.com/senseyeio/duration"
)

// ParseDuration accepts either Go duration syntax (20s, 5m) or ISO8601 (PT20S, PT5M)
func ParseDuration(value string) (time.Duration, error) {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration, nil
	}

	isoDuration, err := iso8601.ParseISO8601(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}

	// Calendar components are resolved against a fixed reference so the result is stable
	reference := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

	return isoDuration.Shift(reference).Sub(reference), nil
}
