package tracking

import (
	"fmt"
	"time"
)

const DefaultOfflineThreshold = 5 * time.Minute

type StatusType string

const (
	StatusOnline    StatusType = "Online"
	StatusOffline   StatusType = "Offline"
	StatusNeverSeen StatusType = "NeverSeen"
)

type Status struct {
	Type     StatusType
	LastSeen time.Time
}

// Classify derives a researcher status from their latest sample. It only
// depends on its arguments so status can be re-derived as the clock advances.
func Classify(latest *LocationSample, now time.Time, threshold time.Duration) Status {
	if latest == nil {
		return Status{Type: StatusNeverSeen}
	}

	if now.Sub(latest.Timestamp) < threshold {
		return Status{Type: StatusOnline, LastSeen: latest.Timestamp}
	}

	return Status{Type: StatusOffline, LastSeen: latest.Timestamp}
}

func (s Status) Online() bool {
	return s.Type == StatusOnline
}

func (s Status) Label(location *time.Location) string {
	switch s.Type {
	case StatusOnline:
		return fmt.Sprintf("Online - %s", s.LastSeen.In(location).Format(time.TimeOnly))
	case StatusOffline:
		return fmt.Sprintf("Offline since %s", s.LastSeen.In(location).Format(time.TimeOnly))
	default:
		return "Offline"
	}
}
