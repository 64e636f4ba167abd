package util

import (
	"time"

	"cloud.google.com/go/civil"
)

// DayOf returns the calendar day t falls on in the given timezone
func DayOf(t time.Time, location *time.Location) civil.Date {
	return civil.DateOf(t.In(location))
}

// DayBounds returns the half open [start, end) instant range covering day
func DayBounds(day civil.Date, location *time.Location) (time.Time, time.Time) {
	start := day.In(location)
	end := day.AddDays(1).In(location)

	return start, end
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}

	return time.LoadLocation(name)
}
