package tracking

import (
	"math"
)

const earthRadiusMetres = 6371000.0

// Location is a GeoJSON point, Coordinates holds [longitude, latitude]
type Location struct {
	Type        string    `groups:"basic"`
	Coordinates []float64 `groups:"basic"`
}

func NewLocation(latitude float64, longitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[0]
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}

func (l Location) Valid() bool {
	if len(l.Coordinates) != 2 {
		return false
	}

	latitude := l.Latitude()
	longitude := l.Longitude()

	return latitude >= -90 && latitude <= 90 && longitude >= -180 && longitude <= 180
}

// Distance returns the great circle distance to other in metres
func (l Location) Distance(other Location) float64 {
	lat1 := l.Latitude() * math.Pi / 180
	lat2 := other.Latitude() * math.Pi / 180
	deltaLat := lat2 - lat1
	deltaLon := (other.Longitude() - l.Longitude()) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	return earthRadiusMetres * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
