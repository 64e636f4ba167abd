package mapsync

import (
	"github.com/travigo/fieldtrack/pkg/tracking"
)

type Coordinate struct {
	Latitude  float64
	Longitude float64
}

func CoordinateOf(location tracking.Location) Coordinate {
	return Coordinate{Latitude: location.Latitude(), Longitude: location.Longitude()}
}

type Marker struct {
	ResearcherRef string
	Name          string
	Position      Coordinate
	Status        tracking.Status
	Selected      bool

	Colour string
	Icon   string
	Popup  string
}

// Surface is the map rendering engine the controller draws onto
type Surface interface {
	ClearMarkers()
	PlaceMarker(marker Marker)
	// DrawRoute replaces the route layer, an empty route clears it
	DrawRoute(route []Coordinate)
	FitBounds(points []Coordinate)
}

type Bounds struct {
	South float64
	West  float64
	North float64
	East  float64
}

func BoundsOf(points []Coordinate) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}

	bounds := Bounds{
		South: points[0].Latitude,
		North: points[0].Latitude,
		West:  points[0].Longitude,
		East:  points[0].Longitude,
	}
	for _, point := range points[1:] {
		bounds.South = min(bounds.South, point.Latitude)
		bounds.North = max(bounds.North, point.Latitude)
		bounds.West = min(bounds.West, point.Longitude)
		bounds.East = max(bounds.East, point.Longitude)
	}

	return bounds, true
}
