package mapsync

import (
	"github.com/rs/zerolog"
)

// LogSurface renders the map as log lines, for running the operator view headless
type LogSurface struct {
	Logger zerolog.Logger
}

func (l LogSurface) ClearMarkers() {
	l.Logger.Debug().Msg("Cleared markers")
}

func (l LogSurface) PlaceMarker(marker Marker) {
	l.Logger.Info().
		Str("researcher", marker.ResearcherRef).
		Str("name", marker.Name).
		Float64("latitude", marker.Position.Latitude).
		Float64("longitude", marker.Position.Longitude).
		Str("status", string(marker.Status.Type)).
		Bool("selected", marker.Selected).
		Msg("Marker")
}

func (l LogSurface) DrawRoute(route []Coordinate) {
	if len(route) == 0 {
		l.Logger.Info().Msg("Cleared route")
		return
	}

	l.Logger.Info().Int("points", len(route)).Msg("Route")
}

func (l LogSurface) FitBounds(points []Coordinate) {
	bounds, ok := BoundsOf(points)
	if !ok {
		return
	}

	l.Logger.Info().
		Float64("south", bounds.South).
		Float64("west", bounds.West).
		Float64("north", bounds.North).
		Float64("east", bounds.East).
		Msg("Viewport")
}
