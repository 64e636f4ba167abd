package mapsync

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

type recordingSurface struct {
	markers     []Marker
	route       []Coordinate
	clears      int
	routeDraws  int
	fits        [][]Coordinate
	placedTotal int
}

func (r *recordingSurface) ClearMarkers() {
	r.clears++
	r.markers = nil
}

func (r *recordingSurface) PlaceMarker(marker Marker) {
	r.placedTotal++
	r.markers = append(r.markers, marker)
}

func (r *recordingSurface) DrawRoute(route []Coordinate) {
	r.routeDraws++
	r.route = route
}

func (r *recordingSurface) FitBounds(points []Coordinate) {
	r.fits = append(r.fits, points)
}

var testDay = civil.Date{Year: 2024, Month: time.March, Day: 12}

func at(hour, minute int) time.Time {
	return time.Date(2024, time.March, 12, hour, minute, 0, 0, time.UTC)
}

func baseInput() Input {
	samples := []tracking.LocationSample{
		tracking.NewLocationSample("A", 1, 1, at(10, 0)),
		tracking.NewLocationSample("A", 2, 2, at(10, 5)),
		tracking.NewLocationSample("B", 3, 3, at(9, 50)),
	}
	latest := tracking.LatestPositions(samples)
	a, b := latest["A"], latest["B"]

	return Input{
		Day: testDay,
		Roster: []tracking.Researcher{
			{PrimaryIdentifier: "A", Name: "Ana", IsActive: true},
			{PrimaryIdentifier: "B", Name: "Bruno", IsActive: true},
			{PrimaryIdentifier: "C", Name: "Carla", IsActive: true},
		},
		Latest: latest,
		Statuses: map[string]tracking.Status{
			"A": tracking.Classify(&a, at(10, 6), tracking.DefaultOfflineThreshold),
			"B": tracking.Classify(&b, at(10, 6), tracking.DefaultOfflineThreshold),
			"C": tracking.Classify(nil, at(10, 6), tracking.DefaultOfflineThreshold),
		},
	}
}

func selectA(input Input) Input {
	samples := []tracking.LocationSample{
		tracking.NewLocationSample("A", 2, 2, at(10, 5)),
		tracking.NewLocationSample("A", 1, 1, at(10, 0)),
	}
	input.Selected = "A"
	input.Route = tracking.Route(samples, "A")
	return input
}

func TestSyncWithoutSurfaceIsNoop(t *testing.T) {
	controller := NewController(time.UTC)

	assert.NotPanics(t, func() { controller.Sync(baseInput()) })
}

func TestSyncPlacesMarkersWithStatus(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)

	controller.Sync(baseInput())

	require.Len(t, surface.markers, 2)
	assert.Equal(t, "A", surface.markers[0].ResearcherRef)
	assert.Equal(t, Coordinate{Latitude: 2, Longitude: 2}, surface.markers[0].Position)
	assert.Equal(t, onlineColour, surface.markers[0].Colour)
	assert.Equal(t, "Ana\nLast update: 10:05:00", surface.markers[0].Popup)
	assert.Equal(t, "B", surface.markers[1].ResearcherRef)
	assert.Equal(t, offlineColour, surface.markers[1].Colour)
	require.Len(t, surface.fits, 1)
	assert.Len(t, surface.fits[0], 2)
	assert.Empty(t, surface.route)
}

func TestSyncIsIdempotent(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)

	controller.Sync(baseInput())
	controller.Sync(baseInput())
	controller.Sync(baseInput())

	assert.Equal(t, 1, surface.clears)
	assert.Equal(t, 2, surface.placedTotal)
	assert.Len(t, surface.fits, 1)
	assert.Equal(t, 1, surface.routeDraws)
}

func TestStatusChangeRedrawsWithoutRefit(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)
	input := baseInput()
	controller.Sync(input)

	a := input.Latest["A"]
	input.Statuses = map[string]tracking.Status{
		"A": tracking.Classify(&a, at(10, 30), tracking.DefaultOfflineThreshold),
		"B": input.Statuses["B"],
	}
	controller.Sync(input)

	assert.Equal(t, 2, surface.clears)
	assert.Equal(t, offlineColour, surface.markers[0].Colour)
	assert.Len(t, surface.fits, 1)
}

func TestMoveRedrawsWithoutRefit(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)
	input := baseInput()
	controller.Sync(input)

	input.Latest["A"] = tracking.NewLocationSample("A", 2.5, 2.5, at(10, 6))
	controller.Sync(input)

	assert.Equal(t, 2, surface.clears)
	assert.Equal(t, Coordinate{Latitude: 2.5, Longitude: 2.5}, surface.markers[0].Position)
	assert.Len(t, surface.fits, 1)
}

func TestNewResearcherOnMapRefits(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)
	input := baseInput()
	controller.Sync(input)

	input.Latest["C"] = tracking.NewLocationSample("C", 4, 4, at(10, 6))
	controller.Sync(input)

	assert.Len(t, surface.markers, 3)
	assert.Len(t, surface.fits, 2)
}

func TestSelectingDrawsRouteAndFitsToIt(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)
	controller.Sync(baseInput())

	controller.Sync(selectA(baseInput()))

	assert.Equal(t, []Coordinate{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}}, surface.route)
	require.Len(t, surface.fits, 2)
	assert.Equal(t, surface.route, surface.fits[1])
}

func TestClearingSelectionRestoresOverview(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)
	controller.Sync(selectA(baseInput()))
	fitsBefore := len(surface.fits)

	controller.Sync(baseInput())

	assert.Empty(t, surface.route)
	assert.Len(t, surface.markers, 2)
	require.Len(t, surface.fits, fitsBefore+1)
	assert.Len(t, surface.fits[len(surface.fits)-1], 2)
	for _, marker := range surface.markers {
		assert.False(t, marker.Selected)
	}
}

func TestSelectedWithoutSamplesClearsRoute(t *testing.T) {
	controller := NewController(time.UTC)
	surface := &recordingSurface{}
	controller.Attach(surface)
	controller.Sync(selectA(baseInput()))

	input := baseInput()
	input.Selected = "C"
	input.Route = []tracking.LocationSample{}
	controller.Sync(input)

	assert.Empty(t, surface.route)
}

func TestAttachForcesRedraw(t *testing.T) {
	controller := NewController(time.UTC)
	first := &recordingSurface{}
	controller.Attach(first)
	controller.Sync(baseInput())

	assert.Equal(t, first, controller.Detach())
	controller.Sync(baseInput())

	second := &recordingSurface{}
	controller.Attach(second)
	controller.Sync(baseInput())

	assert.Equal(t, 1, first.clears)
	assert.Len(t, second.markers, 2)
	assert.Len(t, second.fits, 1)
}

func TestGeoJSONSurface(t *testing.T) {
	controller := NewController(time.UTC)
	surface := NewGeoJSONSurface()
	controller.Attach(surface)

	controller.Sync(selectA(baseInput()))

	collection := surface.FeatureCollection()
	assert.Equal(t, "FeatureCollection", collection.Type)
	require.Len(t, collection.Features, 3)
	assert.Equal(t, "Point", collection.Features[0].Geometry.Type)
	assert.Equal(t, []float64{2, 2}, collection.Features[0].Geometry.Coordinates)
	assert.Equal(t, true, collection.Features[0].Properties["selected"])
	assert.Equal(t, "LineString", collection.Features[2].Geometry.Type)
	assert.Equal(t, []float64{1, 1, 2, 2}, collection.BBox)

	viewport, ok := surface.Viewport()
	require.True(t, ok)
	assert.Equal(t, Bounds{South: 1, West: 1, North: 2, East: 2}, viewport)
}

func TestBoundsOf(t *testing.T) {
	_, ok := BoundsOf(nil)
	assert.False(t, ok)

	bounds, ok := BoundsOf([]Coordinate{{Latitude: -3, Longitude: 10}, {Latitude: 5, Longitude: -20}})
	require.True(t, ok)
	assert.Equal(t, Bounds{South: -3, West: -20, North: 5, East: 10}, bounds)
}
