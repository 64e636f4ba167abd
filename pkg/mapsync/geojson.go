package mapsync

import (
	"sync"
)

const routeColour = "#2563eb"

type FeatureCollection struct {
	Type     string    `json:"type"`
	BBox     []float64 `json:"bbox,omitempty"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type Geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// GeoJSONSurface keeps the rendered layers in memory so a web map client can
// poll them as a FeatureCollection
type GeoJSONSurface struct {
	mutex sync.RWMutex

	markers  []Marker
	route    []Coordinate
	viewport *Bounds
}

func NewGeoJSONSurface() *GeoJSONSurface {
	return &GeoJSONSurface{}
}

func (g *GeoJSONSurface) ClearMarkers() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.markers = nil
}

func (g *GeoJSONSurface) PlaceMarker(marker Marker) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.markers = append(g.markers, marker)
}

func (g *GeoJSONSurface) DrawRoute(route []Coordinate) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.route = append([]Coordinate(nil), route...)
}

func (g *GeoJSONSurface) FitBounds(points []Coordinate) {
	bounds, ok := BoundsOf(points)
	if !ok {
		return
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.viewport = &bounds
}

func (g *GeoJSONSurface) Viewport() (Bounds, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if g.viewport == nil {
		return Bounds{}, false
	}
	return *g.viewport, true
}

func (g *GeoJSONSurface) FeatureCollection() FeatureCollection {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	collection := FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}

	// GeoJSON bbox order is west, south, east, north
	if g.viewport != nil {
		collection.BBox = []float64{g.viewport.West, g.viewport.South, g.viewport.East, g.viewport.North}
	}

	for _, marker := range g.markers {
		collection.Features = append(collection.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{marker.Position.Longitude, marker.Position.Latitude},
			},
			Properties: map[string]interface{}{
				"layer":      "markers",
				"researcher": marker.ResearcherRef,
				"name":       marker.Name,
				"status":     marker.Status.Type,
				"selected":   marker.Selected,
				"colour":     marker.Colour,
				"icon":       marker.Icon,
				"popup":      marker.Popup,
			},
		})
	}

	if len(g.route) > 0 {
		line := make([][]float64, 0, len(g.route))
		for _, point := range g.route {
			line = append(line, []float64{point.Longitude, point.Latitude})
		}

		collection.Features = append(collection.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: line,
			},
			Properties: map[string]interface{}{
				"layer":  "route",
				"colour": routeColour,
			},
		})
	}

	return collection
}
