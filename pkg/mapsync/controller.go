package mapsync

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/travigo/fieldtrack/pkg/tracking"
	"golang.org/x/exp/slices"
)

const (
	onlineColour  = "#16a34a"
	offlineColour = "#6b7280"
)

type Input struct {
	Day      civil.Date
	Roster   []tracking.Researcher
	Latest   map[string]tracking.LocationSample
	Statuses map[string]tracking.Status
	Selected string
	Route    []tracking.LocationSample
}

// Controller keeps a Surface in line with the derived tracking views. Sync can
// be called any number of times, the surface is only touched for what changed.
type Controller struct {
	Location *time.Location

	mutex   sync.Mutex
	surface Surface

	synced    bool
	markerKey string
	fitKey    string
	routeKey  string
	selected  string
}

func NewController(location *time.Location) *Controller {
	if location == nil {
		location = time.Local
	}

	return &Controller{Location: location}
}

// Attach hands the controller a mounted surface, the next Sync redraws everything
func (c *Controller) Attach(surface Surface) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.surface = surface
	c.synced = false
}

// Detach releases the surface, later syncs are no-ops until the next Attach
func (c *Controller) Detach() Surface {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	surface := c.surface
	c.surface = nil
	c.synced = false

	return surface
}

func (c *Controller) Sync(input Input) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.surface == nil {
		return
	}

	markers := BuildMarkers(input, c.Location)

	markerKey := markersKey(markers)
	if !c.synced || markerKey != c.markerKey {
		c.surface.ClearMarkers()
		for _, marker := range markers {
			c.surface.PlaceMarker(marker)
		}
	}

	// Only refit the overview when the set of researchers on the map changes,
	// never for moves or status changes, so a manual pan/zoom is kept
	fitKey := fitSetKey(input.Day, markers)
	selectionCleared := c.synced && c.selected != "" && input.Selected == ""
	if input.Selected == "" && len(markers) > 0 && (!c.synced || fitKey != c.fitKey || selectionCleared) {
		points := make([]Coordinate, 0, len(markers))
		for _, marker := range markers {
			points = append(points, marker.Position)
		}
		c.surface.FitBounds(points)
	}

	route := []Coordinate{}
	if input.Selected != "" {
		for _, sample := range input.Route {
			route = append(route, CoordinateOf(sample.Location))
		}
	}
	routeKey := input.Selected + "|" + coordinatesKey(route)
	if !c.synced || routeKey != c.routeKey {
		c.surface.DrawRoute(route)
		if len(route) > 0 {
			c.surface.FitBounds(route)
		}
	}

	c.synced = true
	c.markerKey = markerKey
	c.fitKey = fitKey
	c.routeKey = routeKey
	c.selected = input.Selected
}

// BuildMarkers returns one marker per roster researcher with a latest position, in roster order
func BuildMarkers(input Input, location *time.Location) []Marker {
	markers := []Marker{}

	for _, researcher := range input.Roster {
		latest, exists := input.Latest[researcher.PrimaryIdentifier]
		if !exists {
			continue
		}

		status, exists := input.Statuses[researcher.PrimaryIdentifier]
		if !exists {
			status = tracking.Status{Type: tracking.StatusOffline, LastSeen: latest.Timestamp}
		}

		marker := Marker{
			ResearcherRef: researcher.PrimaryIdentifier,
			Name:          researcher.Name,
			Position:      CoordinateOf(latest.Location),
			Status:        status,
			Selected:      researcher.PrimaryIdentifier == input.Selected,
			Popup:         fmt.Sprintf("%s\nLast update: %s", researcher.Name, latest.Timestamp.In(location).Format(time.TimeOnly)),
		}
		if status.Online() {
			marker.Colour = onlineColour
			marker.Icon = "marker-online"
		} else {
			marker.Colour = offlineColour
			marker.Icon = "marker-offline"
		}

		markers = append(markers, marker)
	}

	return markers
}

func markersKey(markers []Marker) string {
	var key strings.Builder
	for _, marker := range markers {
		fmt.Fprintf(&key, "%s|%f|%f|%s|%t|%s;", marker.ResearcherRef, marker.Position.Latitude, marker.Position.Longitude, marker.Icon, marker.Selected, marker.Popup)
	}
	return key.String()
}

func fitSetKey(day civil.Date, markers []Marker) string {
	refs := make([]string, 0, len(markers))
	for _, marker := range markers {
		refs = append(refs, marker.ResearcherRef)
	}
	slices.Sort(refs)

	return day.String() + "|" + strings.Join(refs, ",")
}

func coordinatesKey(points []Coordinate) string {
	var key strings.Builder
	for _, point := range points {
		fmt.Fprintf(&key, "%f,%f;", point.Latitude, point.Longitude)
	}
	return key.String()
}
