package operatorview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fieldtrack/pkg/locationstore"
	"github.com/travigo/fieldtrack/pkg/mapsync"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

var (
	today     = civil.Date{Year: 2024, Month: time.March, Day: 12}
	yesterday = civil.Date{Year: 2024, Month: time.March, Day: 11}
	noon      = today.In(time.UTC).Add(12 * time.Hour)
)

type gatedBackend struct {
	mutex sync.Mutex

	researchers []tracking.Researcher
	locations   map[civil.Date][]tracking.LocationSample
	gates       map[civil.Date]chan struct{}
	err         error
	rosterErr   error

	locationCalls int
	rosterCalls   int
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		researchers: []tracking.Researcher{
			{PrimaryIdentifier: "A", Name: "Alice", IsActive: true},
			{PrimaryIdentifier: "B", Name: "Bob", IsActive: true},
		},
		locations: map[civil.Date][]tracking.LocationSample{},
		gates:     map[civil.Date]chan struct{}{},
	}
}

func (g *gatedBackend) Researchers(_ context.Context) ([]tracking.Researcher, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.rosterCalls++
	if g.rosterErr != nil {
		return nil, g.rosterErr
	}
	return g.researchers, nil
}

func (g *gatedBackend) LocationsForDay(ctx context.Context, day civil.Date) ([]tracking.LocationSample, error) {
	g.mutex.Lock()
	g.locationCalls++
	gate := g.gates[day]
	g.mutex.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.err != nil {
		return nil, g.err
	}
	return g.locations[day], nil
}

func (g *gatedBackend) calls() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.locationCalls
}

type countingSurface struct {
	mutex sync.Mutex

	calls   int
	markers []mapsync.Marker
	route   []mapsync.Coordinate
}

func (c *countingSurface) ClearMarkers() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.calls++
	c.markers = nil
}

func (c *countingSurface) PlaceMarker(marker mapsync.Marker) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.calls++
	c.markers = append(c.markers, marker)
}

func (c *countingSurface) DrawRoute(route []mapsync.Coordinate) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.calls++
	c.route = route
}

func (c *countingSurface) FitBounds(_ []mapsync.Coordinate) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.calls++
}

func (c *countingSurface) state() (int, int, int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.calls, len(c.markers), len(c.route)
}

func testConfig() Config {
	config := defaultConfig
	config.Timezone = "UTC"
	return config
}

func newTestSession(t *testing.T, backend *gatedBackend, clock clockwork.Clock, day civil.Date) *Session {
	store := locationstore.New(backend, day)
	session := NewSession(testConfig(), clock, time.UTC, store)
	t.Cleanup(session.Close)

	return session
}

func minute(day civil.Date, hour int, minute int) time.Time {
	return day.In(time.UTC).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func rosterLoaded(session *Session) bool {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	return session.rosterLoaded
}

func waitLoaded(t *testing.T, session *Session) {
	require.Eventually(t, func() bool {
		return !session.Loading() && rosterLoaded(session)
	}, time.Second, 5*time.Millisecond)
}

func TestStaleResponseForPreviousDayIsDiscarded(t *testing.T) {
	backend := newGatedBackend()
	backend.locations[yesterday] = []tracking.LocationSample{
		tracking.NewLocationSample("A", 51.0, -1.0, minute(yesterday, 9, 0)),
	}
	backend.locations[today] = []tracking.LocationSample{
		tracking.NewLocationSample("B", 52.0, -2.0, minute(today, 11, 0)),
	}
	release := make(chan struct{})
	backend.gates[yesterday] = release

	session := newTestSession(t, backend, clockwork.NewFakeClockAt(noon), yesterday)
	require.NoError(t, session.Start(context.Background()))

	require.Eventually(t, func() bool { return backend.calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, session.Loading())

	require.NoError(t, session.SetDay(today))
	waitLoaded(t, session)

	close(release)
	require.Eventually(t, func() bool {
		return session.store.Stats().Discarded == 1
	}, time.Second, 5*time.Millisecond)

	snapshot := session.store.Snapshot()
	assert.Equal(t, today, snapshot.Day)
	require.Len(t, snapshot.Samples, 1)
	assert.Equal(t, "B", snapshot.Samples[0].ResearcherRef)

	entries := session.Statuses()
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].Latest)
	require.NotNil(t, entries[1].Latest)
	assert.Equal(t, minute(today, 11, 0), entries[1].Latest.Timestamp)
}

func TestCloseStopsPollingAndDrawing(t *testing.T) {
	backend := newGatedBackend()
	backend.locations[today] = []tracking.LocationSample{
		tracking.NewLocationSample("A", 51.0, -1.0, minute(today, 11, 58)),
	}
	clock := clockwork.NewFakeClockAt(noon)
	surface := &countingSurface{}

	session := newTestSession(t, backend, clock, today)
	session.Attach(surface)
	require.NoError(t, session.Start(context.Background()))
	waitLoaded(t, session)

	clock.Advance(testConfig().RefreshInterval)
	require.Eventually(t, func() bool { return backend.calls() == 2 }, time.Second, 5*time.Millisecond)

	session.Close()
	calls := backend.calls()
	surfaceCalls, _, _ := surface.state()

	clock.Advance(10 * time.Minute)
	clock.Advance(10 * time.Minute)

	assert.Equal(t, calls, backend.calls())
	afterCalls, _, _ := surface.state()
	assert.Equal(t, surfaceCalls, afterCalls)

	assert.ErrorIs(t, session.SetDay(yesterday), ErrSessionClosed)
	session.Close()
}

func TestPastDayIsNotRefreshed(t *testing.T) {
	backend := newGatedBackend()
	clock := clockwork.NewFakeClockAt(noon)

	session := newTestSession(t, backend, clock, yesterday)
	require.NoError(t, session.Start(context.Background()))
	waitLoaded(t, session)

	clock.Advance(testConfig().RefreshInterval)
	clock.Advance(testConfig().RefreshInterval)
	session.Close()

	assert.Equal(t, 1, backend.calls())
}

func TestClockTickReclassifies(t *testing.T) {
	backend := newGatedBackend()
	backend.locations[today] = []tracking.LocationSample{
		tracking.NewLocationSample("A", 51.0, -1.0, minute(today, 11, 58)),
	}
	clock := clockwork.NewFakeClockAt(noon)

	session := newTestSession(t, backend, clock, today)
	require.NoError(t, session.Start(context.Background()))
	waitLoaded(t, session)

	entries := session.Statuses()
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Status.Online())
	assert.Equal(t, "Online - 11:58:00", entries[0].Label)
	assert.Equal(t, tracking.StatusNeverSeen, entries[1].Status.Type)
	assert.Equal(t, "Offline", entries[1].Label)
	assert.Equal(t, 1, session.OnlineCount())

	clock.Advance(testConfig().TickInterval)
	require.Eventually(t, func() bool {
		return session.OnlineCount() == 1 && session.Statuses()[0].Label == "Online - 11:58:00"
	}, time.Second, 5*time.Millisecond)

	clock.Advance(testConfig().TickInterval * 4)
	require.Eventually(t, func() bool {
		return session.OnlineCount() == 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "Offline since 11:58:00", session.Statuses()[0].Label)
}

func TestSelectionAndClear(t *testing.T) {
	backend := newGatedBackend()
	backend.locations[today] = []tracking.LocationSample{
		tracking.NewLocationSample("A", 51.0, -1.0, minute(today, 10, 0)),
		tracking.NewLocationSample("A", 51.2, -1.2, minute(today, 10, 5)),
		tracking.NewLocationSample("A", 50.8, -0.8, minute(today, 9, 50)),
		tracking.NewLocationSample("B", 52.0, -2.0, minute(today, 11, 0)),
	}
	surface := &countingSurface{}

	session := newTestSession(t, backend, clockwork.NewFakeClockAt(noon), today)
	session.Attach(surface)
	require.NoError(t, session.Start(context.Background()))
	waitLoaded(t, session)

	_, markers, route := surface.state()
	assert.Equal(t, 2, markers)
	assert.Equal(t, 0, route)

	assert.ErrorIs(t, session.Select("Z"), ErrUnknownResearcher)

	require.NoError(t, session.Select("A"))
	selected, samples := session.Route()
	assert.Equal(t, "A", selected)
	require.Len(t, samples, 3)
	assert.Equal(t, minute(today, 9, 50), samples[0].Timestamp)
	assert.Equal(t, minute(today, 10, 5), samples[2].Timestamp)

	_, markers, route = surface.state()
	assert.Equal(t, 2, markers)
	assert.Equal(t, 3, route)

	session.ClearSelection()
	_, markers, route = surface.state()
	assert.Equal(t, 2, markers)
	assert.Equal(t, 0, route)
	assert.Equal(t, "", session.Selected())
}

func TestSetDayClearsSelection(t *testing.T) {
	backend := newGatedBackend()
	backend.locations[today] = []tracking.LocationSample{
		tracking.NewLocationSample("A", 51.0, -1.0, minute(today, 10, 0)),
	}

	session := newTestSession(t, backend, clockwork.NewFakeClockAt(noon), today)
	require.NoError(t, session.Start(context.Background()))
	waitLoaded(t, session)

	require.NoError(t, session.Select("A"))
	require.NoError(t, session.SetDay(yesterday))

	assert.Equal(t, "", session.Selected())
	assert.Equal(t, yesterday, session.Day())
	waitLoaded(t, session)

	_, samples := session.Route()
	assert.Empty(t, samples)
}

func TestFailedFetchKeepsLastGoodState(t *testing.T) {
	backend := newGatedBackend()
	backend.locations[today] = []tracking.LocationSample{
		tracking.NewLocationSample("A", 51.0, -1.0, minute(today, 11, 59)),
	}
	clock := clockwork.NewFakeClockAt(noon)

	session := newTestSession(t, backend, clock, today)
	require.NoError(t, session.Start(context.Background()))
	waitLoaded(t, session)
	assert.NoError(t, session.LastError())

	backend.mutex.Lock()
	backend.err = errors.New("connection refused")
	backend.mutex.Unlock()

	clock.Advance(testConfig().RefreshInterval)
	require.Eventually(t, func() bool {
		return session.LastError() != nil
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, session.LastError(), locationstore.ErrFetchFailed)
	assert.False(t, session.Loading())
	assert.Equal(t, 1, session.OnlineCount())
}

func TestFirstFetchFailureEndsLoading(t *testing.T) {
	backend := newGatedBackend()
	backend.err = errors.New("service unavailable")

	session := newTestSession(t, backend, clockwork.NewFakeClockAt(noon), today)
	require.NoError(t, session.Start(context.Background()))

	waitLoaded(t, session)
	assert.Error(t, session.LastError())
	assert.Len(t, session.Statuses(), 2)
}

func TestRosterOutageDoesNotHoldUpLocations(t *testing.T) {
	backend := newGatedBackend()
	backend.rosterErr = errors.New("roster service unavailable")
	backend.locations[today] = []tracking.LocationSample{
		tracking.NewLocationSample("A", 51.0, -1.0, minute(today, 11, 58)),
	}
	clock := clockwork.NewFakeClockAt(noon)

	session := newTestSession(t, backend, clock, today)
	session.store.RosterRetryTime = 10 * time.Millisecond

	started := time.Now()
	require.NoError(t, session.Start(context.Background()))
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	require.Eventually(t, func() bool {
		return !session.Loading()
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, session.LastError())
	assert.Len(t, session.store.Snapshot().Samples, 1)
	assert.Empty(t, session.Statuses())

	clock.Advance(testConfig().RefreshInterval)
	require.Eventually(t, func() bool { return backend.calls() == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, rosterLoaded(session))

	backend.mutex.Lock()
	backend.rosterErr = nil
	backend.mutex.Unlock()

	require.Eventually(t, func() bool {
		clock.Advance(testConfig().RefreshInterval)
		return len(session.Statuses()) == 2
	}, time.Second, 10*time.Millisecond)

	backend.mutex.Lock()
	assert.GreaterOrEqual(t, backend.rosterCalls, 2)
	backend.mutex.Unlock()
}

func TestTodayStopsRefreshingAfterMidnight(t *testing.T) {
	backend := newGatedBackend()
	clock := clockwork.NewFakeClockAt(minute(today, 23, 59).Add(30 * time.Second))

	session := newTestSession(t, backend, clock, today)
	require.NoError(t, session.Start(context.Background()))
	waitLoaded(t, session)

	clock.Advance(testConfig().RefreshInterval)
	require.Eventually(t, func() bool { return backend.calls() == 2 }, time.Second, 5*time.Millisecond)

	clock.Advance(testConfig().RefreshInterval)
	clock.Advance(testConfig().RefreshInterval)

	assert.Never(t, func() bool { return backend.calls() > 2 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, today, session.Day())
}
