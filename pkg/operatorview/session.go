package operatorview

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/fieldtrack/pkg/locationstore"
	"github.com/travigo/fieldtrack/pkg/mapsync"
	"github.com/travigo/fieldtrack/pkg/scheduler"
	"github.com/travigo/fieldtrack/pkg/tracking"
	"github.com/travigo/fieldtrack/pkg/util"
)

var (
	ErrUnknownResearcher = errors.New("researcher is not on the roster")
	ErrSessionClosed     = errors.New("session closed")
)

// StatusEntry is one row of the operator's researcher list
type StatusEntry struct {
	Researcher tracking.Researcher
	Status     tracking.Status
	Label      string
	Latest     *tracking.LocationSample
	Selected   bool
}

// Session is one operator's live view of a day. All state changes go through
// mutex; fetches run on goroutines owned by the session and their results are
// applied under the same mutex.
type Session struct {
	config     Config
	clock      clockwork.Clock
	location   *time.Location
	store      *locationstore.Store
	controller *mapsync.Controller

	scheduleMutex sync.Mutex
	poller        *scheduler.Poller

	mutex   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	fetches conc.WaitGroup
	started bool
	closed  bool

	roster         []tracking.Researcher
	rosterLoaded   bool
	rosterInFlight bool
	selected     string
	now          time.Time
	inFlight     map[civil.Date]bool
	fetched      bool
	lastError    error

	latestMemo struct {
		valid   bool
		version uint64
		value   map[string]tracking.LocationSample
	}
	statusMemo struct {
		valid   bool
		version uint64
		now     time.Time
		value   map[string]tracking.Status
	}
	routeMemo struct {
		valid    bool
		version  uint64
		selected string
		value    []tracking.LocationSample
	}
}

func NewSession(config Config, clock clockwork.Clock, location *time.Location, store *locationstore.Store) *Session {
	return &Session{
		config:     config,
		clock:      clock,
		location:   location,
		store:      store,
		controller: mapsync.NewController(location),
		inFlight:   map[civil.Date]bool{},
		now:        clock.Now(),
	}
}

// Attach hands the map surface to the session. It is redrawn in full straight away.
func (s *Session) Attach(surface mapsync.Surface) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.controller.Attach(surface)
	s.sync()
}

// Start starts polling and dispatches the first location fetch and roster
// load. Neither is waited for.
func (s *Session) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mutex.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.now = s.clock.Now()
	s.mutex.Unlock()

	s.schedule()
	s.dispatchFetch()
	s.dispatchRoster()

	return nil
}

// dispatchRoster loads the roster in the background until it succeeds once.
// Location polling carries on while the roster backend is down.
func (s *Session) dispatchRoster() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || !s.started || s.rosterLoaded || s.rosterInFlight {
		return
	}
	s.rosterInFlight = true

	ctx := s.ctx
	s.fetches.Go(func() {
		roster, err := s.store.Roster(ctx)
		s.applyRoster(roster, err)
	})
}

func (s *Session) applyRoster(roster []tracking.Researcher, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.rosterInFlight = false

	if err != nil {
		log.Error().Err(err).Msg("Failed to load researcher roster")
		return
	}
	if s.closed {
		return
	}

	s.roster = roster
	s.rosterLoaded = true
	s.statusMemo.valid = false
	s.sync()
}

// schedule replaces the poller with one suited to the displayed day
func (s *Session) schedule() {
	s.scheduleMutex.Lock()
	defer s.scheduleMutex.Unlock()

	if s.poller != nil {
		s.poller.Stop()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}

	tasks := []scheduler.Task{
		{Name: "clock-tick", Interval: s.config.TickInterval, Run: s.tick},
	}

	day := s.store.Day()
	if day == util.DayOf(s.clock.Now(), s.location) {
		tasks = append(tasks, scheduler.Task{
			Name:     "location-refresh",
			Interval: s.config.RefreshInterval,
			Run:      s.refresh,
		})
	}

	s.poller = scheduler.NewPoller(s.clock, tasks...)
	s.poller.Start(s.ctx)

	log.Debug().Str("day", day.String()).Int("tasks", len(tasks)).Msg("Polling scheduled")
}

// refresh only fetches while the displayed day is still today
func (s *Session) refresh(_ context.Context) {
	day := s.store.Day()
	if day != util.DayOf(s.clock.Now(), s.location) {
		log.Debug().Str("day", day.String()).Msg("Displayed day has ended, skipping refresh")
	} else {
		s.dispatchFetch()
	}

	s.dispatchRoster()
}

func (s *Session) tick(_ context.Context) {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}

	s.now = s.clock.Now()
	s.sync()
	s.mutex.Unlock()

	s.dispatchRoster()
}

// dispatchFetch starts an asynchronous fetch of the displayed day unless one
// for that day is already running
func (s *Session) dispatchFetch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || !s.started {
		return
	}

	day := s.store.Day()
	if s.inFlight[day] {
		log.Debug().Str("day", day.String()).Msg("Fetch already in flight")
		return
	}
	s.inFlight[day] = true

	ctx := s.ctx
	s.fetches.Go(func() {
		result := s.store.Fetch(ctx)
		s.applyFetch(day, result)
	})
}

func (s *Session) applyFetch(dispatchedFor civil.Date, result locationstore.FetchResult) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.inFlight, dispatchedFor)

	if s.closed {
		return
	}

	applied, err := s.store.Apply(result)
	if err != nil {
		if result.Day == s.store.Day() {
			s.fetched = true
			s.lastError = err
		}
		log.Error().Err(err).Str("day", result.Day.String()).Msg("Failed to refresh locations")
		return
	}
	if !applied {
		return
	}

	s.fetched = true
	s.lastError = nil
	s.sync()
}

// Select shows the route of a researcher on the roster
func (s *Session) Select(identifier string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	found := false
	for _, researcher := range s.roster {
		if researcher.PrimaryIdentifier == identifier {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownResearcher
	}

	s.selected = identifier
	s.sync()

	return nil
}

func (s *Session) ClearSelection() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.selected = ""
	s.sync()
}

// SetDay switches the displayed day. Polling is restarted for the new day and
// any response still in flight for the old one is discarded.
func (s *Session) SetDay(day civil.Date) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrSessionClosed
	}
	if !s.store.SetDay(day) {
		s.mutex.Unlock()
		return nil
	}

	s.selected = ""
	s.fetched = false
	s.lastError = nil
	s.now = s.clock.Now()
	s.sync()
	started := s.started
	s.mutex.Unlock()

	log.Info().Str("day", day.String()).Msg("Displayed day changed")

	if started {
		s.schedule()
		s.dispatchFetch()
	}

	return nil
}

// Close stops polling and waits for in-flight fetches. The surface is
// released and nothing is drawn after Close returns.
func (s *Session) Close() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mutex.Unlock()

	s.scheduleMutex.Lock()
	if s.poller != nil {
		s.poller.Stop()
	}
	s.scheduleMutex.Unlock()

	if cancel != nil {
		cancel()
	}
	s.fetches.Wait()

	s.mutex.Lock()
	s.controller.Detach()
	s.mutex.Unlock()
}

func (s *Session) Day() civil.Date {
	return s.store.Day()
}

func (s *Session) Selected() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.selected
}

// Loading is true until the first fetch of the displayed day has completed
func (s *Session) Loading() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return !s.fetched && !s.store.Snapshot().Loaded
}

func (s *Session) LastError() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.lastError
}

// Statuses lists every researcher on the roster in roster order
func (s *Session) Statuses() []StatusEntry {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snapshot := s.store.Snapshot()
	latest := s.latest(snapshot)
	statuses := s.statuses(snapshot, latest)

	entries := make([]StatusEntry, 0, len(s.roster))
	for _, researcher := range s.roster {
		entry := StatusEntry{
			Researcher: researcher,
			Status:     statuses[researcher.PrimaryIdentifier],
			Selected:   researcher.PrimaryIdentifier == s.selected,
		}
		if sample, exists := latest[researcher.PrimaryIdentifier]; exists {
			entry.Latest = &sample
		}
		entry.Label = entry.Status.Label(s.location)

		entries = append(entries, entry)
	}

	return entries
}

func (s *Session) OnlineCount() int {
	count := 0
	for _, entry := range s.Statuses() {
		if entry.Status.Online() {
			count++
		}
	}

	return count
}

// Route returns the selected researcher's samples in time order
func (s *Session) Route() (string, []tracking.LocationSample) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.selected, s.route(s.store.Snapshot())
}

func (s *Session) sync() {
	snapshot := s.store.Snapshot()
	latest := s.latest(snapshot)

	s.controller.Sync(mapsync.Input{
		Day:      snapshot.Day,
		Roster:   s.roster,
		Latest:   latest,
		Statuses: s.statuses(snapshot, latest),
		Selected: s.selected,
		Route:    s.route(snapshot),
	})
}

func (s *Session) latest(snapshot locationstore.Snapshot) map[string]tracking.LocationSample {
	if !s.latestMemo.valid || s.latestMemo.version != snapshot.Version {
		s.latestMemo.value = tracking.LatestPositions(snapshot.Samples)
		s.latestMemo.version = snapshot.Version
		s.latestMemo.valid = true
	}

	return s.latestMemo.value
}

func (s *Session) statuses(snapshot locationstore.Snapshot, latest map[string]tracking.LocationSample) map[string]tracking.Status {
	if s.statusMemo.valid && s.statusMemo.version == snapshot.Version && s.statusMemo.now.Equal(s.now) {
		return s.statusMemo.value
	}

	statuses := map[string]tracking.Status{}
	for _, researcher := range s.roster {
		var sample *tracking.LocationSample
		if latestSample, exists := latest[researcher.PrimaryIdentifier]; exists {
			sample = &latestSample
		}

		statuses[researcher.PrimaryIdentifier] = tracking.Classify(sample, s.now, s.config.OfflineThreshold)
	}

	s.statusMemo.value = statuses
	s.statusMemo.version = snapshot.Version
	s.statusMemo.now = s.now
	s.statusMemo.valid = true

	return statuses
}

func (s *Session) route(snapshot locationstore.Snapshot) []tracking.LocationSample {
	if s.selected == "" {
		return nil
	}

	if !s.routeMemo.valid || s.routeMemo.version != snapshot.Version || s.routeMemo.selected != s.selected {
		s.routeMemo.value = tracking.Route(snapshot.Samples, s.selected)
		s.routeMemo.version = snapshot.Version
		s.routeMemo.selected = s.selected
		s.routeMemo.valid = true
	}

	return s.routeMemo.value
}
