package locationstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cenkalti/backoff/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/tracking"
	"github.com/travigo/fieldtrack/pkg/util"
)

var ErrFetchFailed = errors.New("location fetch failed")

const defaultRosterRetryTime = 30 * time.Second

// Backend is the remote source of researchers and their location samples
type Backend interface {
	Researchers(ctx context.Context) ([]tracking.Researcher, error)
	LocationsForDay(ctx context.Context, day civil.Date) ([]tracking.LocationSample, error)
}

// Store holds the sample set of one calendar day and the session roster.
// A fetch result only becomes visible through Apply, which replaces the whole
// sample set at once.
type Store struct {
	backend      Backend
	rosterFilter *vm.Program

	RosterRetryTime time.Duration

	mutex sync.RWMutex

	day          civil.Date
	samples      []tracking.LocationSample
	version      uint64
	loaded       bool
	requestSeq   uint64
	appliedSeq   uint64
	appliedCount int
	discarded    int

	rosterMutex  sync.Mutex
	roster       []tracking.Researcher
	rosterLoaded bool
}

type Snapshot struct {
	Day     civil.Date
	Version uint64
	Loaded  bool
	Samples []tracking.LocationSample
}

type Stats struct {
	Applied   int
	Discarded int
}

// FetchResult is the outcome of a fetch, tagged with the window it was requested for
type FetchResult struct {
	Day     civil.Date
	Samples []tracking.LocationSample
	Err     error

	seq uint64
}

func New(backend Backend, day civil.Date) *Store {
	return &Store{
		backend:         backend,
		day:             day,
		RosterRetryTime: defaultRosterRetryTime,
	}
}

// SetRosterFilter compiles an expr-lang expression evaluated against each
// Researcher, eg. `Name startsWith "North"`. Inactive researchers are always excluded.
func (s *Store) SetRosterFilter(expression string) error {
	if expression == "" {
		s.rosterFilter = nil
		return nil
	}

	program, err := expr.Compile(expression, expr.Env(tracking.Researcher{}), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile roster filter: %w", err)
	}

	s.rosterFilter = program
	return nil
}

func (s *Store) Day() civil.Date {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.day
}

// SetDay switches the window. Samples of the previous day are dropped and any
// fetch still in flight for it will be discarded on Apply.
func (s *Store) SetDay(day civil.Date) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if day == s.day {
		return false
	}

	s.day = day
	s.samples = nil
	s.loaded = false
	s.version++

	return true
}

func (s *Store) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return Snapshot{
		Day:     s.day,
		Version: s.version,
		Loaded:  s.loaded,
		Samples: s.samples,
	}
}

func (s *Store) Stats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return Stats{Applied: s.appliedCount, Discarded: s.discarded}
}

// Fetch retrieves the samples for the current day without changing state
func (s *Store) Fetch(ctx context.Context) FetchResult {
	s.mutex.Lock()
	s.requestSeq++
	result := FetchResult{Day: s.day, seq: s.requestSeq}
	s.mutex.Unlock()

	samples, err := s.backend.LocationsForDay(ctx, result.Day)
	if err != nil {
		result.Err = fmt.Errorf("%w for %s: %w", ErrFetchFailed, result.Day, err)
		return result
	}

	result.Samples = samples
	return result
}

// Apply makes a fetch result visible. It reports whether the sample set was
// replaced; results for another day, or older than an already applied result,
// are discarded. A failed result leaves the previous set untouched.
func (s *Store) Apply(result FetchResult) (bool, error) {
	if result.Err != nil {
		return false, result.Err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if result.Day != s.day || result.seq <= s.appliedSeq {
		s.discarded++
		log.Debug().
			Str("requested", result.Day.String()).
			Str("current", s.day.String()).
			Msg("Discarding stale location response")
		return false, nil
	}

	s.samples = result.Samples
	s.loaded = true
	s.appliedSeq = result.seq
	s.appliedCount++
	s.version++

	return true, nil
}

// Load fetches and applies the samples for day in one call
func (s *Store) Load(ctx context.Context, day civil.Date) error {
	s.SetDay(day)

	_, err := s.Apply(s.Fetch(ctx))
	return err
}

// Roster returns the active researchers. The backend is only asked once per
// Store; failures are retried with exponential backoff until RosterRetryTime.
func (s *Store) Roster(ctx context.Context) ([]tracking.Researcher, error) {
	s.rosterMutex.Lock()
	defer s.rosterMutex.Unlock()

	if s.rosterLoaded {
		return s.roster, nil
	}

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.MaxElapsedTime = s.RosterRetryTime

	var researchers []tracking.Researcher
	err := backoff.Retry(func() error {
		var err error
		researchers, err = s.backend.Researchers(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch researchers")
		}
		return err
	}, backoff.WithContext(retryBackoff, ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch researchers: %w", err)
	}

	roster := util.Filter(researchers, func(researcher tracking.Researcher) bool {
		if !researcher.IsActive {
			return false
		}
		if s.rosterFilter == nil {
			return true
		}

		matched, err := expr.Run(s.rosterFilter, researcher)
		if err != nil {
			log.Error().Err(err).Str("researcher", researcher.PrimaryIdentifier).Msg("Roster filter failed")
			return false
		}
		return matched.(bool)
	})

	s.roster = roster
	s.rosterLoaded = true

	return roster, nil
}
