package operatorview

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jonboulle/clockwork"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/backend"
	"github.com/travigo/fieldtrack/pkg/locationstore"
	"github.com/travigo/fieldtrack/pkg/mapsync"
	"github.com/travigo/fieldtrack/pkg/tracking"
	"github.com/travigo/fieldtrack/pkg/util"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "operator-view",
		Usage: "Live map of researcher positions for the operations team",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an operator view session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8081",
						Usage: "listen target for the operator controls",
					},
					&cli.StringFlag{
						Name:  "date",
						Usage: "day to display as YYYY-MM-DD, defaults to today",
					},
					&cli.BoolFlag{
						Name:  "headless",
						Usage: "log map updates instead of serving them",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := GetConfig()
					if err != nil {
						return err
					}
					location, err := util.LoadLocation(config.Timezone)
					if err != nil {
						return err
					}

					clock := clockwork.NewRealClock()
					day, err := parseDay(c.String("date"), clock.Now(), location)
					if err != nil {
						return err
					}

					store := locationstore.New(backend.NewClient(config.APIURL), day)
					if err := store.SetRosterFilter(config.RosterFilter); err != nil {
						return err
					}

					session := NewSession(config, clock, location, store)

					geoJSONSurface := mapsync.NewGeoJSONSurface()
					if c.Bool("headless") {
						session.Attach(mapsync.LogSurface{Logger: log.With().Str("component", "map").Logger()})
					} else {
						session.Attach(geoJSONSurface)
					}

					if err := session.Start(context.Background()); err != nil {
						return err
					}
					defer session.Close()

					log.Info().
						Str("day", day.String()).
						Str("api", config.APIURL).
						Dur("refresh", config.RefreshInterval).
						Msg("Operator view started")

					if !c.Bool("headless") {
						go func() {
							if err := SetupServer(c.String("listen"), session, geoJSONSurface); err != nil {
								log.Error().Err(err).Msg("Operator view server stopped")
							}
						}()
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					return nil
				},
			},
			{
				Name:  "inspect",
				Usage: "fetch one day once and print the derived statuses",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "day to inspect as YYYY-MM-DD, defaults to today",
					},
					&cli.StringFlag{
						Name:  "researcher",
						Usage: "also print the route of this researcher",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := GetConfig()
					if err != nil {
						return err
					}
					location, err := util.LoadLocation(config.Timezone)
					if err != nil {
						return err
					}

					now := time.Now()
					day, err := parseDay(c.String("date"), now, location)
					if err != nil {
						return err
					}

					store := locationstore.New(backend.NewClient(config.APIURL), day)
					if err := store.SetRosterFilter(config.RosterFilter); err != nil {
						return err
					}

					roster, err := store.Roster(c.Context)
					if err != nil {
						return err
					}
					if err := store.Load(c.Context, day); err != nil {
						return err
					}

					samples := store.Snapshot().Samples
					latest := tracking.LatestPositions(samples)

					for _, researcher := range roster {
						var sample *tracking.LocationSample
						if latestSample, exists := latest[researcher.PrimaryIdentifier]; exists {
							sample = &latestSample
						}

						status := tracking.Classify(sample, now, config.OfflineThreshold)
						fmt.Printf("%-20s %-30s %s\n", researcher.PrimaryIdentifier, researcher.Name, status.Label(location))
					}

					if researcherRef := c.String("researcher"); researcherRef != "" {
						route := tracking.Route(samples, researcherRef)
						pretty.Println(route)
						fmt.Printf("%d samples, %.0fm\n", len(route), tracking.RouteDistance(route))
					}

					return nil
				},
			},
		},
	}
}

func parseDay(value string, now time.Time, location *time.Location) (civil.Date, error) {
	if value == "" {
		return util.DayOf(now, location), nil
	}

	day, err := civil.ParseDate(value)
	if err != nil {
		return civil.Date{}, fmt.Errorf("date must be formatted as YYYY-MM-DD: %w", err)
	}

	return day, nil
}
