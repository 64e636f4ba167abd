package api

import (
	"io"
	"os"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/database"
	"github.com/travigo/fieldtrack/pkg/ingest"
	"github.com/travigo/fieldtrack/pkg/locationdb"
	"github.com/travigo/fieldtrack/pkg/redis_client"
	"github.com/travigo/fieldtrack/pkg/tracking"
	"github.com/travigo/fieldtrack/pkg/util"
	"github.com/urfave/cli/v2"
)

const researchersCacheExpiration = 5 * time.Minute

type researcherRecord struct {
	PrimaryIdentifier string `csv:"id"`
	Name              string `csv:"name"`
	PhotoURL          string `csv:"photo_url"`
	IsActive          bool   `csv:"active"`
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the core web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					repository, err := newRepository()
					if err != nil {
						return err
					}

					queue, err := redis_client.QueueConnection.OpenQueue(ingest.QueueName)
					if err != nil {
						return err
					}

					redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(researchersCacheExpiration))
					researchersCache := cache.New[string](redisStore)

					return SetupServer(c.String("listen"), repository, queue, researchersCache)
				},
			},
			{
				Name:  "import-researchers",
				Usage: "upsert the researcher roster from a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "CSV with id,name,photo_url,active columns",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					file, err := os.Open(c.String("file"))
					if err != nil {
						return err
					}
					defer file.Close()

					researchers, err := ParseResearchers(file)
					if err != nil {
						return err
					}

					repository, err := newRepository()
					if err != nil {
						return err
					}
					if err := repository.UpsertResearchers(c.Context, researchers); err != nil {
						return err
					}

					log.Info().Int("length", len(researchers)).Msg("Imported researchers")

					return nil
				},
			},
		},
	}
}

func newRepository() (*locationdb.Repository, error) {
	location, err := util.LoadLocation(util.GetEnvironmentVariables()["FIELDTRACK_TIMEZONE"])
	if err != nil {
		return nil, err
	}

	return locationdb.NewFromGlobal(location), nil
}

// ParseResearchers reads a roster CSV. Rows without an id are skipped.
func ParseResearchers(reader io.Reader) ([]tracking.Researcher, error) {
	var records []researcherRecord
	if err := gocsv.Unmarshal(reader, &records); err != nil {
		return nil, err
	}

	researchers := []tracking.Researcher{}
	for _, record := range records {
		if record.PrimaryIdentifier == "" {
			continue
		}

		researchers = append(researchers, tracking.Researcher{
			PrimaryIdentifier: record.PrimaryIdentifier,
			Name:              record.Name,
			PhotoURL:          record.PhotoURL,
			IsActive:          record.IsActive,
		})
	}

	return researchers, nil
}
