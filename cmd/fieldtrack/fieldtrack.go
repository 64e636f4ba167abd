package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/api"
	"github.com/travigo/fieldtrack/pkg/ingest"
	"github.com/travigo/fieldtrack/pkg/operatorview"
	"github.com/travigo/fieldtrack/pkg/publisher"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("FIELDTRACK_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("FIELDTRACK_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "fieldtrack",
		Description: "Live location tracking for field researchers - runs all the services",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			ingest.RegisterCLI(),
			operatorview.RegisterCLI(),
			publisher.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
