package publisher

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/backend"
	"github.com/travigo/fieldtrack/pkg/ingest"
	"github.com/travigo/fieldtrack/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "publisher",
		Usage: "Forwards a researcher's device location to the backend",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "publish locations read from a line sensor feed",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "researcher",
						Usage:    "primary identifier of the researcher carrying the device",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "input",
						Value: "-",
						Usage: "sensor feed file, - reads stdin",
					},
					&cli.BoolFlag{
						Name:  "queue",
						Usage: "publish straight onto the ingest queue instead of the web API",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := GetConfig()
					if err != nil {
						return err
					}

					var input io.Reader = os.Stdin
					if path := c.String("input"); path != "-" {
						file, err := os.Open(path)
						if err != nil {
							return err
						}
						defer file.Close()

						input = file
					}

					var reporter Reporter
					if c.Bool("queue") {
						if err := redis_client.Connect(); err != nil {
							return err
						}

						queue, err := redis_client.QueueConnection.OpenQueue(ingest.QueueName)
						if err != nil {
							return err
						}
						reporter = ingest.QueueReporter{Queue: queue}
					} else {
						reporter = backend.NewClient(config.APIURL)
					}

					clock := clockwork.NewRealClock()
					publisher := NewPublisher(c.String("researcher"), NewLineSensor(input, clock), reporter, clock, config)

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					go func() {
						<-signals // wait for signal
						cancel()

						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					err = publisher.Run(ctx)

					stats := publisher.Stats()
					log.Info().
						Int("forwarded", stats.Forwarded).
						Int("throttled", stats.Throttled).
						Int("failed", stats.Failed).
						Int("transient", stats.TransientErrors).
						Msg("Publisher stopped")

					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				},
			},
		},
	}
}
