package ingest

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/travigo/fieldtrack/pkg/consumer"
	"github.com/travigo/fieldtrack/pkg/database"
	"github.com/travigo/fieldtrack/pkg/elastic_client"
	"github.com/travigo/fieldtrack/pkg/locationdb"
	"github.com/travigo/fieldtrack/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

const numConsumers = 5
const batchSize = 200

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Persists queued location reports",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the location report consumers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "stats-listen",
						Value: ":3333",
						Usage: "listen target for the queue stats server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					repository := locationdb.NewFromGlobal(time.UTC)

					redisConsumer := &consumer.RedisConsumer{
						QueueName:       QueueName,
						NumberConsumers: numConsumers,
						BatchSize:       batchSize,
						Timeout:         2 * time.Second,
						Consumer:        NewBatchConsumer(0, repository, elastic_client.IndexRequest),
						Requeue:         true,
						Connection:      redis_client.QueueConnection,
						StatsListen:     c.String("stats-listen"),
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish
					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
			{
				Name:  "cleaner",
				Usage: "run the queue cleaner for the location queue",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					go StartCleaner(ctx, redis_client.QueueConnection)

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal

					return nil
				},
			},
		},
	}
}
