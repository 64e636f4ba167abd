package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

const queueConnectionTag = "fieldtrack"

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["FIELDTRACK_REDIS_ADDRESS"] != "" {
		address = env["FIELDTRACK_REDIS_ADDRESS"]
	}

	if env["FIELDTRACK_REDIS_PASSWORD"] != "" {
		password = env["FIELDTRACK_REDIS_PASSWORD"]
	}

	if env["FIELDTRACK_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["FIELDTRACK_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	return ConnectClient(redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	}))
}

// ConnectClient sets up the globals over an existing client, eg. one pointed at miniredis
func ConnectClient(client *redis.Client) error {
	if err := client.Ping(context.Background()).Err(); err != nil {
		return err
	}

	errChan := make(chan error, 10)
	go logQueueErrors(errChan)

	queueConnection, err := rmq.OpenConnectionWithRedisClient(queueConnectionTag, client, errChan)
	if err != nil {
		return err
	}

	Client = client
	QueueConnection = queueConnection

	return nil
}

func logQueueErrors(errChan <-chan error) {
	for err := range errChan {
		log.Warn().Err(err).Msg("Queue error")
	}
}
