package routes

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

var reportValidator = validator.New()

type locationReport struct {
	ResearcherRef string    `validate:"required"`
	Latitude      float64   `validate:"gte=-90,lte=90"`
	Longitude     float64   `validate:"gte=-180,lte=180"`
	Accuracy      float64   `validate:"gte=0"`
	Timestamp     time.Time `validate:"required"`
}

func LocationsRouter(router fiber.Router, repository LocationRepository, queue ReportQueue) {
	router.Get("/", func(c *fiber.Ctx) error {
		return listLocations(c, repository)
	})
	router.Post("/", func(c *fiber.Ctx) error {
		return reportLocation(c, queue)
	})
	router.Get("/export.csv", func(c *fiber.Ctx) error {
		return exportRoute(c, repository)
	})
}

func listLocations(c *fiber.Ctx, repository LocationRepository) error {
	day, err := civil.ParseDate(c.Query("date"))
	if err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Parameter date should be formatted as YYYY-MM-DD",
		})
	}

	samples, err := repository.LocationsForDay(c.UserContext(), day)
	if err != nil {
		log.Error().Err(err).Str("day", day.String()).Msg("Failed to list locations")

		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not list locations",
		})
	}

	groups := []string{"basic"}
	if c.QueryBool("detailed", false) {
		groups = append(groups, "detailed")
	}

	samplesReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, samples)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce locations",
		})
	}

	return c.JSON(samplesReduced)
}

// reportLocation accepts either a LocationSample document or a flat
// latitude/longitude report and queues it for ingest
func reportLocation(c *fiber.Ctx, queue ReportQueue) error {
	var sample tracking.LocationSample
	if err := json.Unmarshal(c.Body(), &sample); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Body should be a JSON location report",
		})
	}

	if len(sample.Location.Coordinates) == 0 {
		var report locationReport
		if err := json.Unmarshal(c.Body(), &report); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Body should be a JSON location report",
			})
		}

		sample = tracking.NewLocationSample(report.ResearcherRef, report.Latitude, report.Longitude, report.Timestamp)
		sample.Accuracy = report.Accuracy
	}

	report := locationReport{
		ResearcherRef: sample.ResearcherRef,
		Latitude:      sample.Latitude(),
		Longitude:     sample.Longitude(),
		Accuracy:      sample.Accuracy,
		Timestamp:     sample.Timestamp,
	}
	if err := reportValidator.Struct(report); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := sample.Validate(); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		log.Error().Err(err).Str("researcher", sample.ResearcherRef).Msg("Failed to encode location report")

		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not encode location report",
		})
	}

	if err := queue.Publish(string(payload)); err != nil {
		log.Error().Err(err).Str("researcher", sample.ResearcherRef).Msg("Failed to queue location report")

		c.SendStatus(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{
			"error": "Could not queue location report",
		})
	}

	return c.SendStatus(fiber.StatusAccepted)
}
