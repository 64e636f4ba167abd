package routes

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gocarina/gocsv"
	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

type routeExportRow struct {
	ResearcherRef string  `csv:"researcher"`
	RecordedAt    string  `csv:"timestamp"`
	Latitude      float64 `csv:"latitude"`
	Longitude     float64 `csv:"longitude"`
	Accuracy      float64 `csv:"accuracy"`
}

func exportRoute(c *fiber.Ctx, repository LocationRepository) error {
	day, err := civil.ParseDate(c.Query("date"))
	if err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Parameter date should be formatted as YYYY-MM-DD",
		})
	}

	researcherRef := c.Query("researcher")
	if researcherRef == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Parameter researcher is required",
		})
	}

	samples, err := repository.LocationsForResearcher(c.UserContext(), researcherRef, day)
	if err != nil {
		log.Error().Err(err).Str("researcher", researcherRef).Msg("Failed to export route")

		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not export route",
		})
	}

	rows, err := routeExportRows(tracking.Route(samples, researcherRef))
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	csvContent, err := gocsv.MarshalString(&rows)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s-%s.csv"`, researcherRef, day))

	return c.SendString(csvContent)
}

func routeExportRows(route []tracking.LocationSample) ([]routeExportRow, error) {
	rows := make([]routeExportRow, 0, len(route))

	for _, sample := range route {
		var row routeExportRow
		if err := copier.Copy(&row, sample); err != nil {
			return nil, err
		}
		row.RecordedAt = sample.Timestamp.UTC().Format(time.RFC3339)

		rows = append(rows, row)
	}

	return rows, nil
}
