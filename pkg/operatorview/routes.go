package operatorview

import (
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/fieldtrack/pkg/http_server"
	"github.com/travigo/fieldtrack/pkg/mapsync"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

type researcherEntry struct {
	PrimaryIdentifier string
	Name              string
	PhotoURL          string
	Status            tracking.StatusType
	Label             string
	LastSeen          *time.Time `json:",omitempty"`
	Selected          bool
}

func SetupServer(listen string, session *Session, surface *mapsync.GeoJSONSurface) error {
	webApp := fiber.New()
	webApp.Use(http_server.NewLogger("operator-view"))

	ViewRouter(webApp.Group("/view"), session, surface)

	return webApp.Listen(listen)
}

func ViewRouter(router fiber.Router, session *Session, surface *mapsync.GeoJSONSurface) {
	router.Get("/researchers", func(c *fiber.Ctx) error {
		return listResearchers(c, session)
	})
	router.Get("/map", func(c *fiber.Ctx) error {
		return c.JSON(surface.FeatureCollection())
	})
	router.Get("/route", func(c *fiber.Ctx) error {
		return getRoute(c, session)
	})
	router.Put("/selection/:identifier", func(c *fiber.Ctx) error {
		return putSelection(c, session)
	})
	router.Delete("/selection", func(c *fiber.Ctx) error {
		session.ClearSelection()
		return c.SendStatus(fiber.StatusNoContent)
	})
	router.Put("/day/:date", func(c *fiber.Ctx) error {
		return putDay(c, session)
	})
}

func listResearchers(c *fiber.Ctx, session *Session) error {
	entries := session.Statuses()

	researchers := make([]researcherEntry, 0, len(entries))
	online := 0
	for _, entry := range entries {
		researcher := researcherEntry{
			PrimaryIdentifier: entry.Researcher.PrimaryIdentifier,
			Name:              entry.Researcher.Name,
			PhotoURL:          entry.Researcher.PhotoURL,
			Status:            entry.Status.Type,
			Label:             entry.Label,
			Selected:          entry.Selected,
		}
		if entry.Latest != nil {
			lastSeen := entry.Latest.Timestamp
			researcher.LastSeen = &lastSeen
		}
		if entry.Status.Online() {
			online++
		}

		researchers = append(researchers, researcher)
	}

	response := fiber.Map{
		"day":         session.Day().String(),
		"loading":     session.Loading(),
		"onlinecount": online,
		"researchers": researchers,
	}
	if err := session.LastError(); err != nil {
		response["error"] = err.Error()
	}

	return c.JSON(response)
}

func getRoute(c *fiber.Ctx, session *Session) error {
	selected, route := session.Route()
	if selected == "" {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No researcher is selected",
		})
	}

	return c.JSON(fiber.Map{
		"researcher": selected,
		"distance":   tracking.RouteDistance(route),
		"samples":    route,
	})
}

func putSelection(c *fiber.Ctx, session *Session) error {
	identifier := c.Params("identifier")

	err := session.Select(identifier)
	if errors.Is(err, ErrUnknownResearcher) {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find Researcher matching identifier",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func putDay(c *fiber.Ctx, session *Session) error {
	day, err := civil.ParseDate(c.Params("date"))
	if err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Date must be formatted as YYYY-MM-DD",
		})
	}

	if err := session.SetDay(day); err != nil {
		c.SendStatus(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
