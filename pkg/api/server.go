package api

import (
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/fieldtrack/pkg/api/routes"
	"github.com/travigo/fieldtrack/pkg/http_server"
)

func NewApp(repository routes.LocationRepository, queue routes.ReportQueue, researchersCache *cache.Cache[string]) *fiber.App {
	webApp := fiber.New()
	webApp.Use(http_server.NewLogger("web-api"))

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.ResearchersRouter(group.Group("/researchers"), repository, researchersCache)
	routes.LocationsRouter(group.Group("/locations"), repository, queue)

	return webApp
}

func SetupServer(listen string, repository routes.LocationRepository, queue routes.ReportQueue, researchersCache *cache.Cache[string]) error {
	return NewApp(repository, queue, researchersCache).Listen(listen)
}
