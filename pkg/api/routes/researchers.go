package routes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

const researchersCacheKey = "researchers"
const researchersCacheExpiration = 5 * time.Minute

func ResearchersRouter(router fiber.Router, repository LocationRepository, researchersCache *cache.Cache[string]) {
	router.Get("/", func(c *fiber.Ctx) error {
		return listResearchers(c, repository, researchersCache)
	})
}

func listResearchers(c *fiber.Ctx, repository LocationRepository, researchersCache *cache.Cache[string]) error {
	researchers, err := cachedResearchers(c.UserContext(), repository, researchersCache)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list researchers")

		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not list researchers",
		})
	}

	groups := []string{"basic"}
	if c.QueryBool("detailed", false) {
		groups = append(groups, "detailed")
	}

	researchersReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, researchers)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce researchers",
		})
	}

	return c.JSON(researchersReduced)
}

func cachedResearchers(ctx context.Context, repository LocationRepository, researchersCache *cache.Cache[string]) ([]tracking.Researcher, error) {
	researchers := []tracking.Researcher{}

	if researchersCache != nil {
		cached, err := researchersCache.Get(ctx, researchersCacheKey)
		if err == nil && cached != "" {
			if err := json.Unmarshal([]byte(cached), &researchers); err == nil {
				return researchers, nil
			}
		}
	}

	researchers, err := repository.Researchers(ctx)
	if err != nil {
		return nil, err
	}

	if researchersCache != nil {
		researchersJSON, _ := json.Marshal(researchers)
		if err := researchersCache.Set(ctx, researchersCacheKey, string(researchersJSON), store.WithExpiration(researchersCacheExpiration)); err != nil {
			log.Warn().Err(err).Msg("Failed to cache researchers")
		}
	}

	return researchers, nil
}
