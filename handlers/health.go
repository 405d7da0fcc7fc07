package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/gradgrid/database"
)

// HandleCheckHealth reports liveness plus database reachability
func HandleCheckHealth(store *database.GORMStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.HealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
