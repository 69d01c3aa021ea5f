package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/database"
)

// HandleCheckHealth reports liveness plus a database ping.
func HandleCheckHealth(store database.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "ok"
		dbStatus := "ok"
		if err := store.HealthCheck(); err != nil {
			status = "degraded"
			dbStatus = err.Error()
		}
		return c.JSON(fiber.Map{
			"status":   status,
			"database": dbStatus,
		})
	}
}
