// handlers/health.go
package handlers

import (
	"link-reward-system/services"
	"link-reward-system/workers"

	"github.com/gofiber/fiber/v2"
)

func SetupHealthRoutes(app *fiber.App, clicks *workers.ClickWorker, geo *services.GeoResolver) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"click_queue": clicks.QueueDepth(),
			"geo_ranges":  geo.Size(),
		})
	})
}
