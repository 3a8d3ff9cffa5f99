// handlers/analytics_routes.go
package handlers

import (
	"link-reward-system/middleware"
	"link-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAnalyticsRoutes(app *fiber.App, analyticsService *services.AnalyticsService) {
	secured := app.Group("/analytics", middleware.UserContextMiddleware())

	secured.Get("/summary", analyticsService.GetSummary)
	secured.Get("/events", analyticsService.GetEvents)
	secured.Get("/rollups", analyticsService.GetRollups)
}
