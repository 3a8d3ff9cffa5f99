// handlers/earnings_routes.go
package handlers

import (
	"link-reward-system/middleware"
	"link-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEarningsRoutes(app *fiber.App, earningsService *services.EarningsService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/earnings", earningsService.GetEarnings)
	secured.Get("/earnings/referrals", earningsService.GetReferralEarnings)

	// Tier configuration is where malformed sets get rejected.
	admin := secured.Group("/teams", middleware.RequireRole("team_admin"))
	admin.Put("/:id/reward-tiers", earningsService.UpdateRewardTiers)
}
