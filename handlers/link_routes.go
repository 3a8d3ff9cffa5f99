// handlers/link_routes.go
package handlers

import (
	"link-reward-system/middleware"
	"link-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLinkRoutes(app *fiber.App, linkService *services.LinkService) {
	secured := app.Group("/links", middleware.UserContextMiddleware())

	secured.Post("/", linkService.CreateLink)
	secured.Get("/", linkService.ListLinks)
	secured.Patch("/:id/deactivate", linkService.DeactivateLink)

	// Template propagation is a team-admin action.
	admin := secured.Group("/templates", middleware.RequireRole("team_admin"))
	admin.Post("/propagate", linkService.PropagateTemplates)
}
