// handlers/redirect.go
package handlers

import (
	"errors"
	"log"
	"time"

	"link-reward-system/services"
	"link-reward-system/utils"
	"link-reward-system/workers"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

// SetupRedirectRoutes registers the public redirect path. It sits
// outside the user-context group: clicking a link requires no user
// identity, only gateway auth.
func SetupRedirectRoutes(app *fiber.App, linkService *services.LinkService, clicks *workers.ClickWorker) {
	app.Get("/r/:code", redirectHandler(linkService, clicks))
}

// redirectHandler resolves the code and answers immediately; click
// recording is enqueued and never awaited, so geo and store latency
// cannot show up in the redirect.
func redirectHandler(linkService *services.LinkService, clicks *workers.ClickWorker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")

		link, err := linkService.Resolve(c.Context(), code)
		if err != nil {
			if errors.Is(err, services.ErrLinkNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
			}
			log.Printf("DB Error resolving code %s: %v", code, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Resolution failed"})
		}

		// The job outlives this handler, and fiber's header strings
		// alias pooled request buffers. Copy every captured value.
		clicks.Enqueue(workers.ClickJob{
			EventID:     uuid.NewString(),
			ShortLinkID: link.ID,
			Code:        link.Code,
			TeamID:      link.TeamID,
			LinkUserID:  link.UserID,
			IPAddress:   utils.ClientIP(c),
			UserAgent:   fiberutils.CopyString(c.Get("User-Agent")),
			Referrer:    fiberutils.CopyString(c.Get("Referer")),
			ClickedAt:   time.Now().UTC(),
		})

		return c.Redirect(link.OriginalURL, fiber.StatusFound)
	}
}
