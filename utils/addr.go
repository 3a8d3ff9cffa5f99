// utils/addr.go
package utils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// ClientIP extracts the original client address, preferring the
// gateway-set forwarding headers over the socket peer. Header values
// alias fasthttp's pooled request buffers, so the result is copied
// out; callers hand it to the click queue, which outlives the handler.
func ClientIP(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		// First hop is the client; the rest are proxies.
		if idx := strings.Index(xff, ","); idx >= 0 {
			return fiberutils.CopyString(strings.TrimSpace(xff[:idx]))
		}
		return fiberutils.CopyString(strings.TrimSpace(xff))
	}
	if rip := c.Get("X-Real-IP"); rip != "" {
		return fiberutils.CopyString(strings.TrimSpace(rip))
	}
	return fiberutils.CopyString(c.IP())
}
