// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the caller identity set by the Gateway.
// Every command route requires a user context; the moderator flag is the
// Gateway's role-gate verdict (admins count as moderators there) and is the
// only authorization input this service consults.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID missing on command route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		rolesStr := c.Get("X-User-Roles")
		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		moderator := strings.ToLower(c.Get("X-User-Moderator")) == "true"

		// Attach to ctx for handlers
		c.Locals("user_id", userID)
		c.Locals("user_name", c.Get("X-User-Name"))
		c.Locals("user_roles", roles)
		c.Locals("user_moderator", moderator)

		return c.Next()
	}
}
