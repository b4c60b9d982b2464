// services/context.go
package services

import "github.com/gofiber/fiber/v2"

// Caller identity as attached by middleware.UserContextMiddleware. The
// moderator flag is computed by the gateway from platform roles; this service
// trusts it and never inspects role objects itself.

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func callerName(c *fiber.Ctx) string {
	name, _ := c.Locals("user_name").(string)
	if name == "" {
		return callerID(c)
	}
	return name
}

func isModerator(c *fiber.Ctx) bool {
	mod, _ := c.Locals("user_moderator").(bool)
	return mod
}

func requireModerator(c *fiber.Ctx) error {
	if !isModerator(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "moderator role required"})
	}
	return c.Next()
}

// RequireModerator gates a route group on the gateway-computed moderator flag.
func RequireModerator() fiber.Handler {
	return requireModerator
}
