package handlers

import (
	applog "marketqa/internal/log"
	"marketqa/internal/services"

	"github.com/gofiber/fiber/v2"
)

func requireRole(auth *services.AuthService, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
		}
		u, err := auth.CurrentUser(sid)
		if err != nil || u == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
		}
		if u.Role != role {
			applog.Security(c, "access.denied."+role, map[string]any{"user_id": u.ID, "role": u.Role})
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireModerator gates the review console routes.
func RequireModerator(auth *services.AuthService) fiber.Handler {
	return requireRole(auth, "MODERATOR")
}

// RequireSeller gates the seller routes.
func RequireSeller(auth *services.AuthService) fiber.Handler {
	return requireRole(auth, "SELLER")
}
