// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RoleOrganizer is required for payment verification and event management.
const RoleOrganizer = "organizer"

// UserContextMiddleware extracts user identity and roles set by the
// Gateway from the X-User-ID / X-User-Roles headers and attaches them to
// the request context.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		return c.Next()
	}
}

// RequireOrganizer guards organizer-only actions (payment verification,
// event management, manual check-in). Must run after
// UserContextMiddleware.
func RequireOrganizer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == RoleOrganizer || r == "admin" {
				return c.Next()
			}
		}
		log.Printf("🚫 [USER_CTX] user %v lacks organizer role for %s", c.Locals("user_id"), c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "organizer role required",
		})
	}
}
