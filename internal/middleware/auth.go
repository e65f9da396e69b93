package middleware

import (
	"log/slog"
	"strings"

	"raceday/internal/model"
	"raceday/internal/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// SessionAuth resolves the cookie session and, when one exists, places the
// user's identity in locals. It never rejects; challenging unauthenticated
// access is the job of RequireAuthenticated on protected groups.
func SessionAuth(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			slog.Error("Failed to get session", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Session error",
			})
		}

		if raw, ok := sess.Get("user_id").(string); ok {
			if userID, err := uuid.Parse(raw); err == nil {
				c.Locals(LocalUserID, userID)
				if role, ok := sess.Get("role").(string); ok {
					c.Locals(LocalRole, model.Role(role))
				}
			}
		}

		return c.Next()
	}
}

// TokenAuth accepts a Bearer session token for API clients. An absent header
// passes through; a malformed or invalid one is rejected.
func TokenAuth(issuer *token.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(LocalUserID) != nil {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header",
			})
		}

		userID, role, err := issuer.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalRole, role)
		return c.Next()
	}
}

// RequireAuthenticated challenges requests that carry no identity.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(LocalUserID) == nil {
			if c.Accepts("json", "html") == "html" {
				return c.Redirect("/login", fiber.StatusFound)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

// RequireRoles rejects authenticated requests whose role is not in the allow
// list.
func RequireRoles(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalRole).(model.Role)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}
}

// UserID returns the authenticated user's id from locals.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	userID, ok := c.Locals(LocalUserID).(uuid.UUID)
	return userID, ok
}

// Role returns the authenticated user's role from locals.
func Role(c *fiber.Ctx) model.Role {
	role, _ := c.Locals(LocalRole).(model.Role)
	return role
}
