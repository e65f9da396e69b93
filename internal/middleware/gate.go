package middleware

import (
	"strings"

	"raceday/internal/model"

	"github.com/gofiber/fiber/v2"
)

const UnauthorizedPath = "/unauthorized"

// roleHomes maps a session role to its dashboard. Unknown roles land on the
// default dashboard.
var roleHomes = map[model.Role]string{
	model.RoleAdmin:   "/admin",
	model.RoleMarshal: "/dashboard",
	model.RoleRunner:  "/runner-dashboard",
}

const defaultHome = "/dashboard"

// rolePrefixes is the static table of path prefixes each role owns. A request
// into another role's territory is redirected to the unauthorized page. Paths
// not listed under any role are allowed for every authenticated role.
var rolePrefixes = map[model.Role][]string{
	model.RoleAdmin:   {"/admin"},
	model.RoleMarshal: {"/dashboard", "/marshal-events", "/profile", "/settings", "/organizations", "/participants", "/qr-scanner"},
	model.RoleRunner:  {"/runner", "/runner-dashboard"},
}

// AccessGate decides allow/redirect for every request before any handler runs.
// It reads the identity placed in locals by the session/token middleware; with
// no identity present the request passes through untouched so the auth layer
// can challenge it.
func AccessGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(LocalUserID) == nil {
			return c.Next()
		}
		role, _ := c.Locals(LocalRole).(model.Role)

		path := NormalizePath(c.Path())

		if path == "/" {
			home, ok := roleHomes[role]
			if !ok {
				home = defaultHome
			}
			return c.Redirect(home, fiber.StatusFound)
		}

		for tableRole, prefixes := range rolePrefixes {
			if role == tableRole {
				continue
			}
			for _, prefix := range prefixes {
				if matchesPrefix(path, prefix) {
					return c.Redirect(UnauthorizedPath, fiber.StatusFound)
				}
			}
		}

		return c.Next()
	}
}

// NormalizePath lowercases the path and strips trailing slashes so prefix
// comparison cannot be bypassed with "/Admin" or "/admin/".
func NormalizePath(path string) string {
	path = strings.ToLower(path)
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return path
}

// matchesPrefix is segment-aware: "/admin" matches "/admin" and "/admin/x"
// but not "/administrator".
func matchesPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
