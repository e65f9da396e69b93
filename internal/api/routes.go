package api

import (
	"raceday/internal/middleware"
	"raceday/internal/model"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes attaches every endpoint to the app. Role gating happens twice:
// the access gate middleware covers whole path prefixes, and RequireRoles pins
// each protected group.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)

	app.Post("/register", h.Register)
	app.Post("/login", h.Login)
	app.Post("/logout", middleware.RequireAuthenticated(), h.Logout)
	app.Get("/unauthorized", h.Unauthorized)

	// Event browsing is open; event management is for admins and marshals.
	events := app.Group("/events")
	events.Get("/", h.ListEvents)
	events.Get("/:id", h.GetEvent)
	events.Get("/:id/staff", h.ListEventStaff)

	manage := events.Group("", middleware.RequireAuthenticated(), middleware.RequireRoles(model.RoleAdmin, model.RoleMarshal))
	manage.Post("/", h.CreateEvent)
	manage.Put("/:id", h.UpdateEvent)
	manage.Delete("/:id", h.DeleteEvent)
	manage.Post("/:id/staff", h.AddEventStaff)
	manage.Delete("/:id/staff/:userID", h.RemoveEventStaff)
	manage.Post("/:id/categories", h.CreateCategory)
	manage.Delete("/:id/categories/:categoryID", h.UnlinkCategory)

	app.Delete("/categories/:id",
		middleware.RequireAuthenticated(),
		middleware.RequireRoles(model.RoleAdmin, model.RoleMarshal),
		h.DeleteCategory)

	app.Get("/dashboard",
		middleware.RequireAuthenticated(),
		middleware.RequireRoles(model.RoleMarshal),
		h.MarshalDashboard)
	app.Get("/marshal-events",
		middleware.RequireAuthenticated(),
		middleware.RequireRoles(model.RoleMarshal),
		h.MarshalEvents)
	app.Get("/runner-dashboard",
		middleware.RequireAuthenticated(),
		middleware.RequireRoles(model.RoleRunner),
		h.RunnerDashboard)

	runner := app.Group("/runner", middleware.RequireAuthenticated(), middleware.RequireRoles(model.RoleRunner))
	runner.Post("/registrations", h.CreateRegistration)
	runner.Get("/registrations", h.ListMyRegistrations)
	runner.Get("/registrations/:id", h.GetRegistration)
	runner.Post("/registrations/:id/checkout", h.CreateCheckout)
	runner.Get("/registrations/:id/credential", h.GetCredential)
	runner.Get("/registrations/:id/credential.png", h.GetCredentialImage)
	runner.Get("/notifications", h.ListNotifications)

	participants := app.Group("/participants", middleware.RequireAuthenticated(), middleware.RequireRoles(model.RoleMarshal))
	participants.Get("/events/:eventID", h.ListEventRegistrations)
	participants.Get("/:id", h.GetRegistration)
	participants.Post("/:id/verify", h.VerifyRegistration)
	participants.Get("/:id/credential", h.GetCredential)

	app.Get("/qr-scanner",
		middleware.RequireAuthenticated(),
		middleware.RequireRoles(model.RoleMarshal),
		h.QRScanner)
	app.Post("/qr-scanner/verify",
		middleware.RequireAuthenticated(),
		middleware.RequireRoles(model.RoleMarshal),
		h.ScanCredential)

	admin := app.Group("/admin", middleware.RequireAuthenticated(), middleware.RequireRoles(model.RoleAdmin))
	admin.Get("/", h.AdminDashboard)
	admin.Get("/stats", h.AdminStats)
	admin.Get("/marshals", h.ListPendingMarshals)
	admin.Post("/marshals/:id/verify", h.VerifyMarshal)
	admin.Get("/events/:eventID/participants", h.ListEventRegistrations)
	admin.Get("/participants/:id", h.GetRegistration)
	admin.Post("/participants/:id/verify", h.VerifyRegistration)
	admin.Get("/participants/:id/credential", h.GetCredential)
}
