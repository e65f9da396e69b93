package api

import (
	"github.com/gofiber/fiber/v2"
)

// MarshalDashboard summarizes the actor's events and their pending
// registrations.
func (h *Handler) MarshalDashboard(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	events, err := h.events.ListOrganizerEvents(c.Context(), actor)
	if err != nil {
		h.logger.Error("Failed to list organizer events", "error", err, "user_id", actor.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve events",
		})
	}

	return c.JSON(fiber.Map{
		"user":   actor,
		"events": events,
	})
}

// MarshalEvents lists the events the actor created or staffs.
func (h *Handler) MarshalEvents(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	events, err := h.events.ListOrganizerEvents(c.Context(), actor)
	if err != nil {
		h.logger.Error("Failed to list organizer events", "error", err, "user_id", actor.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve events",
		})
	}

	return c.JSON(fiber.Map{"events": events})
}

// QRScanner returns the scanner page data. Scans themselves go through
// ScanCredential.
func (h *Handler) QRScanner(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"scan_endpoint": "/qr-scanner/verify",
	})
}

// RunnerDashboard lists the actor's registrations and unread notifications.
func (h *Handler) RunnerDashboard(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	registrations, err := h.registrations.ListForRunner(c.Context(), actor)
	if err != nil {
		h.logger.Error("Failed to list registrations", "error", err, "user_id", actor.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve registrations",
		})
	}

	notifications, err := h.notifier.Unread(c.Context(), actor.ID)
	if err != nil {
		h.logger.Error("Failed to list notifications", "error", err, "user_id", actor.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve notifications",
		})
	}

	return c.JSON(fiber.Map{
		"user":          actor,
		"registrations": registrations,
		"notifications": notifications,
	})
}

// AdminDashboard returns the platform statistics plus the marshal queue.
func (h *Handler) AdminDashboard(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	stats, err := h.repo.GetAdminStats(c.Context())
	if err != nil {
		h.logger.Error("Failed to get admin stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve statistics",
		})
	}

	pending, err := h.marshals.ListPendingMarshals(c.Context(), actor)
	if err != nil {
		h.logger.Error("Failed to list pending marshals", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve marshals",
		})
	}

	return c.JSON(fiber.Map{
		"user":             actor,
		"stats":            stats,
		"pending_marshals": pending,
	})
}

// Unauthorized is where the access gate sends a user whose role does not
// match the requested area.
func (h *Handler) Unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "You do not have access to this area",
	})
}
