package api

import (
	"errors"
	"time"

	"raceday/internal/event"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type eventRequest struct {
	Name     string    `json:"name" validate:"required,min=2,max=200"`
	Location string    `json:"location" validate:"max=200"`
	Date     time.Time `json:"date" validate:"required"`
}

func (h *Handler) CreateEvent(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Validation failed",
		})
	}

	created, err := h.events.CreateEvent(c.Context(), actor, event.CreateEventParams{
		Name:     req.Name,
		Location: req.Location,
		Date:     req.Date,
	})
	if err != nil {
		return h.eventError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"event": created})
}

func (h *Handler) ListEvents(c *fiber.Ctx) error {
	events, err := h.events.ListEvents(c.Context())
	if err != nil {
		h.logger.Error("Failed to list events", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve events",
		})
	}
	return c.JSON(fiber.Map{"events": events})
}

func (h *Handler) GetEvent(c *fiber.Ctx) error {
	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	found, err := h.events.GetEvent(c.Context(), eventID)
	if err != nil {
		return h.eventError(c, err)
	}

	categories, err := h.events.ListCategories(c.Context(), eventID)
	if err != nil {
		h.logger.Error("Failed to list event categories", "error", err, "event_id", eventID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve categories",
		})
	}

	return c.JSON(fiber.Map{
		"event":      found,
		"categories": categories,
	})
}

func (h *Handler) UpdateEvent(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Validation failed",
		})
	}

	updated, err := h.events.UpdateEvent(c.Context(), actor, eventID, event.UpdateEventParams{
		Name:     req.Name,
		Location: req.Location,
		Date:     req.Date,
	})
	if err != nil {
		return h.eventError(c, err)
	}
	return c.JSON(fiber.Map{"event": updated})
}

func (h *Handler) DeleteEvent(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.events.DeleteEvent(c.Context(), actor, eventID); err != nil {
		return h.eventError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

type addStaffRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

func (h *Handler) AddEventStaff(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req addStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Validation failed",
		})
	}
	staffID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user_id",
		})
	}

	if err := h.events.AddStaff(c.Context(), actor, eventID, staffID); err != nil {
		return h.eventError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
}

func (h *Handler) RemoveEventStaff(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	staffID, err := parseIDParam(c, "userID")
	if err != nil {
		return err
	}

	if err := h.events.RemoveStaff(c.Context(), actor, eventID, staffID); err != nil {
		return h.eventError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) ListEventStaff(c *fiber.Ctx) error {
	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	staff, err := h.events.ListStaff(c.Context(), eventID)
	if err != nil {
		h.logger.Error("Failed to list event staff", "error", err, "event_id", eventID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve staff",
		})
	}
	return c.JSON(fiber.Map{"staff": staff})
}

type categoryRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=100"`
	SlotLimit  *int   `json:"slot_limit" validate:"omitempty,min=1"`
	PriceCents *int64 `json:"price_cents" validate:"omitempty,min=0"`
}

func (h *Handler) CreateCategory(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Validation failed",
		})
	}

	category, err := h.events.CreateCategory(c.Context(), actor, eventID, event.CreateCategoryParams{
		Name:       req.Name,
		SlotLimit:  req.SlotLimit,
		PriceCents: req.PriceCents,
	})
	if err != nil {
		return h.eventError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"category": category})
}

func (h *Handler) UnlinkCategory(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	eventID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	categoryID, err := parseIDParam(c, "categoryID")
	if err != nil {
		return err
	}

	if err := h.events.UnlinkCategory(c.Context(), actor, eventID, categoryID); err != nil {
		return h.eventError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) DeleteCategory(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	categoryID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.events.DeleteCategory(c.Context(), actor, categoryID); err != nil {
		return h.eventError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) eventError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, event.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	case errors.Is(err, event.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Event not found",
		})
	case errors.Is(err, event.ErrCategoryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Category not found",
		})
	case errors.Is(err, event.ErrCategoryInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Category has participants and cannot be deleted",
		})
	case errors.Is(err, event.ErrStaffNotMarshal):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Staff members must be approved marshals",
		})
	}
	h.logger.Error("Event operation failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
