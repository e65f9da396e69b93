package api

import (
	"errors"

	"raceday/internal/account"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) AdminStats(c *fiber.Ctx) error {
	stats, err := h.repo.GetAdminStats(c.Context())
	if err != nil {
		h.logger.Error("Failed to get admin stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve statistics",
		})
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func (h *Handler) ListPendingMarshals(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	marshals, err := h.marshals.ListPendingMarshals(c.Context(), actor)
	if err != nil {
		if errors.Is(err, account.ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden",
			})
		}
		h.logger.Error("Failed to list pending marshals", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve marshals",
		})
	}
	return c.JSON(fiber.Map{"marshals": marshals})
}

type verifyMarshalRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

func (h *Handler) VerifyMarshal(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	marshalID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req verifyMarshalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Action must be approve or reject",
		})
	}

	marshal, err := h.marshals.VerifyMarshal(c.Context(), actor, account.VerifyMarshalParams{
		MarshalID: marshalID,
		Action:    req.Action,
	})
	if err != nil {
		switch {
		case errors.Is(err, account.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden",
			})
		case errors.Is(err, account.ErrMarshalNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Marshal not found",
			})
		case errors.Is(err, account.ErrAlreadyProcessed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Marshal verification already processed",
			})
		case errors.Is(err, account.ErrInvalidAction):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid action",
			})
		}
		h.logger.Error("Failed to verify marshal", "error", err, "marshal_id", marshalID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{"marshal": marshal})
}
