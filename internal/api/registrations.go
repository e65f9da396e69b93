package api

import (
	"errors"

	"raceday/internal/payment"
	"raceday/internal/registration"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type registerForEventRequest struct {
	EventID    string `json:"event_id" validate:"required,uuid"`
	CategoryID string `json:"category_id" validate:"required,uuid"`
}

func (h *Handler) CreateRegistration(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req registerForEventRequest
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
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid event_id",
		})
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid category_id",
		})
	}

	participant, err := h.registrations.Register(c.Context(), actor, registration.RegisterParams{
		EventID:    eventID,
		CategoryID: categoryID,
	})
	if err != nil {
		return h.registrationError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"registration": participant})
}

func (h *Handler) ListMyRegistrations(c *fiber.Ctx) error {
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
	return c.JSON(fiber.Map{"registrations": registrations})
}

func (h *Handler) GetRegistration(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	participantID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	participant, err := h.registrations.Get(c.Context(), actor, participantID)
	if err != nil {
		return h.registrationError(c, err)
	}
	return c.JSON(fiber.Map{"registration": participant})
}

func (h *Handler) ListEventRegistrations(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	eventID, err := parseIDParam(c, "eventID")
	if err != nil {
		return err
	}

	participants, err := h.registrations.ListForEvent(c.Context(), actor, eventID)
	if err != nil {
		return h.registrationError(c, err)
	}
	return c.JSON(fiber.Map{"registrations": participants})
}

type verifyRegistrationRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) VerifyRegistration(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	participantID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req verifyRegistrationRequest
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

	participant, err := h.registrations.Verify(c.Context(), actor, registration.VerifyParams{
		ParticipantID: participantID,
		Action:        req.Action,
		Reason:        req.Reason,
	})
	if err != nil {
		return h.registrationError(c, err)
	}
	return c.JSON(fiber.Map{"registration": participant})
}

type checkoutRequest struct {
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

// CreateCheckout opens a Stripe checkout session for a pending registration's
// entry fee.
func (h *Handler) CreateCheckout(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	participantID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req checkoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Validation failed",
		})
	}

	participant, err := h.registrations.Get(c.Context(), actor, participantID)
	if err != nil {
		return h.registrationError(c, err)
	}

	raceEvent, err := h.events.GetEvent(c.Context(), participant.EventID)
	if err != nil {
		return h.eventError(c, err)
	}
	category, err := h.repo.GetCategoryByID(c.Context(), participant.CategoryID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Category not found",
		})
	}

	checkoutURL, err := h.payments.CreateCheckoutSession(c.Context(), payment.CheckoutParams{
		Participant: participant,
		Event:       raceEvent,
		Category:    category,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrDisabled):
			return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
				"error": "Payments are not configured",
			})
		case errors.Is(err, payment.ErrFree):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Category has no entry fee",
			})
		}
		h.logger.Error("Failed to create checkout session", "error", err, "participant_id", participantID)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Payment provider unavailable",
		})
	}

	return c.JSON(fiber.Map{"checkout_url": checkoutURL})
}

func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	unread, err := h.notifier.Unread(c.Context(), actor.ID)
	if err != nil {
		h.logger.Error("Failed to list notifications", "error", err, "user_id", actor.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve notifications",
		})
	}
	return c.JSON(fiber.Map{"notifications": unread})
}

func (h *Handler) registrationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, registration.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	case errors.Is(err, registration.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Registration not found",
		})
	case errors.Is(err, registration.ErrEventNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Event not found",
		})
	case errors.Is(err, registration.ErrCategoryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Category not found",
		})
	case errors.Is(err, registration.ErrCategoryFull):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Category is full",
		})
	case errors.Is(err, registration.ErrDuplicateRegistration):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Already registered for this category",
		})
	case errors.Is(err, registration.ErrAlreadyProcessed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Registration has already been processed",
		})
	case errors.Is(err, registration.ErrInvalidAction):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid action",
		})
	case errors.Is(err, registration.ErrReasonRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Rejection requires a reason",
		})
	}
	h.logger.Error("Registration operation failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
