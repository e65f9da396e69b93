package api

import (
	"errors"

	"raceday/internal/credential"
	"raceday/internal/registration"

	"github.com/gofiber/fiber/v2"
)

// GetCredential returns a registration's credential, issuing it on demand when
// approval happened but the earlier issuance attempt failed.
func (h *Handler) GetCredential(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	participantID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	// Scope the lookup to the actor before issuing anything.
	if _, err := h.registrations.Get(c.Context(), actor, participantID); err != nil {
		return h.registrationError(c, err)
	}

	cred, err := h.credentials.Issue(c.Context(), participantID)
	if err != nil {
		return h.credentialError(c, err)
	}
	return c.JSON(fiber.Map{"credential": cred})
}

// GetCredentialImage streams the credential's QR code PNG.
func (h *Handler) GetCredentialImage(c *fiber.Ctx) error {
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
	if participant.QRCodeData == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No credential issued",
		})
	}

	png, err := h.credentials.Image(c.Context(), participantID)
	if err != nil {
		h.logger.Error("Failed to retrieve credential image", "error", err, "participant_id", participantID)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Credential storage unavailable",
		})
	}

	c.Set("Content-Type", "image/png")
	return c.Send(png)
}

type scanRequest struct {
	Payload string `json:"payload" validate:"required"`
}

// ScanCredential validates a scanned payload and returns the registration it
// belongs to. Marshals use this at check-in.
func (h *Handler) ScanCredential(c *fiber.Ctx) error {
	actor, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Payload is required",
		})
	}

	participantID, ok := h.credentials.VerifyPayload(req.Payload)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"valid": false,
			"error": "Invalid credential",
		})
	}

	participant, err := h.registrations.Get(c.Context(), actor, participantID)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"valid": false,
				"error": "Registration not found",
			})
		}
		return h.registrationError(c, err)
	}

	return c.JSON(fiber.Map{
		"valid":        true,
		"registration": participant,
	})
}

func (h *Handler) credentialError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, credential.ErrNotEligible):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Registration is not eligible for a credential",
		})
	case errors.Is(err, credential.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Registration not found",
		})
	}
	h.logger.Error("Credential operation failed", "error", err)
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Credential issuance unavailable",
	})
}
