package api

import (
	"log/slog"

	"raceday/internal/account"
	"raceday/internal/credential"
	"raceday/internal/event"
	"raceday/internal/middleware"
	"raceday/internal/model"
	"raceday/internal/notifications"
	"raceday/internal/payment"
	"raceday/internal/registration"
	"raceday/internal/repository"
	"raceday/internal/token"
	"raceday/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

type Handler struct {
	logger        *slog.Logger
	store         *session.Store
	repo          repository.Repository
	validator     *validator.Validator
	tokens        *token.Issuer
	accounts      *account.Authenticator
	marshals      *account.Manager
	events        *event.Manager
	registrations *registration.Manager
	credentials   *credential.Issuer
	payments      *payment.Client
	notifier      *notifications.Manager
}

type HandlerParams struct {
	Logger        *slog.Logger
	Store         *session.Store
	Repo          repository.Repository
	Validator     *validator.Validator
	Tokens        *token.Issuer
	Accounts      *account.Authenticator
	Marshals      *account.Manager
	Events        *event.Manager
	Registrations *registration.Manager
	Credentials   *credential.Issuer
	Payments      *payment.Client
	Notifier      *notifications.Manager
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		logger:        params.Logger,
		store:         params.Store,
		repo:          params.Repo,
		validator:     params.Validator,
		tokens:        params.Tokens,
		accounts:      params.Accounts,
		marshals:      params.Marshals,
		events:        params.Events,
		registrations: params.Registrations,
		credentials:   params.Credentials,
		payments:      params.Payments,
		notifier:      params.Notifier,
	}
}

// currentUser loads the authenticated user behind the request. The session
// only carries id and role; handlers that need verification status or email
// resolve the full row here.
func (h *Handler) currentUser(c *fiber.Ctx) (model.User, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return model.User{}, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	user, err := h.repo.GetUserByID(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load authenticated user", "error", err, "user_id", userID)
		return model.User{}, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	return user, nil
}

func parseIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}
