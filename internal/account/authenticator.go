package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"raceday/internal/model"
	"raceday/internal/notifications"
	"raceday/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrInvalidRole        = errors.New("invalid role")
)

type Authenticator struct {
	logger      *slog.Logger
	repo        repository.Repository
	rateLimiter *RateLimiter
	notifier    *notifications.Manager
}

func NewAuthenticator(logger *slog.Logger, repo repository.Repository, rateLimiter *RateLimiter, notifier *notifications.Manager) *Authenticator {
	return &Authenticator{logger: logger, repo: repo, rateLimiter: rateLimiter, notifier: notifier}
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// Register creates a new account. Runners are immediately approved; marshals
// enter the admin verification queue. Admin accounts cannot be self-registered.
func (a *Authenticator) Register(ctx context.Context, params RegisterParams) (model.User, error) {
	var user model.User

	if params.Role != model.RoleRunner && params.Role != model.RoleMarshal {
		return user, ErrInvalidRole
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	if err := a.rateLimiter.CheckRegister(ctx, email); err != nil {
		return user, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return user, fmt.Errorf("failed to hash password: %w", err)
	}

	status := model.VerificationApproved
	if params.Role == model.RoleMarshal {
		status = model.VerificationPending
	}

	now := time.Now().UTC()
	user = model.User{
		ID:                 uuid.New(),
		Name:               params.Name,
		Email:              email,
		PasswordHash:       string(hash),
		Role:               params.Role,
		VerificationStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := a.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyInUse) {
			return model.User{}, ErrEmailAlreadyInUse
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("User registered", "user_id", user.ID, "role", user.Role)

	if user.Role == model.RoleMarshal {
		a.notifier.Notify(ctx, notifications.NotifyParams{
			UserID:  user.ID,
			Email:   user.Email,
			Title:   "Marshal account pending review",
			Message: "Your marshal account is awaiting admin verification. You will be notified once it has been reviewed.",
			Type:    model.NotificationTypeInfo,
		})
	}

	return user, nil
}

type LoginParams struct {
	Email    string
	Password string
}

func (a *Authenticator) Login(ctx context.Context, params LoginParams) (model.User, error) {
	var user model.User

	email := strings.TrimSpace(strings.ToLower(params.Email))
	if err := a.rateLimiter.CheckLogin(ctx, email); err != nil {
		return user, err
	}

	user, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Generic error to prevent email enumeration.
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.Password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}

	if err := a.rateLimiter.ResetLogin(ctx, email); err != nil {
		a.logger.Error("Failed to reset login attempts", "error", err, "email", email)
	}

	a.logger.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return user, nil
}
