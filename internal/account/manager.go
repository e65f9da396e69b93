package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"raceday/internal/authz"
	"raceday/internal/model"
	"raceday/internal/notifications"
	"raceday/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrForbidden        = errors.New("forbidden")
	ErrMarshalNotFound  = errors.New("marshal not found")
	ErrAlreadyProcessed = errors.New("marshal verification already processed")
	ErrInvalidAction    = errors.New("invalid verification action")
)

// Manager owns the admin-side marshal verification workflow.
type Manager struct {
	logger   *slog.Logger
	repo     repository.Repository
	authz    *authz.Service
	notifier *notifications.Manager
}

func NewManager(logger *slog.Logger, repo repository.Repository, authzService *authz.Service, notifier *notifications.Manager) *Manager {
	return &Manager{logger: logger, repo: repo, authz: authzService, notifier: notifier}
}

func (m *Manager) ListPendingMarshals(ctx context.Context, actor model.User) ([]model.User, error) {
	if !m.authz.CanVerifyMarshals(actor) {
		return nil, ErrForbidden
	}
	return m.repo.ListMarshalsByStatus(ctx, model.VerificationPending)
}

type VerifyMarshalParams struct {
	MarshalID uuid.UUID
	Action    string // "approve" or "reject"
}

// VerifyMarshal transitions a marshal account from pending. The transition is
// one-way; repeated attempts fail with ErrAlreadyProcessed.
func (m *Manager) VerifyMarshal(ctx context.Context, actor model.User, params VerifyMarshalParams) (model.User, error) {
	var marshal model.User

	if !m.authz.CanVerifyMarshals(actor) {
		return marshal, ErrForbidden
	}

	var status model.VerificationStatus
	switch params.Action {
	case "approve":
		status = model.VerificationApproved
	case "reject":
		status = model.VerificationRejected
	default:
		return marshal, ErrInvalidAction
	}

	err := m.repo.UpdateMarshalVerification(ctx, params.MarshalID, status, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return marshal, ErrMarshalNotFound
		case errors.Is(err, repository.ErrAlreadyProcessed):
			return marshal, ErrAlreadyProcessed
		}
		return marshal, fmt.Errorf("failed to update marshal verification: %w", err)
	}

	marshal, err = m.repo.GetUserByID(ctx, params.MarshalID)
	if err != nil {
		return marshal, fmt.Errorf("failed to reload marshal: %w", err)
	}

	m.logger.Info("Marshal verification processed",
		"marshal_id", marshal.ID, "status", status, "verified_by", actor.ID)

	title := "Marshal account approved"
	message := "Your marshal account has been approved. You can now create and staff events."
	notifType := model.NotificationTypeInfo
	if status == model.VerificationRejected {
		title = "Marshal account rejected"
		message = "Your marshal account application was rejected."
		notifType = model.NotificationTypeWarning
	}
	m.notifier.Notify(ctx, notifications.NotifyParams{
		UserID:  marshal.ID,
		Email:   marshal.Email,
		Title:   title,
		Message: message,
		Type:    notifType,
	})

	return marshal, nil
}
