package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"raceday/internal/credential"
	"raceday/internal/model"
	"raceday/internal/notifications"
	"raceday/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("registration not found")
	ErrEventNotFound         = errors.New("event not found")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryFull          = errors.New("category is full")
	ErrDuplicateRegistration = errors.New("runner already registered for this category")
	ErrAlreadyProcessed      = errors.New("registration has already been processed")
	ErrInvalidAction         = errors.New("invalid verification action")
	ErrReasonRequired        = errors.New("rejection requires a reason")
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Manager owns the registration lifecycle. A registration is created pending
// and moves exactly once, to approved/verified or rejected/rejected, by a
// verification action.
type Manager struct {
	logger   *slog.Logger
	repo     repository.Repository
	issuer   *credential.Issuer
	notifier *notifications.Manager
}

func NewManager(logger *slog.Logger, repo repository.Repository, issuer *credential.Issuer, notifier *notifications.Manager) *Manager {
	return &Manager{logger: logger, repo: repo, issuer: issuer, notifier: notifier}
}

type RegisterParams struct {
	EventID    uuid.UUID
	CategoryID uuid.UUID
}

// Register creates a pending registration for the actor. Slot limits are
// claimed atomically, so a full category refuses further registrations even
// under concurrent signups.
func (m *Manager) Register(ctx context.Context, actor model.User, params RegisterParams) (model.Participant, error) {
	var participant model.Participant

	if actor.Role != model.RoleRunner {
		return participant, ErrForbidden
	}

	if _, err := m.repo.GetEventByID(ctx, params.EventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return participant, ErrEventNotFound
		}
		return participant, fmt.Errorf("failed to get event: %w", err)
	}

	now := time.Now().UTC()
	participant = model.Participant{
		ID:                 uuid.New(),
		UserID:             actor.ID,
		EventID:            params.EventID,
		CategoryID:         params.CategoryID,
		RegistrationStatus: model.RegistrationPending,
		PaymentStatus:      model.PaymentPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := m.repo.CreateParticipant(ctx, participant); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return model.Participant{}, ErrCategoryNotFound
		case errors.Is(err, repository.ErrCategoryFull):
			return model.Participant{}, ErrCategoryFull
		case errors.Is(err, repository.ErrDuplicateRegistration):
			return model.Participant{}, ErrDuplicateRegistration
		}
		return model.Participant{}, fmt.Errorf("failed to create registration: %w", err)
	}

	m.logger.Info("Registration created", "participant_id", participant.ID, "event_id", params.EventID)
	return participant, nil
}

type VerifyParams struct {
	ParticipantID uuid.UUID
	Action        string
	Reason        string
}

// Verify applies the one-shot verification decision. Admins may verify any
// registration; marshals only registrations in events they organize, and a
// registration outside their authority reads as not found. Approval triggers
// credential issuance, but an issuance failure never unwinds the approval.
func (m *Manager) Verify(ctx context.Context, actor model.User, params VerifyParams) (model.Participant, error) {
	var empty model.Participant

	if params.Action != ActionApprove && params.Action != ActionReject {
		return empty, ErrInvalidAction
	}

	participant, err := m.loadForActor(ctx, actor, params.ParticipantID)
	if err != nil {
		return empty, err
	}

	update := repository.VerifyParticipantParams{
		ID:         participant.ID,
		VerifiedBy: actor.ID,
		VerifiedAt: time.Now().UTC(),
	}
	switch params.Action {
	case ActionApprove:
		update.RegistrationStatus = model.RegistrationApproved
		update.PaymentStatus = model.PaymentVerified
	case ActionReject:
		if params.Reason == "" {
			return empty, ErrReasonRequired
		}
		update.RegistrationStatus = model.RegistrationRejected
		update.PaymentStatus = model.PaymentRejected
		reason := params.Reason
		update.RejectionReason = &reason
	}

	if err := m.repo.VerifyParticipant(ctx, update); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyProcessed):
			return empty, ErrAlreadyProcessed
		case errors.Is(err, repository.ErrParticipantNotFound):
			return empty, ErrNotFound
		}
		return empty, fmt.Errorf("failed to verify registration: %w", err)
	}

	participant, err = m.repo.GetParticipantByID(ctx, participant.ID)
	if err != nil {
		return empty, fmt.Errorf("failed to reload registration: %w", err)
	}

	m.logger.Info("Registration verified",
		"participant_id", participant.ID,
		"action", params.Action,
		"verified_by", actor.ID)

	if params.Action == ActionApprove {
		if _, err := m.issuer.IssueFor(ctx, participant); err != nil {
			// Approval stands; the credential can be issued again later.
			m.logger.Error("Failed to issue credential after approval", "error", err, "participant_id", participant.ID)
		} else if participant, err = m.repo.GetParticipantByID(ctx, participant.ID); err != nil {
			return empty, fmt.Errorf("failed to reload registration: %w", err)
		}
	}

	m.notifyDecision(ctx, participant, params)
	return participant, nil
}

// Get returns one registration, scoped by the actor's authority. Runners only
// see their own registrations.
func (m *Manager) Get(ctx context.Context, actor model.User, participantID uuid.UUID) (model.Participant, error) {
	if actor.Role == model.RoleRunner {
		participant, err := m.repo.GetParticipantByID(ctx, participantID)
		if err != nil {
			if errors.Is(err, repository.ErrParticipantNotFound) {
				return model.Participant{}, ErrNotFound
			}
			return model.Participant{}, fmt.Errorf("failed to get registration: %w", err)
		}
		if participant.UserID != actor.ID {
			return model.Participant{}, ErrNotFound
		}
		return participant, nil
	}
	return m.loadForActor(ctx, actor, participantID)
}

// ListForRunner returns the actor's own registrations.
func (m *Manager) ListForRunner(ctx context.Context, actor model.User) ([]model.Participant, error) {
	return m.repo.ListParticipantsByUser(ctx, actor.ID)
}

// ListForEvent returns all registrations of an event for its organizers.
func (m *Manager) ListForEvent(ctx context.Context, actor model.User, eventID uuid.UUID) ([]model.Participant, error) {
	if actor.Role != model.RoleAdmin {
		organizer, err := m.repo.IsEventOrganizer(ctx, eventID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check event ownership: %w", err)
		}
		if actor.Role != model.RoleMarshal || !organizer {
			return nil, ErrForbidden
		}
	}
	return m.repo.ListParticipantsByEvent(ctx, eventID)
}

func (m *Manager) loadForActor(ctx context.Context, actor model.User, participantID uuid.UUID) (model.Participant, error) {
	var (
		participant model.Participant
		err         error
	)
	switch actor.Role {
	case model.RoleAdmin:
		participant, err = m.repo.GetParticipantByID(ctx, participantID)
	case model.RoleMarshal:
		participant, err = m.repo.GetParticipantForOrganizer(ctx, participantID, actor.ID)
	default:
		return model.Participant{}, ErrForbidden
	}
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return model.Participant{}, ErrNotFound
		}
		return model.Participant{}, fmt.Errorf("failed to get registration: %w", err)
	}
	return participant, nil
}

func (m *Manager) notifyDecision(ctx context.Context, participant model.Participant, params VerifyParams) {
	runner, err := m.repo.GetUserByID(ctx, participant.UserID)
	if err != nil {
		m.logger.Error("Failed to load runner for notification", "error", err, "participant_id", participant.ID)
		return
	}

	notify := notifications.NotifyParams{UserID: runner.ID, Email: runner.Email}
	if params.Action == ActionApprove {
		notify.Title = "Registration approved"
		notify.Message = "Your registration has been approved. Your race credential is ready."
		notify.Type = model.NotificationTypeInfo
	} else {
		notify.Title = "Registration rejected"
		notify.Message = fmt.Sprintf("Your registration was rejected: %s", params.Reason)
		notify.Type = model.NotificationTypeWarning
	}
	m.notifier.Notify(ctx, notify)
}
