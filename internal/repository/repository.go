package repository

import (
	"context"
	"errors"
	"time"

	"raceday/internal/model"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailAlreadyInUse     = errors.New("email already in use")
	ErrEventNotFound         = errors.New("event not found")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryInUse         = errors.New("category has participants")
	ErrCategoryFull          = errors.New("category has no free slots")
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrDuplicateRegistration = errors.New("participant already registered for this event and category")
	ErrAlreadyProcessed      = errors.New("record already processed")
	ErrCredentialExists      = errors.New("credential already issued")
)

// VerifyParticipantParams carries the single combined transition of the
// registration and payment status fields. Both are always written together.
type VerifyParticipantParams struct {
	ID                 uuid.UUID
	RegistrationStatus model.RegistrationStatus
	PaymentStatus      model.PaymentStatus
	RejectionReason    *string
	VerifiedBy         uuid.UUID
	VerifiedAt         time.Time
}

type Repository interface {
	Migrate() error
	HealthCheck(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, user model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListMarshalsByStatus(ctx context.Context, status model.VerificationStatus) ([]model.User, error)
	// UpdateMarshalVerification transitions a marshal's verification status
	// from pending. Returns ErrAlreadyProcessed if the status is no longer
	// pending, ErrUserNotFound if the user does not exist or is not a marshal.
	UpdateMarshalVerification(ctx context.Context, userID uuid.UUID, status model.VerificationStatus, verifiedAt time.Time) error

	// Events
	CreateEvent(ctx context.Context, event model.Event) error
	GetEventByID(ctx context.Context, id uuid.UUID) (model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListEventsByOrganizer(ctx context.Context, userID uuid.UUID) ([]model.Event, error)
	UpdateEvent(ctx context.Context, event model.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	AddEventStaff(ctx context.Context, eventID, userID uuid.UUID) error
	RemoveEventStaff(ctx context.Context, eventID, userID uuid.UUID) error
	ListEventStaff(ctx context.Context, eventID uuid.UUID) ([]model.User, error)
	// IsEventOrganizer reports whether the user created the event or is on its
	// staff list.
	IsEventOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error)

	// Categories
	CreateCategory(ctx context.Context, category model.Category) error
	GetCategoryByID(ctx context.Context, id uuid.UUID) (model.Category, error)
	ListEventCategories(ctx context.Context, eventID uuid.UUID) ([]model.Category, error)
	LinkCategory(ctx context.Context, eventID, categoryID uuid.UUID) error
	UnlinkCategory(ctx context.Context, eventID, categoryID uuid.UUID) error
	// DeleteCategory removes a category and its event links. Returns
	// ErrCategoryInUse if any participant references it.
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	CountCategoryParticipants(ctx context.Context, categoryID uuid.UUID) (int, error)

	// Participants
	// CreateParticipant inserts a new pending registration, claiming a slot on
	// the event category when a slot limit is set. Returns
	// ErrDuplicateRegistration for a repeated (user, event, category) tuple and
	// ErrCategoryFull when the slot limit is exhausted.
	CreateParticipant(ctx context.Context, participant model.Participant) error
	GetParticipantByID(ctx context.Context, id uuid.UUID) (model.Participant, error)
	// GetParticipantForOrganizer resolves a participant only if the actor
	// created or staffs the participant's event. Outside that authority the
	// participant is reported as not found.
	GetParticipantForOrganizer(ctx context.Context, participantID, actorID uuid.UUID) (model.Participant, error)
	ListParticipantsByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Participant, error)
	ListParticipantsByUser(ctx context.Context, userID uuid.UUID) ([]model.Participant, error)
	// VerifyParticipant applies the combined status transition with an atomic
	// conditional update. Returns ErrAlreadyProcessed when the participant's
	// payment status is no longer pending.
	VerifyParticipant(ctx context.Context, params VerifyParticipantParams) error
	// SetParticipantCredential stores the issued credential, at most once.
	// Returns ErrCredentialExists when a credential is already present.
	SetParticipantCredential(ctx context.Context, id uuid.UUID, payload, url string) error
	SetParticipantPaymentRef(ctx context.Context, id uuid.UUID, ref string) error

	// Notifications
	CreateNotification(ctx context.Context, notification model.Notification) error
	ListUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)

	GetAdminStats(ctx context.Context) (model.AdminStats, error)
}
