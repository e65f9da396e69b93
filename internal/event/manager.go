package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"raceday/internal/authz"
	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("event not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInUse    = errors.New("category has participants and cannot be deleted")
	ErrStaffNotMarshal  = errors.New("staff members must be approved marshals")
)

type Manager struct {
	logger *slog.Logger
	repo   repository.Repository
	authz  *authz.Service
}

func NewManager(logger *slog.Logger, repo repository.Repository, authzService *authz.Service) *Manager {
	return &Manager{logger: logger, repo: repo, authz: authzService}
}

type CreateEventParams struct {
	Name     string
	Location string
	Date     time.Time
}

func (m *Manager) CreateEvent(ctx context.Context, actor model.User, params CreateEventParams) (model.Event, error) {
	var event model.Event

	if !m.authz.CanCreateEvent(ctx, actor) {
		return event, ErrForbidden
	}

	now := time.Now().UTC()
	event = model.Event{
		ID:        uuid.New(),
		Name:      params.Name,
		Location:  params.Location,
		Date:      params.Date,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.repo.CreateEvent(ctx, event); err != nil {
		return model.Event{}, fmt.Errorf("failed to create event: %w", err)
	}

	if err := m.authz.RecordEventOrganizer(ctx, actor.ID, event.ID); err != nil {
		m.logger.Error("Failed to record event organizer tuple", "error", err, "event_id", event.ID)
	}

	m.logger.Info("Event created", "event_id", event.ID, "created_by", actor.ID)
	return event, nil
}

func (m *Manager) GetEvent(ctx context.Context, id uuid.UUID) (model.Event, error) {
	event, err := m.repo.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (m *Manager) ListEvents(ctx context.Context) ([]model.Event, error) {
	return m.repo.ListEvents(ctx)
}

// ListOrganizerEvents returns the events the actor created or staffs.
func (m *Manager) ListOrganizerEvents(ctx context.Context, actor model.User) ([]model.Event, error) {
	if actor.Role == model.RoleAdmin {
		return m.repo.ListEvents(ctx)
	}
	return m.repo.ListEventsByOrganizer(ctx, actor.ID)
}

type UpdateEventParams struct {
	Name     string
	Location string
	Date     time.Time
}

func (m *Manager) UpdateEvent(ctx context.Context, actor model.User, eventID uuid.UUID, params UpdateEventParams) (model.Event, error) {
	event, err := m.requireManageable(ctx, actor, eventID)
	if err != nil {
		return model.Event{}, err
	}

	event.Name = params.Name
	event.Location = params.Location
	event.Date = params.Date
	event.UpdatedAt = time.Now().UTC()

	if err := m.repo.UpdateEvent(ctx, event); err != nil {
		return model.Event{}, fmt.Errorf("failed to update event: %w", err)
	}
	return event, nil
}

func (m *Manager) DeleteEvent(ctx context.Context, actor model.User, eventID uuid.UUID) error {
	if _, err := m.requireManageable(ctx, actor, eventID); err != nil {
		return err
	}

	if err := m.repo.DeleteEvent(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}

	m.logger.Info("Event deleted", "event_id", eventID, "deleted_by", actor.ID)
	return nil
}

func (m *Manager) AddStaff(ctx context.Context, actor model.User, eventID, userID uuid.UUID) error {
	if _, err := m.requireManageable(ctx, actor, eventID); err != nil {
		return err
	}

	staff, err := m.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrStaffNotMarshal
		}
		return fmt.Errorf("failed to get staff user: %w", err)
	}
	if staff.Role != model.RoleMarshal || staff.VerificationStatus != model.VerificationApproved {
		return ErrStaffNotMarshal
	}

	if err := m.repo.AddEventStaff(ctx, eventID, userID); err != nil {
		return fmt.Errorf("failed to add event staff: %w", err)
	}
	if err := m.authz.RecordEventOrganizer(ctx, userID, eventID); err != nil {
		m.logger.Error("Failed to record staff organizer tuple", "error", err, "event_id", eventID)
	}
	return nil
}

func (m *Manager) RemoveStaff(ctx context.Context, actor model.User, eventID, userID uuid.UUID) error {
	if _, err := m.requireManageable(ctx, actor, eventID); err != nil {
		return err
	}

	if err := m.repo.RemoveEventStaff(ctx, eventID, userID); err != nil {
		return fmt.Errorf("failed to remove event staff: %w", err)
	}
	if err := m.authz.RemoveEventOrganizer(ctx, userID, eventID); err != nil {
		m.logger.Error("Failed to remove staff organizer tuple", "error", err, "event_id", eventID)
	}
	return nil
}

func (m *Manager) ListStaff(ctx context.Context, eventID uuid.UUID) ([]model.User, error) {
	return m.repo.ListEventStaff(ctx, eventID)
}

type CreateCategoryParams struct {
	Name       string
	SlotLimit  *int
	PriceCents *int64
}

// CreateCategory creates a category and links it to the event in one step.
func (m *Manager) CreateCategory(ctx context.Context, actor model.User, eventID uuid.UUID, params CreateCategoryParams) (model.Category, error) {
	var category model.Category

	if _, err := m.requireManageable(ctx, actor, eventID); err != nil {
		return category, err
	}

	category = model.Category{
		ID:         uuid.New(),
		Name:       params.Name,
		SlotLimit:  params.SlotLimit,
		PriceCents: params.PriceCents,
		CreatedAt:  time.Now().UTC(),
	}

	if err := m.repo.CreateCategory(ctx, category); err != nil {
		return model.Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	if err := m.repo.LinkCategory(ctx, eventID, category.ID); err != nil {
		return model.Category{}, fmt.Errorf("failed to link category: %w", err)
	}
	return category, nil
}

func (m *Manager) ListCategories(ctx context.Context, eventID uuid.UUID) ([]model.Category, error) {
	return m.repo.ListEventCategories(ctx, eventID)
}

func (m *Manager) LinkCategory(ctx context.Context, actor model.User, eventID, categoryID uuid.UUID) error {
	if _, err := m.requireManageable(ctx, actor, eventID); err != nil {
		return err
	}
	if _, err := m.repo.GetCategoryByID(ctx, categoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to get category: %w", err)
	}
	return m.repo.LinkCategory(ctx, eventID, categoryID)
}

// UnlinkCategory detaches a category from one event. The category itself is
// untouched; it may still be linked to other events.
func (m *Manager) UnlinkCategory(ctx context.Context, actor model.User, eventID, categoryID uuid.UUID) error {
	if _, err := m.requireManageable(ctx, actor, eventID); err != nil {
		return err
	}
	return m.repo.UnlinkCategory(ctx, eventID, categoryID)
}

// DeleteCategory removes a category entirely. Refused while any participant
// references it.
func (m *Manager) DeleteCategory(ctx context.Context, actor model.User, categoryID uuid.UUID) error {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleMarshal {
		return ErrForbidden
	}

	if err := m.repo.DeleteCategory(ctx, categoryID); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return ErrCategoryNotFound
		case errors.Is(err, repository.ErrCategoryInUse):
			return ErrCategoryInUse
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (m *Manager) requireManageable(ctx context.Context, actor model.User, eventID uuid.UUID) (model.Event, error) {
	event, err := m.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}

	ok, err := m.authz.CanManageEvent(ctx, actor, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if !ok {
		return model.Event{}, ErrForbidden
	}
	return event, nil
}
