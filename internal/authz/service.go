package authz

import (
	"context"
	"fmt"

	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/google/uuid"
)

// Service is the single place capability decisions are made. Handlers and
// managers ask it instead of re-deriving role/ownership rules per endpoint.
type Service struct {
	repo repository.Repository
	fga  *Client
}

func NewService(repo repository.Repository, fga *Client) *Service {
	return &Service{repo: repo, fga: fga}
}

// CanCreateEvent: admins always; marshals only once their account has been
// approved.
func (s *Service) CanCreateEvent(ctx context.Context, actor model.User) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	return actor.Role == model.RoleMarshal && actor.VerificationStatus == model.VerificationApproved
}

// CanManageEvent: admins act on any event; marshals on events they created or
// staff.
func (s *Service) CanManageEvent(ctx context.Context, actor model.User, eventID uuid.UUID) (bool, error) {
	if actor.Role == model.RoleAdmin {
		return true, nil
	}
	if actor.Role != model.RoleMarshal {
		return false, nil
	}

	organizer, err := s.repo.IsEventOrganizer(ctx, eventID, actor.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check event ownership: %w", err)
	}
	if !organizer {
		return false, nil
	}

	allowed, err := s.fga.CheckPermission(ctx, actor.ID.String(), "organizer", "event", eventID.String())
	if err != nil {
		return false, fmt.Errorf("failed to check fine-grained permission: %w", err)
	}
	return allowed, nil
}

// CanVerifyMarshals: admin only.
func (s *Service) CanVerifyMarshals(actor model.User) bool {
	return actor.Role == model.RoleAdmin
}

// RecordEventOrganizer registers the ownership tuple for fine-grained checks.
func (s *Service) RecordEventOrganizer(ctx context.Context, userID, eventID uuid.UUID) error {
	return s.fga.WriteTuple(ctx, userID.String(), "organizer", "event", eventID.String())
}

// RemoveEventOrganizer drops the ownership tuple.
func (s *Service) RemoveEventOrganizer(ctx context.Context, userID, eventID uuid.UUID) error {
	return s.fga.DeleteTuple(ctx, userID.String(), "organizer", "event", eventID.String())
}
