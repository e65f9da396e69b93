package repository

import (
	"context"
	"sync"
	"time"

	"raceday/internal/model"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by unit tests. Conditional
// updates are performed under one mutex so the at-most-once transition
// semantics match the SQL implementation.
type MemoryRepository struct {
	mu sync.Mutex

	users         map[uuid.UUID]model.User
	events        map[uuid.UUID]model.Event
	staff         map[uuid.UUID]map[uuid.UUID]bool // event -> user set
	categories    map[uuid.UUID]model.Category
	links         map[uuid.UUID]map[uuid.UUID]int // event -> category -> registered
	participants  map[uuid.UUID]model.Participant
	notifications []model.Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[uuid.UUID]model.User),
		events:       make(map[uuid.UUID]model.Event),
		staff:        make(map[uuid.UUID]map[uuid.UUID]bool),
		categories:   make(map[uuid.UUID]model.Category),
		links:        make(map[uuid.UUID]map[uuid.UUID]int),
		participants: make(map[uuid.UUID]model.Participant),
	}
}

func (r *MemoryRepository) Migrate() error { return nil }

func (r *MemoryRepository) HealthCheck(ctx context.Context) error { return nil }

func (r *MemoryRepository) CreateUser(ctx context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrEmailAlreadyInUse
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

func (r *MemoryRepository) ListMarshalsByStatus(ctx context.Context, status model.VerificationStatus) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []model.User
	for _, user := range r.users {
		if user.Role == model.RoleMarshal && user.VerificationStatus == status {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *MemoryRepository) UpdateMarshalVerification(ctx context.Context, userID uuid.UUID, status model.VerificationStatus, verifiedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok || user.Role != model.RoleMarshal {
		return ErrUserNotFound
	}
	if user.VerificationStatus != model.VerificationPending {
		return ErrAlreadyProcessed
	}
	user.VerificationStatus = status
	user.VerifiedAt = &verifiedAt
	user.UpdatedAt = verifiedAt
	r.users[userID] = user
	return nil
}

func (r *MemoryRepository) CreateEvent(ctx context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
	return nil
}

func (r *MemoryRepository) GetEventByID(ctx context.Context, id uuid.UUID) (model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return model.Event{}, ErrEventNotFound
	}
	return event, nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []model.Event
	for _, event := range r.events {
		events = append(events, event)
	}
	return events, nil
}

func (r *MemoryRepository) ListEventsByOrganizer(ctx context.Context, userID uuid.UUID) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []model.Event
	for _, event := range r.events {
		if event.CreatedBy == userID || r.staff[event.ID][userID] {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *MemoryRepository) UpdateEvent(ctx context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return ErrEventNotFound
	}
	r.events[event.ID] = event
	return nil
}

func (r *MemoryRepository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(r.events, id)
	delete(r.staff, id)
	delete(r.links, id)
	return nil
}

func (r *MemoryRepository) AddEventStaff(ctx context.Context, eventID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staff[eventID] == nil {
		r.staff[eventID] = make(map[uuid.UUID]bool)
	}
	r.staff[eventID][userID] = true
	return nil
}

func (r *MemoryRepository) RemoveEventStaff(ctx context.Context, eventID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.staff[eventID], userID)
	return nil
}

func (r *MemoryRepository) ListEventStaff(ctx context.Context, eventID uuid.UUID) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []model.User
	for userID := range r.staff[eventID] {
		if user, ok := r.users[userID]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *MemoryRepository) IsEventOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return false, nil
	}
	return event.CreatedBy == userID || r.staff[eventID][userID], nil
}

func (r *MemoryRepository) CreateCategory(ctx context.Context, category model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[category.ID] = category
	return nil
}

func (r *MemoryRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	category, ok := r.categories[id]
	if !ok {
		return model.Category{}, ErrCategoryNotFound
	}
	return category, nil
}

func (r *MemoryRepository) ListEventCategories(ctx context.Context, eventID uuid.UUID) ([]model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var categories []model.Category
	for categoryID := range r.links[eventID] {
		if category, ok := r.categories[categoryID]; ok {
			categories = append(categories, category)
		}
	}
	return categories, nil
}

func (r *MemoryRepository) LinkCategory(ctx context.Context, eventID, categoryID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links[eventID] == nil {
		r.links[eventID] = make(map[uuid.UUID]int)
	}
	if _, ok := r.links[eventID][categoryID]; !ok {
		r.links[eventID][categoryID] = 0
	}
	return nil
}

func (r *MemoryRepository) UnlinkCategory(ctx context.Context, eventID, categoryID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links[eventID], categoryID)
	return nil
}

func (r *MemoryRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	for _, p := range r.participants {
		if p.CategoryID == id {
			return ErrCategoryInUse
		}
	}
	delete(r.categories, id)
	for eventID := range r.links {
		delete(r.links[eventID], id)
	}
	return nil
}

func (r *MemoryRepository) CountCategoryParticipants(ctx context.Context, categoryID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.participants {
		if p.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CreateParticipant(ctx context.Context, participant model.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	registered, linked := r.links[participant.EventID][participant.CategoryID]
	if !linked {
		return ErrCategoryNotFound
	}
	category := r.categories[participant.CategoryID]
	if category.SlotLimit != nil && registered >= *category.SlotLimit {
		return ErrCategoryFull
	}
	for _, existing := range r.participants {
		if existing.UserID == participant.UserID &&
			existing.EventID == participant.EventID &&
			existing.CategoryID == participant.CategoryID {
			return ErrDuplicateRegistration
		}
	}
	r.links[participant.EventID][participant.CategoryID] = registered + 1
	r.participants[participant.ID] = participant
	return nil
}

func (r *MemoryRepository) GetParticipantByID(ctx context.Context, id uuid.UUID) (model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return model.Participant{}, ErrParticipantNotFound
	}
	return p, nil
}

func (r *MemoryRepository) GetParticipantForOrganizer(ctx context.Context, participantID, actorID uuid.UUID) (model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[participantID]
	if !ok {
		return model.Participant{}, ErrParticipantNotFound
	}
	event, ok := r.events[p.EventID]
	if !ok || (event.CreatedBy != actorID && !r.staff[p.EventID][actorID]) {
		return model.Participant{}, ErrParticipantNotFound
	}
	return p, nil
}

func (r *MemoryRepository) ListParticipantsByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var participants []model.Participant
	for _, p := range r.participants {
		if p.EventID == eventID {
			participants = append(participants, p)
		}
	}
	return participants, nil
}

func (r *MemoryRepository) ListParticipantsByUser(ctx context.Context, userID uuid.UUID) ([]model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var participants []model.Participant
	for _, p := range r.participants {
		if p.UserID == userID {
			participants = append(participants, p)
		}
	}
	return participants, nil
}

func (r *MemoryRepository) VerifyParticipant(ctx context.Context, params VerifyParticipantParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[params.ID]
	if !ok {
		return ErrParticipantNotFound
	}
	if p.PaymentStatus != model.PaymentPending {
		return ErrAlreadyProcessed
	}
	p.RegistrationStatus = params.RegistrationStatus
	p.PaymentStatus = params.PaymentStatus
	p.RejectionReason = params.RejectionReason
	verifiedBy := params.VerifiedBy
	verifiedAt := params.VerifiedAt
	p.VerifiedBy = &verifiedBy
	p.VerifiedAt = &verifiedAt
	p.UpdatedAt = params.VerifiedAt
	r.participants[params.ID] = p
	return nil
}

func (r *MemoryRepository) SetParticipantCredential(ctx context.Context, id uuid.UUID, payload, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	if p.QRCodeData != nil {
		return ErrCredentialExists
	}
	p.QRCodeData = &payload
	p.QRCodeURL = &url
	p.UpdatedAt = time.Now().UTC()
	r.participants[id] = p
	return nil
}

func (r *MemoryRepository) SetParticipantPaymentRef(ctx context.Context, id uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	p.PaymentRef = &ref
	r.participants[id] = p
	return nil
}

func (r *MemoryRepository) CreateNotification(ctx context.Context, notification model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification)
	return nil
}

func (r *MemoryRepository) ListUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notifications []model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

func (r *MemoryRepository) GetAdminStats(ctx context.Context) (model.AdminStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := model.AdminStats{
		TotalUsers:        len(r.users),
		TotalEvents:       len(r.events),
		TotalParticipants: len(r.participants),
	}
	for _, user := range r.users {
		if user.Role == model.RoleMarshal && user.VerificationStatus == model.VerificationPending {
			stats.PendingMarshals++
		}
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, p := range r.participants {
		if p.PaymentStatus == model.PaymentPending {
			stats.PendingParticipant++
		}
		if p.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(today) {
			stats.TodayRegistrations++
		}
	}
	return stats, nil
}
