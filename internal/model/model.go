package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleMarshal Role = "marshal"
	RoleRunner  Role = "runner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMarshal, RoleRunner:
		return true
	}
	return false
}

// VerificationStatus tracks the admin review of a marshal account. Runners and
// admins are created approved.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

type User struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	PasswordHash       string             `json:"-"`
	Role               Role               `json:"role"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type Event struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Date      time.Time `json:"date"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Category struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SlotLimit  *int      `json:"slot_limit,omitempty"`
	PriceCents *int64    `json:"price_cents,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventCategory links a category to an event and tracks how many runners have
// registered against the category's slot limit for that event.
type EventCategory struct {
	EventID    uuid.UUID `json:"event_id"`
	CategoryID uuid.UUID `json:"category_id"`
	Registered int       `json:"registered"`
}

// Participant is a runner's registration for one event+category. The two status
// fields are only ever written together by a verification action.
type Participant struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	EventID            uuid.UUID          `json:"event_id"`
	CategoryID         uuid.UUID          `json:"category_id"`
	RegistrationStatus RegistrationStatus `json:"registration_status"`
	PaymentStatus      PaymentStatus      `json:"payment_status"`
	RejectionReason    *string            `json:"rejection_reason,omitempty"`
	QRCodeData         *string            `json:"qr_code_data,omitempty"`
	QRCodeURL          *string            `json:"qr_code_url,omitempty"`
	PaymentRef         *string            `json:"payment_ref,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy         *uuid.UUID         `json:"verified_by,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type AdminStats struct {
	TotalUsers         int `json:"total_users"`
	TotalEvents        int `json:"total_events"`
	TotalParticipants  int `json:"total_participants"`
	PendingMarshals    int `json:"pending_marshals"`
	PendingParticipant int `json:"pending_participants"`
	TodayRegistrations int `json:"today_registrations"`
}
