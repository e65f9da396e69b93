package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"raceday/internal/config"
	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/google/uuid"
)

// Manager persists in-app notifications and, when SMTP is configured, sends a
// matching email. Delivery failures are logged and never propagate: a
// notification must not fail the action that triggered it.
type Manager struct {
	logger *slog.Logger
	repo   repository.Repository
	smtp   config.SMTPConfig
}

func NewManager(logger *slog.Logger, repo repository.Repository, smtpCfg config.SMTPConfig) *Manager {
	return &Manager{logger: logger, repo: repo, smtp: smtpCfg}
}

type NotifyParams struct {
	UserID  uuid.UUID
	Email   string
	Title   string
	Message string
	Type    model.NotificationType
}

func (m *Manager) Notify(ctx context.Context, params NotifyParams) {
	notification := model.Notification{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Title:     params.Title,
		Message:   params.Message,
		Type:      params.Type,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.repo.CreateNotification(ctx, notification); err != nil {
		m.logger.Error("Failed to store notification", "error", err, "user_id", params.UserID)
	}

	if m.smtp.Enabled && params.Email != "" {
		if err := m.sendMail(params.Email, params.Title, params.Message); err != nil {
			m.logger.Error("Failed to send notification email", "error", err, "user_id", params.UserID)
		}
	}
}

func (m *Manager) Unread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	return m.repo.ListUnreadNotifications(ctx, userID)
}

func (m *Manager) sendMail(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.smtp.Host, m.smtp.Port)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.smtp.From, to, subject, body))

	var auth smtp.Auth
	if m.smtp.Username != "" {
		auth = smtp.PlainAuth("", m.smtp.Username, m.smtp.Password, m.smtp.Host)
	}

	if err := smtp.SendMail(addr, auth, m.smtp.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
