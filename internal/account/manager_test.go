package account

import (
	"context"
	"log/slog"
	"testing"

	"raceday/internal/authz"
	"raceday/internal/config"
	"raceday/internal/model"
	"raceday/internal/notifications"
	"raceday/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *Authenticator, *repository.MemoryRepository) {
	t.Helper()
	logger := slog.Default()
	repo := repository.NewMemoryRepository()
	fga, err := authz.NewClient(config.OpenFGAConfig{Enabled: false})
	require.NoError(t, err)
	notifier := notifications.NewManager(logger, repo, config.SMTPConfig{})
	auth := NewAuthenticator(logger, repo, NewRateLimiter(nil), notifier)
	manager := NewManager(logger, repo, authz.NewService(repo, fga), notifier)
	return manager, auth, repo
}

func registerMarshal(t *testing.T, auth *Authenticator, email string) model.User {
	t.Helper()
	marshal, err := auth.Register(context.Background(), RegisterParams{
		Name:     "Marshal",
		Email:    email,
		Password: "Str0ngEnough",
		Role:     model.RoleMarshal,
	})
	require.NoError(t, err)
	require.Equal(t, model.VerificationPending, marshal.VerificationStatus)
	return marshal
}

func TestVerifyMarshalApprove(t *testing.T) {
	manager, auth, _ := newTestManager(t)
	ctx := context.Background()
	admin := model.User{ID: uuid.New(), Role: model.RoleAdmin}

	marshal := registerMarshal(t, auth, "marshal@example.com")

	updated, err := manager.VerifyMarshal(ctx, admin, VerifyMarshalParams{
		MarshalID: marshal.ID,
		Action:    "approve",
	})
	require.NoError(t, err)
	assert.Equal(t, model.VerificationApproved, updated.VerificationStatus)
	assert.NotNil(t, updated.VerifiedAt)
}

func TestVerifyMarshalIsOneWay(t *testing.T) {
	manager, auth, _ := newTestManager(t)
	ctx := context.Background()
	admin := model.User{ID: uuid.New(), Role: model.RoleAdmin}

	marshal := registerMarshal(t, auth, "marshal@example.com")

	_, err := manager.VerifyMarshal(ctx, admin, VerifyMarshalParams{MarshalID: marshal.ID, Action: "reject"})
	require.NoError(t, err)

	// A second verification attempt must fail, not overwrite.
	_, err = manager.VerifyMarshal(ctx, admin, VerifyMarshalParams{MarshalID: marshal.ID, Action: "approve"})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestVerifyMarshalRequiresAdmin(t *testing.T) {
	manager, auth, _ := newTestManager(t)
	ctx := context.Background()

	marshal := registerMarshal(t, auth, "marshal@example.com")

	_, err := manager.VerifyMarshal(ctx, model.User{ID: uuid.New(), Role: model.RoleMarshal},
		VerifyMarshalParams{MarshalID: marshal.ID, Action: "approve"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerifyMarshalUnknownAction(t *testing.T) {
	manager, auth, _ := newTestManager(t)
	ctx := context.Background()
	admin := model.User{ID: uuid.New(), Role: model.RoleAdmin}

	marshal := registerMarshal(t, auth, "marshal@example.com")

	_, err := manager.VerifyMarshal(ctx, admin, VerifyMarshalParams{MarshalID: marshal.ID, Action: "defer"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestRegisterAndLogin(t *testing.T) {
	_, auth, _ := newTestManager(t)
	ctx := context.Background()

	runner, err := auth.Register(ctx, RegisterParams{
		Name:     "Runner",
		Email:    "Runner@Example.com",
		Password: "Str0ngEnough",
		Role:     model.RoleRunner,
	})
	require.NoError(t, err)
	assert.Equal(t, "runner@example.com", runner.Email)
	assert.Equal(t, model.VerificationApproved, runner.VerificationStatus)

	t.Run("correct password", func(t *testing.T) {
		user, err := auth.Login(ctx, LoginParams{Email: "runner@example.com", Password: "Str0ngEnough"})
		require.NoError(t, err)
		assert.Equal(t, runner.ID, user.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.Login(ctx, LoginParams{Email: "runner@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email gets the same error", func(t *testing.T) {
		_, err := auth.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "Str0ngEnough"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := auth.Register(ctx, RegisterParams{
			Name:     "Other",
			Email:    "runner@example.com",
			Password: "Str0ngEnough",
			Role:     model.RoleRunner,
		})
		assert.ErrorIs(t, err, ErrEmailAlreadyInUse)
	})

	t.Run("admin cannot self-register", func(t *testing.T) {
		_, err := auth.Register(ctx, RegisterParams{
			Name:     "Sneaky",
			Email:    "admin@example.com",
			Password: "Str0ngEnough",
			Role:     model.RoleAdmin,
		})
		assert.ErrorIs(t, err, ErrInvalidRole)
	})
}
