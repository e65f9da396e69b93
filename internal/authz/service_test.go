package authz

import (
	"context"
	"testing"
	"time"

	"raceday/internal/config"
	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *repository.MemoryRepository) {
	t.Helper()
	fga, err := NewClient(config.OpenFGAConfig{Enabled: false})
	require.NoError(t, err)
	repo := repository.NewMemoryRepository()
	return NewService(repo, fga), repo
}

func TestCanCreateEvent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin := model.User{Role: model.RoleAdmin}
	approvedMarshal := model.User{Role: model.RoleMarshal, VerificationStatus: model.VerificationApproved}
	pendingMarshal := model.User{Role: model.RoleMarshal, VerificationStatus: model.VerificationPending}
	runner := model.User{Role: model.RoleRunner, VerificationStatus: model.VerificationApproved}

	assert.True(t, svc.CanCreateEvent(ctx, admin))
	assert.True(t, svc.CanCreateEvent(ctx, approvedMarshal))
	assert.False(t, svc.CanCreateEvent(ctx, pendingMarshal))
	assert.False(t, svc.CanCreateEvent(ctx, runner))
}

func TestCanManageEvent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	creator := model.User{ID: uuid.New(), Role: model.RoleMarshal, VerificationStatus: model.VerificationApproved}
	staff := model.User{ID: uuid.New(), Role: model.RoleMarshal, VerificationStatus: model.VerificationApproved}
	outsider := model.User{ID: uuid.New(), Role: model.RoleMarshal, VerificationStatus: model.VerificationApproved}
	admin := model.User{ID: uuid.New(), Role: model.RoleAdmin}
	runner := model.User{ID: uuid.New(), Role: model.RoleRunner}

	event := model.Event{ID: uuid.New(), Name: "City Run", CreatedBy: creator.ID, Date: time.Now()}
	require.NoError(t, repo.CreateEvent(ctx, event))
	require.NoError(t, repo.AddEventStaff(ctx, event.ID, staff.ID))

	t.Run("creator may manage", func(t *testing.T) {
		ok, err := svc.CanManageEvent(ctx, creator, event.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("staff may manage", func(t *testing.T) {
		ok, err := svc.CanManageEvent(ctx, staff, event.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("admin may manage any event", func(t *testing.T) {
		ok, err := svc.CanManageEvent(ctx, admin, event.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unrelated marshal may not", func(t *testing.T) {
		ok, err := svc.CanManageEvent(ctx, outsider, event.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("runner may not", func(t *testing.T) {
		ok, err := svc.CanManageEvent(ctx, runner, event.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCanVerifyMarshals(t *testing.T) {
	svc, _ := newTestService(t)

	assert.True(t, svc.CanVerifyMarshals(model.User{Role: model.RoleAdmin}))
	assert.False(t, svc.CanVerifyMarshals(model.User{Role: model.RoleMarshal}))
	assert.False(t, svc.CanVerifyMarshals(model.User{Role: model.RoleRunner}))
}
