package event

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"raceday/internal/authz"
	"raceday/internal/config"
	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	fga, err := authz.NewClient(config.OpenFGAConfig{Enabled: false})
	require.NoError(t, err)
	logger := slog.Default()
	return NewManager(logger, repo, authz.NewService(repo, fga)), repo
}

func seedUser(t *testing.T, repo *repository.MemoryRepository, role model.Role, status model.VerificationStatus) model.User {
	t.Helper()
	user := model.User{
		ID:                 uuid.New(),
		Email:              uuid.NewString() + "@example.com",
		Role:               role,
		VerificationStatus: status,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func TestCreateEvent(t *testing.T) {
	mgr, repo := newTestManager(t)
	ctx := context.Background()

	marshal := seedUser(t, repo, model.RoleMarshal, model.VerificationApproved)
	pending := seedUser(t, repo, model.RoleMarshal, model.VerificationPending)
	runner := seedUser(t, repo, model.RoleRunner, model.VerificationApproved)

	t.Run("approved marshal creates event", func(t *testing.T) {
		event, err := mgr.CreateEvent(ctx, marshal, CreateEventParams{Name: "Spring 10K", Location: "Riverside Park", Date: time.Now().AddDate(0, 1, 0)})
		require.NoError(t, err)
		assert.Equal(t, marshal.ID, event.CreatedBy)

		stored, err := mgr.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, "Spring 10K", stored.Name)
	})

	t.Run("pending marshal is refused", func(t *testing.T) {
		_, err := mgr.CreateEvent(ctx, pending, CreateEventParams{Name: "Nope"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("runner is refused", func(t *testing.T) {
		_, err := mgr.CreateEvent(ctx, runner, CreateEventParams{Name: "Nope"})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	mgr, repo := newTestManager(t)
	ctx := context.Background()

	owner := seedUser(t, repo, model.RoleMarshal, model.VerificationApproved)
	outsider := seedUser(t, repo, model.RoleMarshal, model.VerificationApproved)
	admin := seedUser(t, repo, model.RoleAdmin, model.VerificationApproved)

	event, err := mgr.CreateEvent(ctx, owner, CreateEventParams{Name: "Trail Run", Location: "Hills", Date: time.Now()})
	require.NoError(t, err)

	t.Run("owner updates", func(t *testing.T) {
		updated, err := mgr.UpdateEvent(ctx, owner, event.ID, UpdateEventParams{Name: "Trail Run 2026", Location: "Hills", Date: event.Date})
		require.NoError(t, err)
		assert.Equal(t, "Trail Run 2026", updated.Name)
	})

	t.Run("unrelated marshal may not update", func(t *testing.T) {
		_, err := mgr.UpdateEvent(ctx, outsider, event.ID, UpdateEventParams{Name: "Hijack"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := mgr.UpdateEvent(ctx, admin, uuid.New(), UpdateEventParams{Name: "Ghost"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("admin deletes any event", func(t *testing.T) {
		require.NoError(t, mgr.DeleteEvent(ctx, admin, event.ID))
		_, err := mgr.GetEvent(ctx, event.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStaffManagement(t *testing.T) {
	mgr, repo := newTestManager(t)
	ctx := context.Background()

	owner := seedUser(t, repo, model.RoleMarshal, model.VerificationApproved)
	helper := seedUser(t, repo, model.RoleMarshal, model.VerificationApproved)
	pending := seedUser(t, repo, model.RoleMarshal, model.VerificationPending)
	runner := seedUser(t, repo, model.RoleRunner, model.VerificationApproved)

	event, err := mgr.CreateEvent(ctx, owner, CreateEventParams{Name: "Night Run", Date: time.Now()})
	require.NoError(t, err)

	t.Run("approved marshal becomes staff", func(t *testing.T) {
		require.NoError(t, mgr.AddStaff(ctx, owner, event.ID, helper.ID))

		staff, err := mgr.ListStaff(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, staff, 1)
		assert.Equal(t, helper.ID, staff[0].ID)

		// Staff can now manage the event themselves.
		_, err = mgr.UpdateEvent(ctx, helper, event.ID, UpdateEventParams{Name: "Night Run", Date: event.Date})
		assert.NoError(t, err)
	})

	t.Run("pending marshal rejected as staff", func(t *testing.T) {
		assert.ErrorIs(t, mgr.AddStaff(ctx, owner, event.ID, pending.ID), ErrStaffNotMarshal)
	})

	t.Run("runner rejected as staff", func(t *testing.T) {
		assert.ErrorIs(t, mgr.AddStaff(ctx, owner, event.ID, runner.ID), ErrStaffNotMarshal)
	})

	t.Run("removed staff loses management", func(t *testing.T) {
		require.NoError(t, mgr.RemoveStaff(ctx, owner, event.ID, helper.ID))
		_, err := mgr.UpdateEvent(ctx, helper, event.ID, UpdateEventParams{Name: "Locked out"})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestCategoryLifecycle(t *testing.T) {
	mgr, repo := newTestManager(t)
	ctx := context.Background()

	owner := seedUser(t, repo, model.RoleMarshal, model.VerificationApproved)
	runner := seedUser(t, repo, model.RoleRunner, model.VerificationApproved)

	event, err := mgr.CreateEvent(ctx, owner, CreateEventParams{Name: "Marathon", Date: time.Now()})
	require.NoError(t, err)

	limit := 100
	price := int64(2500)
	category, err := mgr.CreateCategory(ctx, owner, event.ID, CreateCategoryParams{Name: "Full Marathon", SlotLimit: &limit, PriceCents: &price})
	require.NoError(t, err)

	t.Run("category is linked to event", func(t *testing.T) {
		categories, err := mgr.ListCategories(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, categories, 1)
		assert.Equal(t, category.ID, categories[0].ID)
	})

	t.Run("runner may not create categories", func(t *testing.T) {
		_, err := mgr.CreateCategory(ctx, runner, event.ID, CreateCategoryParams{Name: "Nope"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("delete refused while participants exist", func(t *testing.T) {
		participant := model.Participant{
			ID:                 uuid.New(),
			UserID:             runner.ID,
			EventID:            event.ID,
			CategoryID:         category.ID,
			RegistrationStatus: model.RegistrationPending,
			PaymentStatus:      model.PaymentPending,
			CreatedAt:          time.Now().UTC(),
		}
		require.NoError(t, repo.CreateParticipant(ctx, participant))

		assert.ErrorIs(t, mgr.DeleteCategory(ctx, owner, category.ID), ErrCategoryInUse)
	})

	t.Run("unlink preserves the category", func(t *testing.T) {
		require.NoError(t, mgr.UnlinkCategory(ctx, owner, event.ID, category.ID))

		categories, err := mgr.ListCategories(ctx, event.ID)
		require.NoError(t, err)
		assert.Empty(t, categories)

		_, err = repo.GetCategoryByID(ctx, category.ID)
		assert.NoError(t, err)
	})

	t.Run("relink existing category", func(t *testing.T) {
		require.NoError(t, mgr.LinkCategory(ctx, owner, event.ID, category.ID))
		categories, err := mgr.ListCategories(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, categories, 1)
	})

	t.Run("link unknown category", func(t *testing.T) {
		assert.ErrorIs(t, mgr.LinkCategory(ctx, owner, event.ID, uuid.New()), ErrCategoryNotFound)
	})
}
