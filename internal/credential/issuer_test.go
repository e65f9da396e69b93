package credential

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Store(ctx context.Context, key string, content io.Reader, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("storage unavailable")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) URL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("storage unavailable")
	}
	return "https://storage.test/" + key, nil
}

func newTestIssuer(t *testing.T) (*Issuer, *repository.MemoryRepository, *fakeStorage) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	store := newFakeStorage()
	issuer := NewIssuer(slog.Default(), repo, store, "credential-test-secret")
	return issuer, repo, store
}

func seedParticipant(t *testing.T, repo *repository.MemoryRepository, registration model.RegistrationStatus, payment model.PaymentStatus) model.Participant {
	t.Helper()
	ctx := context.Background()

	runner := model.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Role: model.RoleRunner}
	require.NoError(t, repo.CreateUser(ctx, runner))

	event := model.Event{ID: uuid.New(), Name: "City Run", CreatedBy: uuid.New(), Date: time.Now()}
	require.NoError(t, repo.CreateEvent(ctx, event))

	category := model.Category{ID: uuid.New(), Name: "10K"}
	require.NoError(t, repo.CreateCategory(ctx, category))
	require.NoError(t, repo.LinkCategory(ctx, event.ID, category.ID))

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

	if registration != model.RegistrationPending || payment != model.PaymentPending {
		require.NoError(t, repo.VerifyParticipant(ctx, repository.VerifyParticipantParams{
			ID:                 participant.ID,
			RegistrationStatus: registration,
			PaymentStatus:      payment,
			VerifiedBy:         uuid.New(),
			VerifiedAt:         time.Now().UTC(),
		}))
	}

	stored, err := repo.GetParticipantByID(ctx, participant.ID)
	require.NoError(t, err)
	return stored
}

func TestIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("approved and verified participant gets a credential", func(t *testing.T) {
		issuer, repo, store := newTestIssuer(t)
		participant := seedParticipant(t, repo, model.RegistrationApproved, model.PaymentVerified)

		cred, err := issuer.Issue(ctx, participant.ID)
		require.NoError(t, err)
		assert.Contains(t, cred.Payload, "raceday:credential:v1:"+participant.ID.String())
		assert.NotEmpty(t, cred.URL)

		stored, err := repo.GetParticipantByID(ctx, participant.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.QRCodeData)
		require.NotNil(t, stored.QRCodeURL)
		assert.Equal(t, cred.Payload, *stored.QRCodeData)

		png, err := issuer.Image(ctx, participant.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, png)
		assert.Len(t, store.objects, 1)
	})

	t.Run("reissue returns the existing credential unchanged", func(t *testing.T) {
		issuer, repo, _ := newTestIssuer(t)
		participant := seedParticipant(t, repo, model.RegistrationApproved, model.PaymentVerified)

		first, err := issuer.Issue(ctx, participant.ID)
		require.NoError(t, err)

		second, err := issuer.Issue(ctx, participant.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Payload, second.Payload)
		assert.Equal(t, first.URL, second.URL)
	})

	t.Run("pending participant is not eligible", func(t *testing.T) {
		issuer, repo, _ := newTestIssuer(t)
		participant := seedParticipant(t, repo, model.RegistrationPending, model.PaymentPending)

		_, err := issuer.Issue(ctx, participant.ID)
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("rejected participant is not eligible", func(t *testing.T) {
		issuer, repo, _ := newTestIssuer(t)
		participant := seedParticipant(t, repo, model.RegistrationRejected, model.PaymentRejected)

		_, err := issuer.Issue(ctx, participant.ID)
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("unknown participant", func(t *testing.T) {
		issuer, _, _ := newTestIssuer(t)
		_, err := issuer.Issue(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("storage failure leaves no partial state", func(t *testing.T) {
		issuer, repo, store := newTestIssuer(t)
		participant := seedParticipant(t, repo, model.RegistrationApproved, model.PaymentVerified)

		store.fail = true
		_, err := issuer.Issue(ctx, participant.ID)
		require.Error(t, err)

		stored, err := repo.GetParticipantByID(ctx, participant.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.QRCodeData)
		assert.Nil(t, stored.QRCodeURL)

		// Retry succeeds once storage recovers.
		store.fail = false
		_, err = issuer.Issue(ctx, participant.ID)
		assert.NoError(t, err)
	})
}

func TestConcurrentIssue(t *testing.T) {
	issuer, repo, _ := newTestIssuer(t)
	ctx := context.Background()
	participant := seedParticipant(t, repo, model.RegistrationApproved, model.PaymentVerified)

	const workers = 50
	results := make(chan Credential, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := issuer.Issue(ctx, participant.ID)
			if err == nil {
				results <- cred
			}
		}()
	}
	wg.Wait()
	close(results)

	var payloads []string
	for cred := range results {
		payloads = append(payloads, cred.Payload)
	}
	require.Len(t, payloads, workers)
	for _, payload := range payloads {
		assert.Equal(t, payloads[0], payload)
	}
}

func TestPayloadVerification(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	other := NewIssuer(slog.Default(), repository.NewMemoryRepository(), newFakeStorage(), "different-secret")

	id := uuid.New()
	payload := issuer.Payload(id)

	t.Run("payload is deterministic", func(t *testing.T) {
		assert.Equal(t, payload, issuer.Payload(id))
	})

	t.Run("valid payload verifies", func(t *testing.T) {
		got, ok := issuer.VerifyPayload(payload)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		_, ok := other.VerifyPayload(payload)
		assert.False(t, ok)
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		_, ok := issuer.VerifyPayload(payload[:len(payload)-1] + "0")
		if ok {
			// Flipping the last hex digit may collide only if it was already 0.
			_, ok = issuer.VerifyPayload(payload[:len(payload)-1] + "1")
		}
		assert.False(t, ok)
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, ok := issuer.VerifyPayload("not-a-credential")
		assert.False(t, ok)
	})
}
