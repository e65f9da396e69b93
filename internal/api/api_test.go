package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"raceday/internal/account"
	"raceday/internal/authz"
	"raceday/internal/config"
	"raceday/internal/credential"
	"raceday/internal/event"
	"raceday/internal/middleware"
	"raceday/internal/model"
	"raceday/internal/notifications"
	"raceday/internal/payment"
	"raceday/internal/registration"
	"raceday/internal/repository"
	"raceday/internal/token"
	"raceday/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	app    *fiber.App
	repo   *repository.MemoryRepository
	tokens *token.Issuer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.Default()
	repo := repository.NewMemoryRepository()
	fga, err := authz.NewClient(config.OpenFGAConfig{Enabled: false})
	require.NoError(t, err)

	authzService := authz.NewService(repo, fga)
	notifier := notifications.NewManager(logger, repo, config.SMTPConfig{})
	limiter := account.NewRateLimiter(nil)
	issuer := credential.NewIssuer(logger, repo, &stubObjectStorage{}, "api-test-secret")
	tokens := token.NewIssuer("api-test-jwt-secret", time.Hour)

	handler := NewHandler(HandlerParams{
		Logger:        logger,
		Store:         session.New(),
		Repo:          repo,
		Validator:     validator.New(),
		Tokens:        tokens,
		Accounts:      account.NewAuthenticator(logger, repo, limiter, notifier),
		Marshals:      account.NewManager(logger, repo, authzService, notifier),
		Events:        event.NewManager(logger, repo, authzService),
		Registrations: registration.NewManager(logger, repo, issuer, notifier),
		Credentials:   issuer,
		Payments:      payment.NewClient(logger, repo, config.StripeConfig{}, "eur"),
		Notifier:      notifier,
	})

	app := fiber.New()
	app.Use(middleware.SessionAuth(handler.store))
	app.Use(middleware.TokenAuth(tokens))
	app.Use(middleware.AccessGate())
	handler.RegisterRoutes(app)

	return &testApp{app: app, repo: repo, tokens: tokens}
}

type stubObjectStorage struct{}

func (s *stubObjectStorage) Store(ctx context.Context, key string, content io.Reader, contentType string) error {
	_, err := io.ReadAll(content)
	return err
}

func (s *stubObjectStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("png"))), nil
}

func (s *stubObjectStorage) Delete(ctx context.Context, key string) error { return nil }

func (s *stubObjectStorage) URL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

func (ta *testApp) seedUser(t *testing.T, role model.Role, status model.VerificationStatus) model.User {
	t.Helper()
	user := model.User{
		ID:                 uuid.New(),
		Email:              uuid.NewString() + "@example.com",
		Role:               role,
		VerificationStatus: status,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, ta.repo.CreateUser(context.Background(), user))
	return user
}

func (ta *testApp) request(t *testing.T, method, path string, body any, as *model.User) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		apiToken, err := ta.tokens.Issue(as.ID, as.Role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ta := newTestApp(t)
	resp := ta.request(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodPost, "/register", map[string]string{
		"name":     "Jamie Runner",
		"email":    "jamie@example.com",
		"password": "Str0ngPass",
		"role":     "runner",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("login succeeds and returns a token", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/login", map[string]string{
			"email":    "jamie@example.com",
			"password": "Str0ngPass",
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["token"])
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/login", map[string]string{
			"email":    "jamie@example.com",
			"password": "WrongPass1",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("weak password fails validation", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/register", map[string]string{
			"name":     "Weak",
			"email":    "weak@example.com",
			"password": "short",
			"role":     "runner",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("admin self-registration is refused", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/register", map[string]string{
			"name":     "Sneaky",
			"email":    "sneaky@example.com",
			"password": "Str0ngPass",
			"role":     "admin",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRoleGateOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	runner := ta.seedUser(t, model.RoleRunner, model.VerificationApproved)
	marshal := ta.seedUser(t, model.RoleMarshal, model.VerificationApproved)
	admin := ta.seedUser(t, model.RoleAdmin, model.VerificationApproved)

	t.Run("runner is redirected away from admin area", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/admin/stats", nil, &runner)
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/unauthorized", resp.Header.Get("Location"))
	})

	t.Run("marshal is redirected away from runner area", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/runner-dashboard", nil, &marshal)
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/unauthorized", resp.Header.Get("Location"))
	})

	t.Run("root redirects to the role home", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/", nil, &admin)
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/admin", resp.Header.Get("Location"))
	})

	t.Run("unauthenticated protected access is challenged", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/runner/registrations", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin reaches admin area", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/admin/stats", nil, &admin)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRegistrationLifecycleOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	runner := ta.seedUser(t, model.RoleRunner, model.VerificationApproved)
	marshal := ta.seedUser(t, model.RoleMarshal, model.VerificationApproved)

	raceEvent := model.Event{ID: uuid.New(), Name: "City Run", CreatedBy: marshal.ID, Date: time.Now().AddDate(0, 1, 0)}
	require.NoError(t, ta.repo.CreateEvent(ctx, raceEvent))
	category := model.Category{ID: uuid.New(), Name: "10K"}
	require.NoError(t, ta.repo.CreateCategory(ctx, category))
	require.NoError(t, ta.repo.LinkCategory(ctx, raceEvent.ID, category.ID))

	// Runner signs up.
	resp := ta.request(t, http.MethodPost, "/runner/registrations", map[string]string{
		"event_id":    raceEvent.ID.String(),
		"category_id": category.ID.String(),
	}, &runner)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	reg := body["registration"].(map[string]any)
	participantID := reg["id"].(string)
	assert.Equal(t, "pending", reg["registration_status"])
	assert.Equal(t, "pending", reg["payment_status"])

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/runner/registrations", map[string]string{
			"event_id":    raceEvent.ID.String(),
			"category_id": category.ID.String(),
		}, &runner)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("credential before approval conflicts", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/runner/registrations/"+participantID+"/credential", nil, &runner)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("organizer approves", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/participants/"+participantID+"/verify", map[string]string{
			"action": "approve",
		}, &marshal)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		reg := body["registration"].(map[string]any)
		assert.Equal(t, "approved", reg["registration_status"])
		assert.Equal(t, "verified", reg["payment_status"])
		assert.NotEmpty(t, reg["qr_code_data"])
	})

	t.Run("second decision conflicts", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/participants/"+participantID+"/verify", map[string]string{
			"action": "reject",
			"reason": "changed my mind",
		}, &marshal)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("runner fetches credential", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/runner/registrations/"+participantID+"/credential", nil, &runner)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		cred := body["credential"].(map[string]any)
		assert.Contains(t, cred["payload"], "raceday:credential:v1:")
	})

	t.Run("marshal scans credential", func(t *testing.T) {
		participant, err := ta.repo.GetParticipantByID(ctx, uuid.MustParse(participantID))
		require.NoError(t, err)
		require.NotNil(t, participant.QRCodeData)

		resp := ta.request(t, http.MethodPost, "/qr-scanner/verify", map[string]string{
			"payload": *participant.QRCodeData,
		}, &marshal)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["valid"])
	})

	t.Run("tampered payload is invalid", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/qr-scanner/verify", map[string]string{
			"payload": fmt.Sprintf("raceday:credential:v1:%s:deadbeef", participantID),
		}, &marshal)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("foreign marshal cannot verify", func(t *testing.T) {
		outsider := ta.seedUser(t, model.RoleMarshal, model.VerificationApproved)
		other := ta.seedUser(t, model.RoleRunner, model.VerificationApproved)

		resp := ta.request(t, http.MethodPost, "/runner/registrations", map[string]string{
			"event_id":    raceEvent.ID.String(),
			"category_id": category.ID.String(),
		}, &other)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		body := decodeBody(t, resp)
		otherID := body["registration"].(map[string]any)["id"].(string)

		verifyResp := ta.request(t, http.MethodPost, "/participants/"+otherID+"/verify", map[string]string{
			"action": "approve",
		}, &outsider)
		assert.Equal(t, http.StatusNotFound, verifyResp.StatusCode)
	})
}

func TestMarshalVerificationOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.seedUser(t, model.RoleAdmin, model.VerificationApproved)
	pending := ta.seedUser(t, model.RoleMarshal, model.VerificationPending)

	t.Run("admin lists pending queue", func(t *testing.T) {
		resp := ta.request(t, http.MethodGet, "/admin/marshals", nil, &admin)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Len(t, body["marshals"], 1)
	})

	t.Run("approve then re-approve conflicts", func(t *testing.T) {
		resp := ta.request(t, http.MethodPost, "/admin/marshals/"+pending.ID.String()+"/verify", map[string]string{
			"action": "approve",
		}, &admin)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		again := ta.request(t, http.MethodPost, "/admin/marshals/"+pending.ID.String()+"/verify", map[string]string{
			"action": "reject",
		}, &admin)
		assert.Equal(t, http.StatusConflict, again.StatusCode)
	})
}
