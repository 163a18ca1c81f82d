package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/policy"
	"github.com/spec-kit/incident-service/internal/repository/memory"
	"github.com/spec-kit/incident-service/internal/service"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password"
)

type envelope struct {
	Data  map[string]any `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type listEnvelope struct {
	Data []map[string]any `json:"data"`
}

func newTestApp(t *testing.T) (*fiber.App, *observability.Metrics) {
	t.Helper()
	logger := zap.NewNop()
	store := memory.New().Store()
	p, err := policy.New()
	require.NoError(t, err)

	authCfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}
	authService := service.NewAuthService(authCfg, store.Users, logger)
	require.NoError(t, authService.EnsureAdmin(context.Background(), adminEmail, adminPassword))

	incidentService := service.NewIncidentService(service.IncidentDependencies{
		Store:      store,
		Policy:     p,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	app := NewApp("incident-service-test", logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("incident-service", "test", metrics, nil),
		Users:          handlers.NewUsersHandler(authService, service.NewAccountService(store.Users, p, 4, logger)),
		Incidents:      handlers.NewIncidentsHandler(incidentService),
		Inventory:      handlers.NewInventoryHandler(service.NewInventoryService(store, p, logger)),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})
	return app, metrics
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decode(t *testing.T, raw []byte) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	resp, raw := call(t, app, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	authBody := decode(t, raw).Data["auth"].(map[string]any)
	return authBody["token"].(string)
}

func register(t *testing.T, app *fiber.App, name, email string) string {
	t.Helper()
	resp, raw := call(t, app, http.MethodPost, "/auth/register", "",
		`{"name":"`+name+`","email":"`+email+`","password":"secret-pass"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	data := decode(t, raw).Data
	assert.Equal(t, "user", data["user"].(map[string]any)["role"])
	return data["auth"].(map[string]any)["token"].(string)
}

// seedInventory creates one location holding one printer and returns the
// printer id.
func seedInventory(t *testing.T, app *fiber.App, adminToken string) (string, string) {
	t.Helper()
	resp, raw := call(t, app, http.MethodPost, "/locations", adminToken, `{"name":"Lab","building":"A","room":"101"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	locationID := decode(t, raw).Data["id"].(string)

	resp, raw = call(t, app, http.MethodPost, "/equipment", adminToken, `{"location_id":"`+locationID+`","model":"Printer"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	return locationID, decode(t, raw).Data["id"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	resp, raw := call(t, app, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"alive"`)

	resp, raw = call(t, app, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"ready"`)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	app := NewApp("test", zap.NewNop(), nil, 0)
	health := handlers.NewHealthHandler("svc", "v", nil, map[string]handlers.Pinger{"postgres": failingPinger{}})
	app.Get("/health/ready", health.Ready)

	resp, raw := call(t, app, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode(t, raw)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "connection refused", body.Error.Details["postgres"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp, raw := call(t, app, http.MethodGet, "/incidents", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, raw).Error.Code)
	assert.NotEmpty(t, resp.Header.Get(observability.HeaderRequestID))

	resp, raw = call(t, app, http.MethodGet, "/incidents", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, raw).Error.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	app, _ := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(observability.HeaderRequestID, "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.Header.Get(observability.HeaderRequestID))
}

func TestIncidentLifecycleOverHTTP(t *testing.T) {
	app, metrics := newTestApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	_, printerID := seedInventory(t, app, adminToken)
	aliceToken := register(t, app, "Alice", "alice@example.com")

	resp, raw := call(t, app, http.MethodPost, "/incidents", aliceToken,
		`{"equipment_id":"`+printerID+`","title":"Paper jam","state":"closed"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	created := decode(t, raw).Data
	assert.Equal(t, "pending", created["state"])
	assert.Equal(t, "medium", created["priority"])
	incidentID := created["id"].(string)

	resp, raw = call(t, app, http.MethodPost, "/incidents/"+incidentID+"/state", adminToken, `{"state":"resolved"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	rejected := decode(t, raw)
	assert.Equal(t, "INVALID_TRANSITION", rejected.Error.Code)
	assert.Equal(t, "invalid_edge", rejected.Error.Details["reason"])

	resp, raw = call(t, app, http.MethodPost, "/incidents/"+incidentID+"/state", adminToken, `{"state":"in_progress"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "in_progress", decode(t, raw).Data["state"])

	resp, raw = call(t, app, http.MethodGet, "/incidents/"+incidentID, aliceToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	detail := decode(t, raw).Data
	assert.Equal(t, "Printer", detail["equipment"].(map[string]any)["model"])
	assert.Equal(t, "Lab", detail["location"].(map[string]any)["name"])

	resp, raw = call(t, app, http.MethodGet, "/incidents/"+incidentID+"/logs", aliceToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var logs listEnvelope
	require.NoError(t, json.Unmarshal(raw, &logs))
	require.Len(t, logs.Data, 2)
	assert.Equal(t, "created", logs.Data[0]["action"])
	assert.Equal(t, "state_changed", logs.Data[1]["action"])

	resp, raw = call(t, app, http.MethodGet, "/incidents?state=in_progress", adminToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var listed listEnvelope
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Len(t, listed.Data, 1)

	snapshot := metrics.Snapshot()
	assert.Greater(t, snapshot.Requests, int64(0))
	assert.NotEmpty(t, snapshot.ByErrorCode)
}

func TestValidationAndPolicyErrors(t *testing.T) {
	app, _ := newTestApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	_, printerID := seedInventory(t, app, adminToken)
	aliceToken := register(t, app, "Alice", "alice@example.com")

	t.Run("malformed body", func(t *testing.T) {
		resp, raw := call(t, app, http.MethodPost, "/incidents", aliceToken, `{"title":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_FAILED", decode(t, raw).Error.Code)
	})
	t.Run("unknown state filter", func(t *testing.T) {
		resp, raw := call(t, app, http.MethodGet, "/incidents?state=open", aliceToken, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_FAILED", decode(t, raw).Error.Code)
	})
	t.Run("users cannot manage inventory", func(t *testing.T) {
		resp, raw := call(t, app, http.MethodDelete, "/equipment/"+printerID, aliceToken, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "DENIED", decode(t, raw).Error.Code)
	})
	t.Run("missing incident", func(t *testing.T) {
		resp, raw := call(t, app, http.MethodGet, "/incidents/ffffffff-ffff-ffff-ffff-ffffffffffff", aliceToken, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decode(t, raw).Error.Code)
	})
	t.Run("duplicate registration", func(t *testing.T) {
		resp, raw := call(t, app, http.MethodPost, "/auth/register", "",
			`{"name":"Again","email":"alice@example.com","password":"secret-pass"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "CONFLICT", decode(t, raw).Error.Code)
	})
	t.Run("wrong password", func(t *testing.T) {
		resp, raw := call(t, app, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"nope-nope"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHENTICATED", decode(t, raw).Error.Code)
	})
}

func TestMalformedIDIsNotFound(t *testing.T) {
	app, _ := newTestApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)

	for _, path := range []string{"/incidents/abc", "/equipment/abc", "/locations/abc", "/users/abc"} {
		resp, raw := call(t, app, http.MethodGet, path, adminToken, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, "NOT_FOUND", decode(t, raw).Error.Code, path)
	}

	resp, raw := call(t, app, http.MethodPost, "/incidents", adminToken, `{"equipment_id":"not-a-uuid","title":"Broken"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode(t, raw).Error.Code)

	resp, raw = call(t, app, http.MethodGet, "/incidents?equipment_id=not-a-uuid", adminToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var listed listEnvelope
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Empty(t, listed.Data)
}

func TestHugePageIsClamped(t *testing.T) {
	app, _ := newTestApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	_, printerID := seedInventory(t, app, adminToken)

	resp, raw := call(t, app, http.MethodPost, "/incidents", adminToken, `{"equipment_id":"`+printerID+`","title":"Paper jam"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = call(t, app, http.MethodGet, "/incidents?page=9223372036854775807&page_size=9223372036854775807", adminToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var listed listEnvelope
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Empty(t, listed.Data)

	resp, raw = call(t, app, http.MethodGet, "/incidents?page=1&page_size=9223372036854775807", adminToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Len(t, listed.Data, 1)
}

func TestEquipmentWithActiveIncidentCannotBeDeleted(t *testing.T) {
	app, _ := newTestApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	locationID, printerID := seedInventory(t, app, adminToken)

	resp, raw := call(t, app, http.MethodPost, "/incidents", adminToken, `{"equipment_id":"`+printerID+`","title":"Smoke"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = call(t, app, http.MethodDelete, "/equipment/"+printerID, adminToken, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", decode(t, raw).Error.Code)

	resp, raw = call(t, app, http.MethodDelete, "/locations/"+locationID, adminToken, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", decode(t, raw).Error.Code)
}

func TestAccountEndpoints(t *testing.T) {
	app, _ := newTestApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	aliceToken := register(t, app, "Alice", "alice@example.com")

	resp, raw := call(t, app, http.MethodGet, "/users/me", aliceToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	me := decode(t, raw).Data
	assert.NotContains(t, string(raw), "password")
	aliceID := me["id"].(string)

	resp, _ = call(t, app, http.MethodGet, "/users", aliceToken, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw = call(t, app, http.MethodPut, "/users/"+aliceID+"/role", aliceToken, `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(raw))

	resp, raw = call(t, app, http.MethodPut, "/users/"+aliceID+"/role", adminToken, `{"role":"technician"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "technician", decode(t, raw).Data["role"])

	resp, raw = call(t, app, http.MethodGet, "/users/me", aliceToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "technician", decode(t, raw).Data["role"])

	resp, _ = call(t, app, http.MethodPost, "/auth/password/change", aliceToken,
		`{"current_password":"secret-pass","new_password":"another-pass"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	login(t, app, "alice@example.com", "another-pass")
}

func TestPanicIsRecovered(t *testing.T) {
	metrics := observability.NewMetrics()
	app := NewApp("test", zap.NewNop(), metrics, 0)
	app.Get("/boom", func(*fiber.Ctx) error { panic("kaboom") })

	resp, raw := call(t, app, http.MethodGet, "/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, raw).Error.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	app := NewApp("test", zap.NewNop(), nil, 0)
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, raw := call(t, app, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode(t, raw).Error.Code)
}
