package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("user-1", domain.RoleTechnician)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, domain.RoleTechnician, claims.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken("user-1", domain.RoleUser)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		_, err := NewTokenManager("other", 5).ParseToken(token)
		assert.Error(t, err)
	})
	t.Run("expired", func(t *testing.T) {
		old := NewTokenManager("secret", 1)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		stale, _, err := old.GenerateToken("user-1", domain.RoleUser)
		require.NoError(t, err)
		_, err = tm.ParseToken(stale)
		assert.Error(t, err)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := tm.ParseToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter22"))
	assert.Error(t, ComparePassword(hash, "hunter23"))
}

type stubResolver map[string]domain.Actor

func (s stubResolver) ResolveActor(_ context.Context, token string) (domain.Actor, error) {
	actor, ok := s[token]
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthenticated("invalid token")
	}
	return actor, nil
}

func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	mw := NewAuthMiddleware(stubResolver{
		"tech-token": {ID: "tech-1", Role: domain.RoleTechnician},
		"user-token": {ID: "user-1", Role: domain.RoleUser},
	})
	app.Use(mw.Handle)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.SendString(actor.ID)
	})
	app.Get("/staff", RequireRole(domain.RoleAdmin, domain.RoleTechnician), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newTestApp()
	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"missing header", "/whoami", "", http.StatusUnauthorized, apperrors.CodeUnauthenticated},
		{"wrong scheme", "/whoami", "Basic abc", http.StatusUnauthorized, apperrors.CodeUnauthenticated},
		{"unknown token", "/whoami", "Bearer nope", http.StatusUnauthorized, apperrors.CodeUnauthenticated},
		{"valid token", "/whoami", "Bearer user-token", http.StatusOK, "user-1"},
		{"role denied", "/staff", "Bearer user-token", http.StatusForbidden, apperrors.CodeDenied},
		{"role allowed", "/staff", "bearer tech-token", http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.body, string(body))
		})
	}
}
