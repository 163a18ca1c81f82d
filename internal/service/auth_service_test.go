package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/pkg/util/errorutil"
)

func newAuthService(env *testEnv) *AuthService {
	return NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}, env.store.Users, nil)
}

func TestAuthService_RegisterLoginResolve(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	session, err := svc.RegisterUser(ctx, RegisterInput{Name: "Carol", Email: " Carol@Example.com ", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, session.User.Role)
	assert.Equal(t, "carol@example.com", session.User.Email)
	assert.NotEqual(t, testPassword, session.User.PasswordHash)

	actor, err := svc.ResolveActor(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: session.User.ID, Role: domain.RoleUser}, actor)

	login, err := svc.LoginUser(ctx, "carol@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	_, err = svc.LoginUser(ctx, "carol@example.com", "wrong password")
	requireCode(t, err, errorutil.CodeUnauthenticated)
	_, err = svc.LoginUser(ctx, "nobody@example.com", testPassword)
	requireCode(t, err, errorutil.CodeUnauthenticated)

	_, err = svc.RegisterUser(ctx, RegisterInput{Name: "Carol", Email: "carol@example.com", Password: testPassword})
	requireCode(t, err, errorutil.CodeConflict)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	tests := map[string]RegisterInput{
		"no name":        {Email: "x@example.com", Password: testPassword},
		"bad email":      {Name: "X", Email: "not-an-email", Password: testPassword},
		"short password": {Name: "X", Email: "x@example.com", Password: "short"},
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.RegisterUser(context.Background(), input)
			requireCode(t, err, errorutil.CodeValidation)
		})
	}
}

func TestAuthService_ResolveActorUsesCurrentRole(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	session, err := svc.RegisterUser(ctx, RegisterInput{Name: "Dan", Email: "dan@example.com", Password: testPassword})
	require.NoError(t, err)

	user, err := env.store.Users.GetByID(ctx, session.User.ID)
	require.NoError(t, err)
	user.Role = domain.RoleTechnician
	require.NoError(t, env.store.Users.Update(ctx, user))

	actor, err := svc.ResolveActor(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTechnician, actor.Role)

	user.Active = false
	require.NoError(t, env.store.Users.Update(ctx, user))
	_, err = svc.ResolveActor(ctx, session.Token)
	requireCode(t, err, errorutil.CodeUnauthenticated)

	require.NoError(t, env.store.Users.Delete(ctx, user.ID))
	_, err = svc.ResolveActor(ctx, session.Token)
	requireCode(t, err, errorutil.CodeUnauthenticated)

	_, err = svc.ResolveActor(ctx, "garbage")
	requireCode(t, err, errorutil.CodeUnauthenticated)
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()
	session, err := svc.RegisterUser(ctx, RegisterInput{Name: "Eve", Email: "eve@example.com", Password: testPassword})
	require.NoError(t, err)
	actor := domain.Actor{ID: session.User.ID, Role: session.User.Role}

	requireCode(t, svc.ChangePassword(ctx, actor, "wrong password", "new password 1"), errorutil.CodeUnauthenticated)
	requireCode(t, svc.ChangePassword(ctx, actor, testPassword, "short"), errorutil.CodeValidation)
	require.NoError(t, svc.ChangePassword(ctx, actor, testPassword, "new password 1"))

	_, err = svc.LoginUser(ctx, "eve@example.com", "new password 1")
	require.NoError(t, err)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "root@example.com", testPassword))
	require.NoError(t, svc.EnsureAdmin(ctx, "root@example.com", testPassword))
	require.NoError(t, svc.EnsureAdmin(ctx, "", ""))

	session, err := svc.LoginUser(ctx, "root@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, session.User.Role)
}
