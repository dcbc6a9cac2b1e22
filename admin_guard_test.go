package invite_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	invite "github.com/goliatone/go-auth-invite"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func adminToken(t *testing.T, role string) string {
	t.Helper()
	return signHS256(t, testSecret, jwt.MapClaims{
		"sub":          "admin-1",
		"email":        "ops@example.com",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]any{"role": role},
	})
}

func guardedHandler(called *bool) router.HandlerFunc {
	return func(ctx router.Context) error {
		*called = true
		return nil
	}
}

func TestAdminGuard_MissingToken(t *testing.T) {
	guard := invite.AdminGuard(invite.AdminGuardConfig{Verifier: invite.NewHMACVerifier(testSecret)})

	ctx := router.NewMockContext()
	var payload map[string]any
	ctx.On("JSON", http.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	called := false
	require.NoError(t, guard(guardedHandler(&called))(ctx))
	assert.False(t, called)
	assert.Equal(t, invite.TextCodeUnauthorized, payload["code"])

	ctx = router.NewMockContext()
	ctx.HeadersM[router.HeaderAuthorization] = "Basic dXNlcjpwYXNz"
	ctx.On("JSON", http.StatusUnauthorized, mock.Anything).Return(nil)
	require.NoError(t, guard(guardedHandler(&called))(ctx))
	assert.False(t, called)
	ctx.AssertExpectations(t)
}

func TestAdminGuard_InvalidToken(t *testing.T) {
	guard := invite.AdminGuard(invite.AdminGuardConfig{Verifier: invite.NewHMACVerifier(testSecret)})

	forged := signHS256(t, []byte("another-secret-that-is-long-enough-to-sign"), jwt.MapClaims{
		"sub": "admin-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	ctx := router.NewMockContext()
	ctx.HeadersM[router.HeaderAuthorization] = "Bearer " + forged
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", http.StatusUnauthorized, mock.Anything).Return(nil)

	called := false
	require.NoError(t, guard(guardedHandler(&called))(ctx))
	assert.False(t, called)
	ctx.AssertExpectations(t)
}

func TestAdminGuard_ValidTokenSetsActor(t *testing.T) {
	guard := invite.AdminGuard(invite.AdminGuardConfig{
		Verifier:  invite.NewHMACVerifier(testSecret),
		Authorize: invite.RequireRole("admin"),
	})

	ctx := router.NewMockContext()
	ctx.HeadersM[router.HeaderAuthorization] = "Bearer " + adminToken(t, "admin")
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", invite.DefaultAdminContextKey, mock.AnythingOfType("*invite.TokenClaims")).Return(nil)

	var enriched context.Context
	ctx.On("SetContext", mock.Anything).Run(func(args mock.Arguments) {
		enriched = args.Get(0).(context.Context)
	}).Return()

	called := false
	require.NoError(t, guard(guardedHandler(&called))(ctx))
	assert.True(t, called)
	ctx.AssertExpectations(t)

	actor, ok := invite.ActorFromContext(enriched)
	require.True(t, ok)
	assert.Equal(t, invite.ActorRef{ID: "admin-1", Type: "admin"}, actor)

	claims := ctx.LocalsMock[invite.DefaultAdminContextKey].(*invite.TokenClaims)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestAdminGuard_WrongRoleIsForbidden(t *testing.T) {
	guard := invite.AdminGuard(invite.AdminGuardConfig{
		Verifier:  invite.NewHMACVerifier(testSecret),
		Authorize: invite.RequireRole("admin"),
	})

	ctx := router.NewMockContext()
	ctx.HeadersM[router.HeaderAuthorization] = "Bearer " + adminToken(t, "member")
	ctx.On("Context").Return(context.Background())

	var payload map[string]any
	ctx.On("JSON", http.StatusForbidden, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	called := false
	require.NoError(t, guard(guardedHandler(&called))(ctx))
	assert.False(t, called)
	assert.Equal(t, invite.TextCodeForbidden, payload["code"])
}

func TestAdminGuard_Filter(t *testing.T) {
	guard := invite.AdminGuard(invite.AdminGuardConfig{
		Verifier: invite.NewHMACVerifier(testSecret),
		Filter:   func(router.Context) bool { return true },
	})

	called := false
	require.NoError(t, guard(guardedHandler(&called))(router.NewMockContext()))
	assert.True(t, called)
}

func TestAdminGuard_RequiresVerifier(t *testing.T) {
	assert.Panics(t, func() {
		invite.AdminGuard(invite.AdminGuardConfig{})
	})
}

func TestRequireRole(t *testing.T) {
	check := invite.RequireRole("Admin", "service_role")

	assert.NoError(t, check(&invite.TokenClaims{Raw: jwt.MapClaims{"role": "service_role"}}))
	assert.NoError(t, check(&invite.TokenClaims{Raw: jwt.MapClaims{"app_metadata": map[string]any{"role": "admin"}}}))

	err := check(&invite.TokenClaims{Raw: jwt.MapClaims{"role": "authenticated"}})
	require.Error(t, err)
	assert.True(t, invite.IsForbidden(err))
	assert.Error(t, check(nil))
}
