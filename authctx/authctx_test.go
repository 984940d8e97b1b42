package authctx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/authctx"
)

func TestMiddlewarePopulatesContextFromHeaders(t *testing.T) {
	var captured authctx.Context
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, ok = authctx.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
	req.Header.Set("X-Tenant-Id", "tenant-a")
	req.Header.Set("X-Actor-Id", "actor-1")
	req.Header.Set("X-Actor-Type", "admin")

	rec := httptest.NewRecorder()
	authctx.Middleware(next).ServeHTTP(rec, req)

	require.True(t, ok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, authctx.Context{
		TenantID:  "tenant-a",
		ActorID:   "actor-1",
		ActorType: authctx.ActorTypeAdmin,
	}, captured)
}

func TestMiddlewareDefaultsActorTypeToIdentityProvider(t *testing.T) {
	var captured authctx.Context
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = authctx.FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
	req.Header.Set("X-Tenant-Id", "tenant-a")

	rec := httptest.NewRecorder()
	authctx.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, authctx.ActorTypeIdentityProvider, captured.ActorType)
	assert.Empty(t, captured.ActorID)
}

func TestMiddlewareRejectsMissingTenantHeader(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
	rec := httptest.NewRecorder()
	authctx.Middleware(next).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Tenant-Id")
}

func TestFromContextMissing(t *testing.T) {
	_, ok := authctx.FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
