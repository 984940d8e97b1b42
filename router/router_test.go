package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/adapter"
	"github.com/marcelom97/scimgateway/authctx"
	"github.com/marcelom97/scimgateway/repository"
	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/store/memstore"
	"github.com/marcelom97/scimgateway/transform"
	"github.com/marcelom97/scimgateway/transform/cache"
)

// newTestRouter builds a Router over a fresh in-memory store, wrapped in
// authctx.Middleware exactly as the gateway's own Handler() does, so tests
// exercise the same tenant-extraction path real requests take.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	s := memstore.New()
	engine := transform.NewEngine(
		cache.NewRuleCache[transform.Rule](cache.NewMemoryBackend(), time.Minute, func(ctx context.Context, tenantID, providerID string) ([]transform.Rule, error) {
			return nil, nil
		}),
		cache.NewRegexCache(time.Second),
		nil,
	)
	rt := New(Config{
		Users:    repository.NewUserRepo(s),
		Groups:   repository.NewGroupRepo(s),
		Engine:   engine,
		Adapters: adapter.NewRegistry(),
		BaseURL:  "http://localhost:8080",
	})
	return authctx.Middleware(rt)
}

func doRequest(t *testing.T, h http.Handler, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouterMissingTenantHeaderRejected(t *testing.T) {
	h := newTestRouter(t)
	w := doRequest(t, h, http.MethodGet, "/scim/v2/Users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterCreateAndGetUser(t *testing.T) {
	h := newTestRouter(t)

	w := doRequest(t, h, http.MethodPost, "/scim/v2/Users", "tenant-a", map[string]any{
		"userName": "alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))
	assert.Equal(t, `W/"1"`, w.Header().Get("ETag"))

	var created scim.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = doRequest(t, h, http.MethodGet, "/scim/v2/Users/"+created.ID, "tenant-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `W/"1"`, w.Header().Get("ETag"))
}

func TestRouterUserNotVisibleFromOtherTenant(t *testing.T) {
	h := newTestRouter(t)

	w := doRequest(t, h, http.MethodPost, "/scim/v2/Users", "tenant-a", map[string]any{"userName": "bob"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created scim.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doRequest(t, h, http.MethodGet, "/scim/v2/Users/"+created.ID, "tenant-b", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterListUsersFilterByUserName(t *testing.T) {
	h := newTestRouter(t)

	doRequest(t, h, http.MethodPost, "/scim/v2/Users", "tenant-a", map[string]any{"userName": "carol"})
	doRequest(t, h, http.MethodPost, "/scim/v2/Users", "tenant-a", map[string]any{"userName": "dave"})

	q := url.Values{"filter": {`userName eq "carol"`}}
	w := doRequest(t, h, http.MethodGet, "/scim/v2/Users?"+q.Encode(), "tenant-a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp scim.ListResponse[scim.User]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, "carol", resp.Resources[0].UserName)
}

func TestRouterPatchSecondPrimaryEmailReturns400InvalidSyntax(t *testing.T) {
	h := newTestRouter(t)

	w := doRequest(t, h, http.MethodPost, "/scim/v2/Users", "tenant-a", map[string]any{
		"userName": "erin",
		"emails":   []map[string]any{{"value": "erin@example.com", "type": "work", "primary": true}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created scim.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	patch := scim.PatchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []scim.PatchOperation{
			{Op: "add", Path: "emails", Value: []map[string]any{{"value": "erin2@example.com", "type": "home", "primary": true}}},
		},
	}
	w = doRequest(t, h, http.MethodPatch, "/scim/v2/Users/"+created.ID, "tenant-a", patch)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var scimErr scim.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scimErr))
	assert.Equal(t, "invalidSyntax", scimErr.ScimType)
}

func TestRouterReplaceRequiresIfMatchOnStaleVersion(t *testing.T) {
	h := newTestRouter(t)

	w := doRequest(t, h, http.MethodPost, "/scim/v2/Users", "tenant-a", map[string]any{"userName": "frank"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created scim.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodPut, "/scim/v2/Users/"+created.ID, jsonBody(t, map[string]any{"userName": "frank2"}))
	req.Header.Set("X-Tenant-Id", "tenant-a")
	req.Header.Set("If-Match", `W/"99"`)
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestRouterDeleteUser(t *testing.T) {
	h := newTestRouter(t)

	w := doRequest(t, h, http.MethodPost, "/scim/v2/Users", "tenant-a", map[string]any{"userName": "gina"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created scim.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doRequest(t, h, http.MethodDelete, "/scim/v2/Users/"+created.ID, "tenant-a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, http.MethodGet, "/scim/v2/Users/"+created.ID, "tenant-a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterCreateGroupAndAddMember(t *testing.T) {
	h := newTestRouter(t)

	w := doRequest(t, h, http.MethodPost, "/scim/v2/Groups", "tenant-a", map[string]any{"displayName": "engineers"})
	require.Equal(t, http.StatusCreated, w.Code)
	var group scim.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
	assert.Equal(t, `W/"1"`, w.Header().Get("ETag"))

	w = doRequest(t, h, http.MethodGet, "/scim/v2/Groups/"+group.ID, "tenant-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterServiceProviderConfigAndResourceTypes(t *testing.T) {
	h := newTestRouter(t)

	w := doRequest(t, h, http.MethodGet, "/scim/v2/ServiceProviderConfig", "tenant-a", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, http.MethodGet, "/scim/v2/ResourceTypes", "tenant-a", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, http.MethodGet, "/scim/v2/Schemas", "tenant-a", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}
