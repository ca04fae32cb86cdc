package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identura/authcore/internal/access"
	"github.com/identura/authcore/internal/authz"
	"github.com/identura/authcore/internal/cache"
	"github.com/identura/authcore/internal/claims"
	"github.com/identura/authcore/internal/config"
	"github.com/identura/authcore/internal/directory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newDirectory() *directory.MemoryStore {
	store := directory.NewMemoryStore()
	store.PutTenant(&directory.Tenant{
		ID: "t1", Owner: "u-owner", Active: true,
		PrimaryOrganization: "o1",
		CoreProducts:        []string{"p1"},
	})
	store.PutProduct(&directory.Product{ID: "p1", TenantID: "t1", CodedID: "core"})
	store.PutOrganization(&directory.Organization{
		ID: "o1", TenantID: "t1", AssociatedProducts: []string{"p1"},
	})
	store.PutDomain(&directory.Domain{
		ID: "d1", TenantID: "t1", OrganizationID: "o1",
		AssociatedOrgProducts: []string{"p1"},
	})
	store.PutRole(&directory.Role{
		ID: "r1", TenantID: "t1", Name: "Reader",
		ProductID: "p1", ProductCodedID: "core", CodedID: "reader",
		Permissions: []directory.PermissionRef{{ID: "perm-1", Coded: "widgets::read"}},
	})
	store.PutAccount(&directory.Account{ID: "u1", TenantID: "t1"})
	return store
}

func newTestServer(store *directory.MemoryStore, opts ...Option) *Server {
	grants := access.NewGrantStore(store, store, store)
	projector := access.NewProjector(store, store, store, store)
	return New(config.ServerConfig{Addr: ":0"}, grants, projector, opts...)
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestServer_DefineAndGetAccess(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newDirectory())

	rec := doJSON(t, srv.Engine(), http.MethodPut, "/api/t1/organization/o1/access/u1",
		access.GrantRequest{Domains: []string{"d1"}, Roles: []string{"r1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var grant directory.OrganizationAccess
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))
	assert.Equal(t, "o1", grant.OrganizationID)
	assert.Equal(t, []string{"d1"}, grant.DomainIDs)

	rec = doJSON(t, srv.Engine(), http.MethodGet, "/api/t1/access/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view access.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "u1", view.Sub)
	require.Len(t, view.Access, 1)
	assert.Equal(t, []string{"p1"}, view.Access[0].ProductAccess)
	require.Len(t, view.Access[0].ProductRoles, 1)
	assert.Equal(t, "Reader", view.Access[0].ProductRoles[0].Name)
}

func TestServer_GetAccess_Minimized(t *testing.T) {
	t.Parallel()

	store := newDirectory()
	store.PutAccount(&directory.Account{
		ID: "u1", TenantID: "t1",
		Access: []directory.OrganizationAccess{{
			OrganizationID: "o1",
			DomainIDs:      []string{"d1"},
			RoleIDs:        []string{"r1"},
		}},
	})
	srv := newTestServer(store)

	rec := doJSON(t, srv.Engine(), http.MethodGet, "/api/t1/access/u1?minimized=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view access.MinimizedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "o1", view.Orgs)
	assert.Equal(t, "o1::d1", view.OrgDomains)
	assert.Equal(t, "p1", view.Products)
	assert.Equal(t, "core::reader", view.ProductRoles)
}

func TestServer_DefineAccess_ValidationPayload(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newDirectory())

	rec := doJSON(t, srv.Engine(), http.MethodPut, "/api/t1/organization/o1/access/u1",
		access.GrantRequest{Domains: []string{"nope"}, Roles: []string{"ghost"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload struct {
		Domains []string `json:"domains"`
		Roles   []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{"nope"}, payload.Domains)
	assert.Equal(t, []string{"ghost"}, payload.Roles)
}

func TestServer_DefineAccess_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newDirectory())

	req := httptest.NewRequest(http.MethodPut, "/api/t1/organization/o1/access/u1",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RemoveAccess(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newDirectory())

	rec := doJSON(t, srv.Engine(), http.MethodPut, "/api/t1/organization/o1/access/u1",
		access.GrantRequest{Domains: []string{"d1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.Engine(), http.MethodDelete, "/api/t1/organization/o1/access/u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv.Engine(), http.MethodDelete, "/api/t1/organization/o1/access/u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_UnknownAccount(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newDirectory())

	rec := doJSON(t, srv.Engine(), http.MethodGet, "/api/t1/access/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Usage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newDirectory())

	rec := doJSON(t, srv.Engine(), http.MethodPut, "/api/t1/organization/o1/access/u1",
		access.GrantRequest{Domains: []string{"d1"}, Roles: []string{"r1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var usage struct {
		Accounts []string `json:"accounts"`
		InUse    bool     `json:"inUse"`
	}

	rec = doJSON(t, srv.Engine(), http.MethodGet, "/api/t1/usage/role/r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.True(t, usage.InUse)
	assert.Equal(t, []string{"u1"}, usage.Accounts)

	rec = doJSON(t, srv.Engine(), http.MethodGet, "/api/t1/usage/domain/d-unused", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.False(t, usage.InUse)
	assert.Empty(t, usage.Accounts)

	rec = doJSON(t, srv.Engine(), http.MethodGet, "/api/t1/usage/bogus/x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newDirectory())

	rec := doJSON(t, srv.Engine(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ProtectedRoutes(t *testing.T) {
	t.Parallel()

	store := newDirectory()
	store.PutAccount(&directory.Account{
		ID: "u1", TenantID: "t1",
		Access: []directory.OrganizationAccess{{
			OrganizationID: "o1",
			DomainIDs:      []string{"d1"},
			RoleIDs:        []string{"r1"},
		}},
	})
	// The reader role also guards the access API itself.
	store.PutRole(&directory.Role{
		ID: "r1", TenantID: "t1", Name: "Reader",
		ProductID: "p1", ProductCodedID: "core", CodedID: "reader",
		Permissions: []directory.PermissionRef{
			{ID: "perm-1", Coded: "widgets::read"},
			{ID: "perm-2", Coded: "access::read"},
		},
	})

	tenantCache, err := cache.New(&config.CacheConfig{
		Enabled: true, Type: config.CacheTypeMemory, MaxEntries: 16,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tenantCache.Close() })

	projector := access.NewProjector(store, store, store, store)
	resolver := authz.NewResolver(store, store, projector, tenantCache, config.PlatformConfig{
		RootGroup: "root",
	})
	enforcer := authz.NewEnforcer(false, "plugins")
	authorizer := authz.NewHTTPAuthorizer(resolver, enforcer, TenantFromPath)

	srv := newTestServer(store, WithAuthorizer(authorizer))

	// No token.
	rec := doJSON(t, srv.Engine(), http.MethodGet, "/api/t1/access/u1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Issue a token from the account's own projected access.
	view, err := projector.ProjectMinimized(context.Background(), "t1", "u1", access.Filter{})
	require.NoError(t, err)
	set, err := claims.NewEncoder(4, "https://auth.example.com").Encode(view)
	require.NoError(t, err)
	tok, err := claims.BuildToken("u1", "t1", "t1", set)
	require.NoError(t, err)
	raw, err := claims.SerializeInsecure(tok)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/t1/access/u1?org=o1&minimized=true", nil)
	req.Header.Set("Authorization", "Bearer "+string(raw))
	rec2 := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	var minimized access.MinimizedView
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &minimized))
	assert.Equal(t, "o1", minimized.Orgs)
}
