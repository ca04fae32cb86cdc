package access

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identura/authcore/internal/audit"
	"github.com/identura/authcore/internal/directory"
	"github.com/identura/authcore/internal/util"
)

// captureEmitter records emitted events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureEmitter) Emit(_ context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) all() []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Event(nil), c.events...)
}

// newTestDirectory builds a small two-organization tenant:
//
//	tenant t1 (owner u-owner, primary org o1)
//	  o1: domains d1 -> [p1], d2 -> [p2]
//	  o2: domain  d3 -> [p1]
//	  products p1 (code core), p2 (code billing)
//	  roles  r-reader  global, p1, code reader
//	         r-admin   global, p2, code admin
//	         r-auditor custom to o1, p1, code auditor
//	  accounts u1 (member), u-owner (owner)
func newTestDirectory() *directory.MemoryStore {
	store := directory.NewMemoryStore()

	store.PutTenant(&directory.Tenant{
		ID:                  "t1",
		Owner:               "u-owner",
		Active:              true,
		PrimaryOrganization: "o1",
		CoreProducts:        []string{"p1"},
	})
	store.PutOrganization(&directory.Organization{
		ID: "o1", TenantID: "t1", AssociatedProducts: []string{"p1", "p2"},
	})
	store.PutOrganization(&directory.Organization{
		ID: "o2", TenantID: "t1", AssociatedProducts: []string{"p1"},
	})
	store.PutDomain(&directory.Domain{
		ID: "d1", TenantID: "t1", OrganizationID: "o1",
		AssociatedOrgProducts: []string{"p1"},
	})
	store.PutDomain(&directory.Domain{
		ID: "d2", TenantID: "t1", OrganizationID: "o1",
		AssociatedOrgProducts: []string{"p2"},
	})
	store.PutDomain(&directory.Domain{
		ID: "d3", TenantID: "t1", OrganizationID: "o2",
		AssociatedOrgProducts: []string{"p1"},
	})
	store.PutProduct(&directory.Product{ID: "p1", TenantID: "t1", CodedID: "core"})
	store.PutProduct(&directory.Product{ID: "p2", TenantID: "t1", CodedID: "billing"})

	store.PutRole(&directory.Role{
		ID: "r-reader", TenantID: "t1", Name: "Reader",
		ProductID: "p1", ProductCodedID: "core", CodedID: "reader",
		Permissions: []directory.PermissionRef{
			{ID: "perm-1", Coded: "widgets::read"},
			{ID: "perm-2", Coded: "widgets::update:own"},
		},
	})
	store.PutRole(&directory.Role{
		ID: "r-admin", TenantID: "t1", Name: "Billing Admin",
		ProductID: "p2", ProductCodedID: "billing", CodedID: "admin",
		Permissions: []directory.PermissionRef{
			{ID: "perm-3", Coded: "invoices::write"},
		},
	})
	store.PutRole(&directory.Role{
		ID: "r-auditor", TenantID: "t1", Name: "Auditor",
		ProductID: "p1", ProductCodedID: "core", CodedID: "auditor",
		OrganizationID: "o1",
		Permissions: []directory.PermissionRef{
			{ID: "perm-1", Coded: "widgets::read"},
		},
	})

	store.PutAccount(&directory.Account{ID: "u1", TenantID: "t1"})
	store.PutAccount(&directory.Account{ID: "u-owner", TenantID: "t1"})

	return store
}

func TestGrantStore_DefineAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestDirectory()
	emitter := &captureEmitter{}
	grants := NewGrantStore(store, store, store, WithGrantEmitter(emitter))

	grant, err := grants.DefineAccess(ctx, "t1", "u1", "o1", GrantRequest{
		Domains: []string{"d1", "d2", "d1"},
		Roles:   []string{"r-reader", "r-reader", "r-auditor"},
	})
	require.NoError(t, err)

	assert.Equal(t, "o1", grant.OrganizationID)
	assert.Equal(t, []string{"d1", "d2"}, grant.DomainIDs)
	assert.Equal(t, []string{"r-reader", "r-auditor"}, grant.RoleIDs)

	access, err := grants.GetAccess(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, access, 1)
	assert.Equal(t, *grant, access[0])

	events := emitter.all()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventAccessDefined, events[0].Type)
	assert.Equal(t, "u1", events[0].AccountID)
	require.NotNil(t, events[0].Grant)
	assert.Equal(t, []string{"d1", "d2"}, events[0].Grant.DomainIDs)
}

func TestGrantStore_DefineAccess_ReplacesExistingGrant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestDirectory()
	grants := NewGrantStore(store, store, store)

	_, err := grants.DefineAccess(ctx, "t1", "u1", "o1", GrantRequest{
		Domains: []string{"d1"},
		Roles:   []string{"r-reader"},
	})
	require.NoError(t, err)
	_, err = grants.DefineAccess(ctx, "t1", "u1", "o2", GrantRequest{
		Domains: []string{"d3"},
	})
	require.NoError(t, err)

	// Full replacement of the o1 grant must not touch the o2 grant or
	// change ordering.
	_, err = grants.DefineAccess(ctx, "t1", "u1", "o1", GrantRequest{
		Domains: []string{"d2"},
		Roles:   []string{"r-admin"},
	})
	require.NoError(t, err)

	access, err := grants.GetAccess(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, access, 2)
	assert.Equal(t, "o1", access[0].OrganizationID)
	assert.Equal(t, []string{"d2"}, access[0].DomainIDs)
	assert.Equal(t, []string{"r-admin"}, access[0].RoleIDs)
	assert.Equal(t, "o2", access[1].OrganizationID)
}

func TestGrantStore_DefineAccess_ValidationFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestDirectory()
	grants := NewGrantStore(store, store, store)

	tests := []struct {
		name       string
		req        GrantRequest
		badDomains []string
		badRoles   []string
	}{
		{
			name:       "unknown domain",
			req:        GrantRequest{Domains: []string{"d1", "nope"}, Roles: []string{"r-reader"}},
			badDomains: []string{"nope"},
		},
		{
			name:     "unknown role",
			req:      GrantRequest{Domains: []string{"d1"}, Roles: []string{"ghost"}},
			badRoles: []string{"ghost"},
		},
		{
			name:       "domain from another organization",
			req:        GrantRequest{Domains: []string{"d3"}},
			badDomains: []string{"d3"},
		},
		{
			name:       "both lists reported together",
			req:        GrantRequest{Domains: []string{"d3"}, Roles: []string{"ghost"}},
			badDomains: []string{"d3"},
			badRoles:   []string{"ghost"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := grants.DefineAccess(ctx, "t1", "u1", "o1", tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrInvalidInput)

			var verr *util.GrantValidationError
			require.True(t, errors.As(err, &verr))
			assert.ElementsMatch(t, tt.badDomains, verr.Domains)
			assert.ElementsMatch(t, tt.badRoles, verr.Roles)
		})
	}

	// Nothing was persisted by any rejected write.
	access, err := grants.GetAccess(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Empty(t, access)
}

func TestGrantStore_DefineAccess_CustomRoleScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestDirectory()
	grants := NewGrantStore(store, store, store)

	// r-auditor is scoped to o1; granting it inside o2 is rejected.
	_, err := grants.DefineAccess(ctx, "t1", "u1", "o2", GrantRequest{
		Domains: []string{"d3"},
		Roles:   []string{"r-auditor"},
	})
	require.Error(t, err)

	var verr *util.GrantValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"r-auditor"}, verr.Roles)
}

func TestGrantStore_DefineAccess_UnknownAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestDirectory()
	grants := NewGrantStore(store, store, store)

	_, err := grants.DefineAccess(ctx, "t1", "ghost", "o1", GrantRequest{
		Domains: []string{"d1"},
	})
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestGrantStore_RemoveOrgFromAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestDirectory()
	emitter := &captureEmitter{}
	grants := NewGrantStore(store, store, store, WithGrantEmitter(emitter))

	// No grants at all.
	err := grants.RemoveOrgFromAccess(ctx, "t1", "u1", "o1")
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = grants.DefineAccess(ctx, "t1", "u1", "o1", GrantRequest{Domains: []string{"d1"}})
	require.NoError(t, err)
	_, err = grants.DefineAccess(ctx, "t1", "u1", "o2", GrantRequest{Domains: []string{"d3"}})
	require.NoError(t, err)

	// Grant exists for other orgs but not this one.
	err = grants.RemoveOrgFromAccess(ctx, "t1", "u1", "o-missing")
	assert.ErrorIs(t, err, util.ErrNotFound)

	err = grants.RemoveOrgFromAccess(ctx, "t1", "u1", "o1")
	require.NoError(t, err)

	access, err := grants.GetAccess(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, access, 1)
	assert.Equal(t, "o2", access[0].OrganizationID)

	events := emitter.all()
	removed := events[len(events)-1]
	assert.Equal(t, audit.EventAccessRemoved, removed.Type)
	assert.Nil(t, removed.Grant)
}

func TestGrantStore_Usage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestDirectory()
	grants := NewGrantStore(store, store, store)

	_, err := grants.DefineAccess(ctx, "t1", "u1", "o1", GrantRequest{
		Domains: []string{"d1"},
		Roles:   []string{"r-reader"},
	})
	require.NoError(t, err)

	orgUsers, err := grants.UsageForOrganization(ctx, "t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, orgUsers)

	domainUsers, err := grants.UsageForDomain(ctx, "t1", "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, domainUsers)

	roleUsers, err := grants.UsageForRole(ctx, "t1", "r-reader")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, roleUsers)

	unused, err := grants.UsageForRole(ctx, "t1", "r-admin")
	require.NoError(t, err)
	assert.Empty(t, unused)
}
