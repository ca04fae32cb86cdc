package directory

import "context"

// AccessRefKind identifies which grant field a reference query targets.
type AccessRefKind string

// Access reference kinds.
const (
	RefOrganization AccessRefKind = "organization"
	RefDomain       AccessRefKind = "domain"
	RefRole         AccessRefKind = "role"
)

// TenantStore provides tenant lookups.
type TenantStore interface {
	// GetTenant returns the tenant by id. Returns util.ErrNotFound if
	// the tenant does not exist.
	GetTenant(ctx context.Context, id string) (*Tenant, error)
}

// AccountStore provides account lookups and access-list persistence.
type AccountStore interface {
	// GetAccount returns the account by id within a tenant.
	GetAccount(ctx context.Context, tenantID, id string) (*Account, error)

	// UpdateAccess replaces the account's full access list. The
	// replacement is a single-document overwrite; concurrent writers
	// racing on the same account follow last-writer-wins.
	UpdateAccess(ctx context.Context, tenantID, accountID string, access []OrganizationAccess) error

	// FindReferencing returns the ids of accounts within a tenant
	// whose access lists reference the given organization, domain, or
	// role id.
	FindReferencing(ctx context.Context, tenantID string, kind AccessRefKind, refID string) ([]string, error)
}

// OrganizationStore provides organization lookups.
type OrganizationStore interface {
	GetOrganization(ctx context.Context, tenantID, id string) (*Organization, error)
}

// DomainStore provides domain lookups scoped to an organization.
type DomainStore interface {
	GetDomain(ctx context.Context, tenantID, orgID, id string) (*Domain, error)
}

// ProductStore provides product lookups.
type ProductStore interface {
	GetProduct(ctx context.Context, tenantID, id string) (*Product, error)
}

// RoleStore provides role lookups scoped to a tenant.
type RoleStore interface {
	// GetRole returns the role by id within a tenant; org scoping
	// (custom vs global) is the caller's concern.
	GetRole(ctx context.Context, tenantID, id string) (*Role, error)

	// FindRoleByCode returns the role matching a product coded id and
	// role coded id pair.
	FindRoleByCode(ctx context.Context, tenantID, productCodedID, roleCodedID string) (*Role, error)
}

// Stores bundles the full set of directory contracts.
type Stores interface {
	TenantStore
	AccountStore
	OrganizationStore
	DomainStore
	ProductStore
	RoleStore
}
