// Package directory defines the entity model of the multi-tenant
// identity platform and the store contracts the authorization core
// consumes.
package directory

import "strings"

// Tenant is an isolated customer realm (auth group). It owns
// organizations, products, and roles.
type Tenant struct {
	// ID is the tenant identifier.
	ID string `json:"id" yaml:"id"`

	// Owner is the owning account id, or the bootstrap email before
	// the owner account exists.
	Owner string `json:"owner" yaml:"owner"`

	// Active indicates whether the tenant accepts requests.
	Active bool `json:"active" yaml:"active"`

	// Locked blocks open account registration.
	Locked bool `json:"locked" yaml:"locked"`

	// PrimaryOrganization is the tenant's designated default
	// organization; its grants are always additive to context.
	PrimaryOrganization string `json:"primaryOrganization" yaml:"primaryOrganization"`

	// CoreProducts is the fixed set of the tenant's own administrative
	// product ids.
	CoreProducts []string `json:"coreProducts" yaml:"coreProducts"`
}

// Account is a user or machine identity within a tenant.
type Account struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenantId" yaml:"tenantId"`

	// Access is the ordered list of per-organization grants, at most
	// one entry per organization id. Uniqueness is enforced at write
	// time, not by storage.
	Access []OrganizationAccess `json:"access" yaml:"access"`
}

// OrganizationAccess is an account's grant within one organization.
type OrganizationAccess struct {
	OrganizationID string   `json:"organizationId" yaml:"organizationId"`
	DomainIDs      []string `json:"domainIds" yaml:"domainIds"`
	RoleIDs        []string `json:"roleIds" yaml:"roleIds"`
}

// Organization is a customer-facing grouping within a tenant.
type Organization struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenantId" yaml:"tenantId"`

	// AssociatedProducts is the set of product ids exposed by this
	// organization.
	AssociatedProducts []string `json:"associatedProducts" yaml:"associatedProducts"`
}

// Domain is a sub-unit of an organization that gates which products an
// account can reach.
type Domain struct {
	ID             string `json:"id" yaml:"id"`
	OrganizationID string `json:"organizationId" yaml:"organizationId"`
	TenantID       string `json:"tenantId" yaml:"tenantId"`

	// AssociatedOrgProducts is the set of organization product ids
	// reachable through this domain.
	AssociatedOrgProducts []string `json:"associatedOrgProducts" yaml:"associatedOrgProducts"`
}

// Product is a billable or administrable unit; roles and permissions
// are scoped to one product.
type Product struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenantId" yaml:"tenantId"`

	// CodedID is a short, human-stable code for the product.
	CodedID string `json:"codedId" yaml:"codedId"`
}

// PermissionRef is a role's reference to a permission: the permission
// id together with its precomputed coded string, so role evaluation
// never needs a second permission lookup.
type PermissionRef struct {
	ID    string `json:"id" yaml:"id"`
	Coded string `json:"coded" yaml:"coded"`
}

// Role is a named bundle of permission references, global to a product
// or custom to one organization.
type Role struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenantId" yaml:"tenantId"`
	Name     string `json:"name" yaml:"name"`

	ProductID      string `json:"productId" yaml:"productId"`
	ProductCodedID string `json:"productCodedId" yaml:"productCodedId"`

	// OrganizationID is set for custom, organization-scoped roles.
	// Empty means the role is global to the product.
	OrganizationID string `json:"organizationId,omitempty" yaml:"organizationId,omitempty"`

	CodedID string `json:"codedId" yaml:"codedId"`

	Permissions []PermissionRef `json:"permissions" yaml:"permissions"`
}

// Custom reports whether the role is scoped to one organization.
func (r *Role) Custom() bool {
	return r.OrganizationID != ""
}

// Permission is an atomic target/action capability.
type Permission struct {
	ID        string `json:"id" yaml:"id"`
	TenantID  string `json:"tenantId" yaml:"tenantId"`
	ProductID string `json:"productId" yaml:"productId"`

	Target string `json:"target" yaml:"target"`
	Action string `json:"action" yaml:"action"`

	// OwnershipRequired marks the permission as self-service only: a
	// grant holder may act on resources they own.
	OwnershipRequired bool `json:"ownershipRequired" yaml:"ownershipRequired"`
}

// Coded returns the permission's coded string. It is a pure function
// of (target, action, ownershipRequired) and must stay stable for role
// references to remain valid.
func (p *Permission) Coded() string {
	coded := codeSegment(p.Target) + "::" + codeSegment(p.Action)
	if p.OwnershipRequired {
		coded += ":own"
	}
	return coded
}

func codeSegment(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}

// MemberProductRef returns the pseudo product reference that scopes a
// tenant's baseline member permissions.
func MemberProductRef(tenantID string) string {
	return tenantID + "-member"
}
