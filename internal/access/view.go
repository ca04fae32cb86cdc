package access

import "strings"

// TenantFlags describes the account's standing within the tenant the
// view was built for.
type TenantFlags struct {
	// ID is the tenant id.
	ID string `json:"id"`

	// Owner is true when the account owns the tenant.
	Owner bool `json:"owner"`

	// Member is true when the account belongs to the tenant.
	Member bool `json:"member"`
}

// RoleEntry is a role emitted into a view.
type RoleEntry struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	AssociatedProduct string `json:"associatedProduct"`
}

// OrganizationView is the per-organization slice of a full view.
type OrganizationView struct {
	ID string `json:"id"`

	// DomainAccess is the resolved domain ids for this organization.
	DomainAccess []string `json:"domainAccess"`

	// ProductAccess is the product ids derived from the resolved
	// domains, deduplicated.
	ProductAccess []string `json:"productAccess"`

	// ProductRoles are roles whose product is a member of
	// ProductAccess for this organization.
	ProductRoles []RoleEntry `json:"productRoles"`

	// MiscRoles are roles held but not backed by a domain-derived
	// product; populated only when requested.
	MiscRoles []RoleEntry `json:"miscRoles,omitempty"`
}

// View is the full cross-organization access view for one account.
type View struct {
	Sub    string `json:"sub"`
	Tenant TenantFlags `json:"tenant"`

	Access []OrganizationView `json:"access"`
}

// OrgStrings is the per-organization slice of a minimized view; each
// field is a space-joined, deduplicated string.
type OrgStrings struct {
	Domains     string `json:"domains,omitempty"`
	Products    string `json:"products,omitempty"`
	Roles       string `json:"roles,omitempty"`
	MiscRoles   string `json:"miscRoles,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// MinimizedView is the condensed access view sized for token
// embedding. Each plural field is a single space-joined string of the
// deduplicated flat accumulators; OrgDomains entries use
// "org::domain". ByOrg carries the same data grouped per organization
// for claim namespacing.
type MinimizedView struct {
	Sub       string `json:"sub"`
	AuthGroup string `json:"authGroup"`
	Owner     bool   `json:"owner"`
	Member    bool   `json:"member"`

	Orgs         string `json:"orgs,omitempty"`
	OrgDomains   string `json:"orgDomains,omitempty"`
	Products     string `json:"products,omitempty"`
	ProductRoles string `json:"productRoles,omitempty"`
	MiscRoles    string `json:"miscRoles,omitempty"`
	Permissions  string `json:"permissions,omitempty"`

	ByOrg map[string]*OrgStrings `json:"-"`
}

// FlatSize returns the total byte length of the flat string fields.
// This is the size measure used to decide claim inlining.
func (v *MinimizedView) FlatSize() int {
	return len(v.Orgs) + len(v.OrgDomains) + len(v.Products) +
		len(v.ProductRoles) + len(v.MiscRoles) + len(v.Permissions)
}

// GroupString renders the flat access-group claim value.
func (v *MinimizedView) GroupString() string {
	var parts []string
	if v.Owner {
		parts = append(parts, "owner")
	}
	if v.Member {
		parts = append(parts, "member")
	}
	return strings.Join(parts, " ")
}

// stringSet accumulates unique strings preserving insertion order.
type stringSet struct {
	seen  map[string]struct{}
	items []string
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]struct{})}
}

func (s *stringSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *stringSet) contains(v string) bool {
	_, ok := s.seen[v]
	return ok
}

func (s *stringSet) values() []string {
	return s.items
}

func (s *stringSet) joined() string {
	return strings.Join(s.items, " ")
}
