package authz

// Group access tiers. Owner and member come from stored grants; super
// and client-super are appended by root elevation at resolve time.
const (
	AccessOwner       = "owner"
	AccessMember      = "member"
	AccessSuper       = "super"
	AccessClientSuper = "client-super"
)

// Core is the acting tenant's enforcement scope: its administrative
// products by id and by coded id, and its primary organization.
type Core struct {
	TenantID     string
	PrimaryOrg   string
	Products     []string
	ProductCodes []string
}

// Context is the effective permission context for one request. It is
// ephemeral; nothing in it outlives the request.
type Context struct {
	Sub string

	// SubjectGroup is the actor's home tenant; ActingGroup is the
	// tenant the request runs against.
	SubjectGroup string
	ActingGroup  string

	// OrgContext is the organization the request is scoped to.
	OrgContext string

	GroupAccess   []string
	Organizations []string

	// Domains holds "org::domain" entries scoped to OrgContext plus
	// the primary organization.
	Domains     []string
	Products    []string
	Roles       []RoleRef
	Permissions []Permission

	Core Core

	ClientCredential bool

	// EnforceOwn is set by Enforce when every matched permission was
	// ownership-qualified; the ownership assertions are no-ops until
	// it is set.
	EnforceOwn bool
}

// HasAccess reports whether the context carries the given tier.
func (c *Context) HasAccess(tier string) bool {
	for _, t := range c.GroupAccess {
		if t == tier {
			return true
		}
	}
	return false
}

// HasOrganization reports whether the organization id is in the
// resolved organization list.
func (c *Context) HasOrganization(orgID string) bool {
	for _, o := range c.Organizations {
		if o == orgID {
			return true
		}
	}
	return false
}

// HasDomain reports whether the qualified "org::domain" entry is in
// the resolved domain list.
func (c *Context) HasDomain(orgID, domainID string) bool {
	qualified := orgID + segmentSep + domainID
	for _, d := range c.Domains {
		if d == qualified {
			return true
		}
	}
	return false
}

// HasProduct reports whether the product id is in the resolved
// product list.
func (c *Context) HasProduct(productID string) bool {
	for _, p := range c.Products {
		if p == productID {
			return true
		}
	}
	return false
}
