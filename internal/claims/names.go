package claims

// Claim names at the token boundary. The four access maps are keyed by
// organization id; the rest are flat strings. ClaimAccessURL is the
// indirection pointer and is mutually exclusive with the access maps.
const (
	// ClaimGroup is the tenant the token was issued for.
	ClaimGroup = "group"

	// ClaimSubjectGroup is the subject's home tenant. It differs from
	// ClaimGroup only for root-tenant subjects acting across tenants.
	ClaimSubjectGroup = "x-subject-group"

	// ClaimClientCredential marks machine (client-credential) tokens.
	ClaimClientCredential = "x-client-credential"

	ClaimAccessGroup   = "x-access-group"
	ClaimOrganizations = "x-access-organizations"
	ClaimDomains       = "x-access-domains"
	ClaimProducts      = "x-access-products"
	ClaimRoles         = "x-access-roles"
	ClaimPermissions   = "x-access-permissions"
	ClaimOrgContext    = "x-organization-context"
	ClaimAccessURL     = "x-access-url"
)
