// Package authz reconstructs per-request permission contexts from
// token claims and makes allow/deny decisions against them.
//
// The resolver merges the organization-context entry with the acting
// tenant's primary organization, applies root elevation and core
// product filtering, and parses coded permission and role strings into
// structured tuples. The enforcer walks a fixed bypass ladder (open
// account creation, bootstrap, super tier, tenant owner) before exact
// permission matching; ownership-qualified matches defer the final
// decision to an ownership assertion.
package authz
