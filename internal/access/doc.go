// Package access implements grant storage and access projection.
//
// A grant records, per organization, the domain and role ids an
// account holds. The GrantStore validates and persists grants; the
// Projector resolves stored grants against the live directory and
// materializes either a full per-organization view or a minimized
// view sized for token embedding.
package access
