// Package claims encodes minimized access views into token claims and
// decodes them back off parsed tokens.
//
// Token size is bounded by the issuing protocol, so views over a
// configurable threshold are replaced by a callback URL the verifier
// can call for the live view. Signature handling stays with the
// issuing protocol; this package only reads and writes claims.
package claims
