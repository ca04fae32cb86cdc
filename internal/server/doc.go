// Package server exposes the access API over HTTP: projected access
// views (including the token indirection callback), organization grant
// writes, and grant usage queries for deletion guards.
//
// The server is routing, binding, and status mapping only; all
// behavior lives in the access and authz packages.
package server
