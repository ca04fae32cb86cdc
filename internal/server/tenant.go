package server

import (
	"net/http"
	"strings"
)

// TenantFromPath extracts the acting tenant from an access API path
// of the form /api/<group>/..., for wiring into the authorizer.
func TenantFromPath(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "api" {
		return parts[1]
	}
	return ""
}
