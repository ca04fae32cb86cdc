package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/identura/authcore/internal/claims"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/util"
)

// contextKey is the type for authz values stored in a request context.
type contextKey string

const permissionContextKey contextKey = "authz-permission-context"

// ContextWithPermission stores a resolved permission context in ctx.
func ContextWithPermission(ctx context.Context, pc *Context) context.Context {
	return context.WithValue(ctx, permissionContextKey, pc)
}

// PermissionFromContext returns the permission context stored in ctx.
func PermissionFromContext(ctx context.Context) (*Context, bool) {
	pc, ok := ctx.Value(permissionContextKey).(*Context)
	return pc, ok
}

// TenantFunc extracts the acting tenant id from a request.
type TenantFunc func(r *http.Request) string

// OrgHintFunc extracts the organization hint from a request.
type OrgHintFunc func(r *http.Request) string

// HTTPAuthorizer resolves and enforces permission contexts for HTTP
// requests.
type HTTPAuthorizer interface {
	// Authorize resolves the permission context for a request and
	// enforces the target. The returned context carries the EnforceOwn
	// flag for post-fetch ownership assertions.
	Authorize(r *http.Request, target string, altTargets ...string) (*Context, error)

	// Middleware returns an HTTP middleware enforcing the target and
	// storing the resolved context on the request.
	Middleware(target string, altTargets ...string) func(http.Handler) http.Handler
}

// httpAuthorizer implements the HTTPAuthorizer interface.
type httpAuthorizer struct {
	resolver *Resolver
	enforcer *Enforcer

	tenantFn  TenantFunc
	orgHintFn OrgHintFunc

	logger observability.Logger
}

// HTTPAuthorizerOption is a functional option for the HTTP authorizer.
type HTTPAuthorizerOption func(*httpAuthorizer)

// WithHTTPAuthorizerLogger sets the logger.
func WithHTTPAuthorizerLogger(logger observability.Logger) HTTPAuthorizerOption {
	return func(a *httpAuthorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithOrgHint sets the organization-hint extractor. The default reads
// the "org" query parameter.
func WithOrgHint(fn OrgHintFunc) HTTPAuthorizerOption {
	return func(a *httpAuthorizer) {
		if fn != nil {
			a.orgHintFn = fn
		}
	}
}

// NewHTTPAuthorizer creates an HTTP authorizer. tenantFn locates the
// acting tenant for each request, usually from the request path.
func NewHTTPAuthorizer(resolver *Resolver, enforcer *Enforcer, tenantFn TenantFunc, opts ...HTTPAuthorizerOption) HTTPAuthorizer {
	a := &httpAuthorizer{
		resolver: resolver,
		enforcer: enforcer,
		tenantFn: tenantFn,
		orgHintFn: func(r *http.Request) string {
			return r.URL.Query().Get("org")
		},
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize resolves and enforces the permission context for a request.
func (a *httpAuthorizer) Authorize(r *http.Request, target string, altTargets ...string) (*Context, error) {
	ctx := r.Context()

	tenantID := a.tenantFn(r)
	if tenantID == "" {
		return nil, util.WrapError(util.ErrNotFound, "acting tenant")
	}

	reset := r.URL.Query().Get("resetCache") == "true"
	snapshot, err := a.resolver.Snapshot(ctx, tenantID, reset)
	if err != nil {
		return nil, err
	}
	if !snapshot.Active {
		return nil, util.WrapError(util.ErrNotFound, "tenant inactive")
	}

	req := Request{
		Method:       r.Method,
		TenantLocked: snapshot.Locked,
		TenantOwner:  snapshot.Owner,
	}

	raw := bearerToken(r)
	if raw == "" {
		pc := &Context{ActingGroup: tenantID}
		if err := a.enforcer.Enforce(pc, req, target, altTargets...); err != nil {
			return nil, err
		}
		return pc, nil
	}

	dc, err := claims.ParseToken([]byte(raw))
	if err != nil {
		return nil, util.WrapError(util.ErrUnauthorized, "malformed token")
	}

	pc, err := a.resolver.Resolve(ctx, dc, snapshot, a.orgHintFn(r))
	if err != nil {
		return nil, err
	}

	req.ActorPresent = true
	if err := a.enforcer.Enforce(pc, req, target, altTargets...); err != nil {
		return nil, err
	}
	return pc, nil
}

// Middleware returns an HTTP middleware enforcing the target.
func (a *httpAuthorizer) Middleware(target string, altTargets ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pc, err := a.Authorize(r, target, altTargets...)
			if err != nil {
				a.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPermission(r.Context(), pc)))
		})
	}
}

// deny writes the taxonomy-mapped error response.
func (a *httpAuthorizer) deny(w http.ResponseWriter, r *http.Request, err error) {
	status := util.HTTPStatus(err)
	a.logger.Warn("request denied",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Int("status", status),
		observability.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": http.StatusText(status),
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Ensure httpAuthorizer implements HTTPAuthorizer.
var _ HTTPAuthorizer = (*httpAuthorizer)(nil)
