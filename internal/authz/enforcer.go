package authz

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/identura/authcore/internal/directory"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/util"
)

// Request carries the request facts the enforcer needs beyond the
// permission context.
type Request struct {
	// Method is the HTTP method of the request.
	Method string

	// ActorPresent is false for unauthenticated requests.
	ActorPresent bool

	// Bootstrap marks a bootstrap token, which bypasses everything.
	Bootstrap bool

	// TenantLocked blocks open account registration.
	TenantLocked bool

	// TenantOwner is the acting tenant's owner account id.
	TenantOwner string
}

// accountsTarget is the resource name of open account creation, the
// only operation allowed without an actor.
const accountsTarget = "accounts"

// RoleNameFunc resolves a held role reference to its display name.
type RoleNameFunc func(ctx context.Context, tenantID string, ref RoleRef) (string, error)

// DirectoryRoleNames builds a RoleNameFunc over a role store.
func DirectoryRoleNames(roles directory.RoleStore) RoleNameFunc {
	return func(ctx context.Context, tenantID string, ref RoleRef) (string, error) {
		role, err := roles.FindRoleByCode(ctx, tenantID, ref.ProductCode, ref.RoleCode)
		if err != nil {
			return "", err
		}
		return role.Name, nil
	}
}

// Enforcer makes allow/deny decisions against a resolved permission
// context. Decisions are terminal; nothing here retries.
type Enforcer struct {
	fullSuperControl bool
	pluginNamespace  string
	roleNames        RoleNameFunc

	logger observability.Logger
}

// EnforcerOption configures an Enforcer.
type EnforcerOption func(*Enforcer)

// WithEnforcerLogger sets the logger for the enforcer.
func WithEnforcerLogger(logger observability.Logger) EnforcerOption {
	return func(e *Enforcer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRoleNames sets the role-name resolution function used by
// EnforceRole.
func WithRoleNames(fn RoleNameFunc) EnforcerOption {
	return func(e *Enforcer) {
		if fn != nil {
			e.roleNames = fn
		}
	}
}

// NewEnforcer creates an Enforcer. fullSuperControl widens super
// access to mutating methods; pluginNamespace is the resource prefix
// super admins may always write to.
func NewEnforcer(fullSuperControl bool, pluginNamespace string, opts ...EnforcerOption) *Enforcer {
	e := &Enforcer{
		fullSuperControl: fullSuperControl,
		pluginNamespace:  pluginNamespace,
		logger:           observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// methodAction maps an HTTP method to its permission action.
func methodAction(method string) (string, error) {
	switch method {
	case http.MethodGet:
		return "read", nil
	case http.MethodPost:
		return "create", nil
	case http.MethodPatch, http.MethodPut:
		return "update", nil
	case http.MethodDelete:
		return "delete", nil
	default:
		return "", util.WrapError(util.ErrMethodNotAllowed, fmt.Sprintf("method %s", method))
	}
}

// readCreateOnly reports whether the method is non-mutating for
// existing resources.
func readCreateOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodPost
}

// Enforce checks whether the context may perform req.Method against
// the target, trying alternative targets in order. When every match
// found is ownership-qualified, pc.EnforceOwn is set and the caller
// must follow up with an ownership assertion.
func (e *Enforcer) Enforce(pc *Context, req Request, target string, altTargets ...string) error {
	err := e.enforce(pc, req, target, altTargets...)
	e.record(pc, req, target, err)
	return err
}

func (e *Enforcer) enforce(pc *Context, req Request, target string, altTargets ...string) error {
	if allowed, err := e.bypass(pc, req, target); allowed || err != nil {
		return err
	}

	if len(pc.Core.Products) == 0 || len(pc.GroupAccess) == 0 ||
		!pc.HasAccess(AccessMember) || pc.OrgContext == "" {
		return util.WrapError(util.ErrForbidden, "incomplete permission context")
	}

	action, err := methodAction(req.Method)
	if err != nil {
		return err
	}

	productRefs := make([]string, 0, len(pc.Core.ProductCodes)+len(pc.Core.Products)+1)
	productRefs = append(productRefs, pc.Core.ProductCodes...)
	productRefs = append(productRefs, pc.Core.Products...)
	productRefs = append(productRefs, directory.MemberProductRef(pc.Core.TenantID))

	// Targets compound: each attempt joins all targets tried so far.
	tried := make([]string, 0, 1+len(altTargets))
	for _, t := range append([]string{target}, altTargets...) {
		tried = append(tried, t)
		compound := strings.Join(tried, "-")

		matched := false
		allOwn := true
		for _, ref := range productRefs {
			for _, p := range pc.Permissions {
				if p.Matches(ref, compound, action) {
					matched = true
					if !p.Own {
						allOwn = false
					}
				}
			}
		}
		if matched {
			if allOwn {
				pc.EnforceOwn = true
			}
			return nil
		}
	}

	return util.WrapError(util.ErrForbidden, fmt.Sprintf("no permission for %s %s", req.Method, target))
}

// EnforceRole requires the actor to hold a role whose resolved display
// name equals roleName. The same bypass ladder as Enforce applies.
func (e *Enforcer) EnforceRole(ctx context.Context, pc *Context, req Request, roleName string) error {
	if allowed, err := e.bypass(pc, req, ""); allowed || err != nil {
		e.record(pc, req, "role:"+roleName, err)
		return err
	}

	if e.roleNames != nil {
		for _, ref := range pc.Roles {
			name, err := e.roleNames(ctx, pc.Core.TenantID, ref)
			if util.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if name == roleName {
				e.record(pc, req, "role:"+roleName, nil)
				return nil
			}
		}
	}

	err := util.WrapError(util.ErrForbidden, fmt.Sprintf("role %q not held", roleName))
	e.record(pc, req, "role:"+roleName, err)
	return err
}

// bypass runs the shared early-allow ladder: open account creation,
// bootstrap, super tier, tenant owner. It returns (true, nil) on
// allow, (false, err) on terminal deny, and (false, nil) when normal
// enforcement must continue.
func (e *Enforcer) bypass(pc *Context, req Request, target string) (bool, error) {
	if !req.ActorPresent {
		if req.Method == http.MethodPost && target == accountsTarget && !req.TenantLocked {
			return true, nil
		}
		return false, util.WrapError(util.ErrUnauthorized, "no actor")
	}

	if req.Bootstrap {
		return true, nil
	}

	if pc.HasAccess(AccessSuper) {
		switch {
		case e.fullSuperControl:
			return true, nil
		case readCreateOnly(req.Method):
			return true, nil
		case e.pluginNamespace != "" && strings.HasPrefix(target, e.pluginNamespace):
			return true, nil
		default:
			return false, util.WrapError(util.ErrForbidden, "super write access disabled")
		}
	}

	if pc.Sub != "" && pc.Sub == req.TenantOwner {
		return true, nil
	}

	return false, nil
}

// EnforceOwn asserts the resource belongs to the actor. Mismatches
// fail NotFound so resource existence is never disclosed.
func (e *Enforcer) EnforceOwn(pc *Context, resourceOwner string) error {
	if !pc.EnforceOwn {
		return nil
	}
	if resourceOwner != pc.Sub {
		return util.WrapError(util.ErrNotFound, "resource")
	}
	return nil
}

// EnforceOwnOrg asserts the organization is in the actor's resolved
// organization list.
func (e *Enforcer) EnforceOwnOrg(pc *Context, orgID string) error {
	if !pc.EnforceOwn {
		return nil
	}
	if !pc.HasOrganization(orgID) {
		return util.WrapError(util.ErrForbidden, fmt.Sprintf("organization %s not held", orgID))
	}
	return nil
}

// EnforceOwnDomain asserts the qualified domain is in the actor's
// resolved domain list.
func (e *Enforcer) EnforceOwnDomain(pc *Context, orgID, domainID string) error {
	if !pc.EnforceOwn {
		return nil
	}
	if !pc.HasDomain(orgID, domainID) {
		return util.WrapError(util.ErrForbidden, fmt.Sprintf("domain %s::%s not held", orgID, domainID))
	}
	return nil
}

// EnforceOwnProduct asserts the product is in the actor's resolved
// product list.
func (e *Enforcer) EnforceOwnProduct(pc *Context, productID string) error {
	if !pc.EnforceOwn {
		return nil
	}
	if !pc.HasProduct(productID) {
		return util.WrapError(util.ErrForbidden, fmt.Sprintf("product %s not held", productID))
	}
	return nil
}

// EnforceRoot asserts the actor carries a super tier.
func (e *Enforcer) EnforceRoot(pc *Context) error {
	if !pc.EnforceOwn {
		return nil
	}
	if !pc.HasAccess(AccessSuper) && !pc.HasAccess(AccessClientSuper) {
		return util.WrapError(util.ErrForbidden, "root access required")
	}
	return nil
}

func (e *Enforcer) record(pc *Context, req Request, target string, err error) {
	outcome := "allow"
	if err != nil {
		outcome = "deny"
	}
	metrics().countDecision(outcome)
	if err != nil {
		e.logger.Debug("access denied",
			observability.String("sub", pc.Sub),
			observability.String("tenant", pc.ActingGroup),
			observability.String("method", req.Method),
			observability.String("target", target),
			observability.Error(err),
		)
	}
}
