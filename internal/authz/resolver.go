package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/identura/authcore/internal/access"
	"github.com/identura/authcore/internal/cache"
	"github.com/identura/authcore/internal/claims"
	"github.com/identura/authcore/internal/config"
	"github.com/identura/authcore/internal/directory"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/util"
)

// TenantSnapshot is the cached per-tenant slice of the directory the
// resolver and enforcer need on every request.
type TenantSnapshot struct {
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Active bool   `json:"active"`
	Locked bool   `json:"locked"`

	PrimaryOrg string `json:"primaryOrg"`

	CoreProducts     []string `json:"coreProducts"`
	CoreProductCodes []string `json:"coreProductCodes"`
}

// Resolver reconstructs effective permission contexts from decoded
// token claims. Tenant snapshots are cached with a TTL; a caller
// supplied reset flag forces a fresh read.
type Resolver struct {
	tenants   directory.TenantStore
	products  directory.ProductStore
	projector *access.Projector

	cache     cache.Cache
	ttl       time.Duration
	rootGroup string

	logger observability.Logger
	tracer *observability.Tracer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the resolver.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverTracer sets the tracer for the resolver.
func WithResolverTracer(tracer *observability.Tracer) ResolverOption {
	return func(r *Resolver) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewResolver creates a Resolver. The platform configuration supplies
// the root tenant id and the snapshot TTL.
func NewResolver(tenants directory.TenantStore, products directory.ProductStore, projector *access.Projector, c cache.Cache, cfg config.PlatformConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		tenants:   tenants,
		products:  products,
		projector: projector,
		cache:     c,
		ttl:       cfg.TenantCacheTTL.Duration(),
		rootGroup: cfg.RootGroup,
		logger:    observability.NopLogger(),
		tracer:    observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the tenant snapshot, from cache when fresh. reset
// bypasses the cache and overwrites it with a fresh read.
func (r *Resolver) Snapshot(ctx context.Context, tenantID string, reset bool) (*TenantSnapshot, error) {
	key := "tenant:" + tenantID

	if !reset {
		if data, err := r.cache.Get(ctx, key); err == nil {
			var snap TenantSnapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return &snap, nil
			}
			// Unreadable entry; fall through to a fresh read.
			_ = r.cache.Delete(ctx, key)
		}
	}

	tenant, err := r.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	snap := &TenantSnapshot{
		ID:               tenant.ID,
		Owner:            tenant.Owner,
		Active:           tenant.Active,
		Locked:           tenant.Locked,
		PrimaryOrg:       tenant.PrimaryOrganization,
		CoreProducts:     append([]string(nil), tenant.CoreProducts...),
		CoreProductCodes: make([]string, 0, len(tenant.CoreProducts)),
	}
	for _, productID := range tenant.CoreProducts {
		product, err := r.products.GetProduct(ctx, tenantID, productID)
		if util.IsNotFound(err) {
			snap.CoreProductCodes = append(snap.CoreProductCodes, productID)
			continue
		}
		if err != nil {
			return nil, util.WrapError(err, fmt.Sprintf("resolve core product %s", productID))
		}
		snap.CoreProductCodes = append(snap.CoreProductCodes, product.CodedID)
	}

	if data, err := json.Marshal(snap); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			r.logger.WithContext(ctx).Warn("tenant snapshot cache write failed",
				observability.String("tenant", tenantID),
				observability.Error(err),
			)
		}
	}

	return snap, nil
}

// accessFields is the normalized claim field set the resolver works
// from, whether inlined or fetched through indirection.
type accessFields struct {
	groupAccess   string
	organizations string
	domains       map[string]string
	products      map[string]string
	roles         map[string]string
	permissions   map[string]string
}

// Resolve builds the effective permission context for a request from
// decoded claims, the acting tenant's snapshot, and the request's
// organization hint. Missing claim fields degrade to empty sets.
func (r *Resolver) Resolve(ctx context.Context, dc *claims.DecodedClaims, acting *TenantSnapshot, orgHint string) (*Context, error) {
	start := time.Now()
	ctx, span := r.tracer.StartSpan(ctx, "authz.Resolve",
		trace.WithAttributes(
			attribute.String("tenant", acting.ID),
			attribute.String("sub", dc.Sub),
		))
	defer span.End()
	defer func() { metrics().observeResolve(start) }()

	orgContext := orgHint
	if dc.OrgContext != "" {
		if orgHint != "" && orgHint != dc.OrgContext {
			r.logger.WithContext(ctx).Info("organization context claim overrides request hint",
				observability.String("hint", orgHint),
				observability.String("claim", dc.OrgContext),
			)
		}
		orgContext = dc.OrgContext
	}

	fields, err := r.collectFields(ctx, dc, acting)
	if err != nil {
		return nil, err
	}

	pc := &Context{
		Sub:              dc.Sub,
		SubjectGroup:     dc.SubjectGroup,
		ActingGroup:      acting.ID,
		OrgContext:       orgContext,
		ClientCredential: dc.ClientCredential,
		Core: Core{
			TenantID:     acting.ID,
			PrimaryOrg:   acting.PrimaryOrg,
			Products:     append([]string(nil), acting.CoreProducts...),
			ProductCodes: append([]string(nil), acting.CoreProductCodes...),
		},
	}

	// Grant-derived tiers only count when the subject belongs to the
	// acting tenant; root subjects cross tenants.
	if dc.SubjectGroup == acting.ID || dc.SubjectGroup == r.rootGroup {
		pc.GroupAccess = strings.Fields(fields.groupAccess)
	}

	if dc.ClientCredential {
		// Agents are always scoped to the supplied context, never to
		// stored cross-org grants.
		if orgContext != "" {
			pc.Organizations = []string{orgContext}
		}
	} else {
		pc.Organizations = strings.Fields(fields.organizations)
	}

	mergeOrgs := []string{orgContext}
	if acting.PrimaryOrg != "" && acting.PrimaryOrg != orgContext {
		mergeOrgs = append(mergeOrgs, acting.PrimaryOrg)
	}
	for _, org := range mergeOrgs {
		if org == "" {
			continue
		}
		for _, d := range strings.Fields(fields.domains[org]) {
			pc.Domains = append(pc.Domains, org+segmentSep+d)
		}
		pc.Products = append(pc.Products, strings.Fields(fields.products[org])...)
		pc.Roles = append(pc.Roles, ParseRoleRefs(fields.roles[org])...)
		pc.Permissions = append(pc.Permissions, ParsePermissions(fields.permissions[org])...)
	}

	if dc.SubjectGroup == r.rootGroup && dc.Group == acting.ID {
		if dc.ClientCredential {
			pc.GroupAccess = append(pc.GroupAccess, AccessClientSuper)
		} else {
			pc.GroupAccess = append(pc.GroupAccess, AccessSuper)
		}
	}

	memberRef := directory.MemberProductRef(acting.ID)

	if !dc.ClientCredential && dc.SubjectGroup != r.rootGroup {
		allowed := make(map[string]struct{})
		for _, id := range acting.CoreProducts {
			allowed[id] = struct{}{}
		}
		for _, code := range acting.CoreProductCodes {
			allowed[code] = struct{}{}
		}
		// Baseline member permissions survive core filtering; every
		// authenticated human keeps self-service access.
		allowed[memberRef] = struct{}{}

		filteredPerms := pc.Permissions[:0]
		for _, p := range pc.Permissions {
			if _, ok := allowed[p.ProductRef]; ok {
				filteredPerms = append(filteredPerms, p)
			}
		}
		pc.Permissions = filteredPerms

		filteredRoles := pc.Roles[:0]
		for _, ref := range pc.Roles {
			if _, ok := allowed[ref.ProductCode]; ok {
				filteredRoles = append(filteredRoles, ref)
			}
		}
		pc.Roles = filteredRoles
	}

	// A root super-service acting on its own tenant mirrors every held
	// permission across all core products.
	if dc.ClientCredential && pc.HasAccess(AccessClientSuper) && acting.ID == dc.SubjectGroup {
		var cloned []Permission
		for _, p := range pc.Permissions {
			for _, productID := range acting.CoreProducts {
				cloned = append(cloned, Permission{
					ProductRef: productID,
					Target:     p.Target,
					Action:     p.Action,
					Own:        p.Own,
				})
			}
		}
		pc.Permissions = append(pc.Permissions, cloned...)
	}

	pc.Permissions = dedupePermissions(pc.Permissions)

	return pc, nil
}

// collectFields normalizes the claim fields, following the
// indirection pointer to a live minimized projection when present.
func (r *Resolver) collectFields(ctx context.Context, dc *claims.DecodedClaims, acting *TenantSnapshot) (*accessFields, error) {
	if !dc.Indirect() {
		return &accessFields{
			groupAccess:   dc.GroupAccess,
			organizations: dc.Organizations,
			domains:       dc.Domains,
			products:      dc.Products,
			roles:         dc.Roles,
			permissions:   dc.Permissions,
		}, nil
	}

	view, err := r.projector.ProjectMinimized(ctx, acting.ID, dc.Sub, access.Filter{})
	if err != nil {
		return nil, util.WrapError(err, "resolve indirect access view")
	}

	fields := &accessFields{
		groupAccess:   view.GroupString(),
		organizations: view.Orgs,
		domains:       make(map[string]string, len(view.ByOrg)),
		products:      make(map[string]string, len(view.ByOrg)),
		roles:         make(map[string]string, len(view.ByOrg)),
		permissions:   make(map[string]string, len(view.ByOrg)),
	}
	for orgID, entry := range view.ByOrg {
		fields.domains[orgID] = entry.Domains
		fields.products[orgID] = entry.Products
		fields.roles[orgID] = entry.Roles
		fields.permissions[orgID] = entry.Permissions
	}
	return fields, nil
}

func dedupePermissions(perms []Permission) []Permission {
	if len(perms) == 0 {
		return perms
	}
	seen := make(map[string]struct{}, len(perms))
	out := perms[:0]
	for _, p := range perms {
		key := p.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
