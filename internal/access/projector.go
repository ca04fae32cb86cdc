package access

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/identura/authcore/internal/directory"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/util"
)

// Filter narrows a projection to one organization, domain, or product.
// Empty fields match everything.
type Filter struct {
	Org     string
	Domain  string
	Product string

	// IncludeMiscRoles adds roles whose product is not reachable
	// through any granted domain.
	IncludeMiscRoles bool
}

// Projector materializes access views from stored grants. Grants hold
// only id references, so every projection re-resolves them against the
// live directory; references whose objects have since disappeared are
// silently dropped rather than failing the projection.
type Projector struct {
	tenants  directory.TenantStore
	accounts directory.AccountStore
	domains  directory.DomainStore
	roles    directory.RoleStore

	logger observability.Logger
	tracer *observability.Tracer
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithProjectorLogger sets the logger for the projector.
func WithProjectorLogger(logger observability.Logger) ProjectorOption {
	return func(p *Projector) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProjectorTracer sets the tracer for the projector.
func WithProjectorTracer(tracer *observability.Tracer) ProjectorOption {
	return func(p *Projector) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// NewProjector creates a Projector over the given directory stores.
func NewProjector(tenants directory.TenantStore, accounts directory.AccountStore, domains directory.DomainStore, roles directory.RoleStore, opts ...ProjectorOption) *Projector {
	p := &Projector{
		tenants:  tenants,
		accounts: accounts,
		domains:  domains,
		roles:    roles,
		logger:   observability.NopLogger(),
		tracer:   observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// orgResolution is the fully resolved form of one grant entry.
type orgResolution struct {
	orgID         string
	domainAccess  []string
	productAccess *stringSet
	productRoles  []RoleEntry
	miscRoles     []RoleEntry

	// role and permission strings, grouped for claim namespacing
	roleStrings []string
	miscStrings []string
	permStrings []string
}

// Project builds the full access view for an account within a tenant.
func (p *Projector) Project(ctx context.Context, tenantID, accountID string, f Filter) (*View, error) {
	ctx, span := p.tracer.StartSpan(ctx, "access.Project",
		trace.WithAttributes(
			attribute.String("tenant", tenantID),
			attribute.String("account", accountID),
		))
	defer span.End()

	tenant, account, err := p.fetchSubjects(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	view := &View{
		Sub: accountID,
		Tenant: TenantFlags{
			ID:     tenantID,
			Owner:  tenant.Owner == accountID,
			Member: account.TenantID == tenantID,
		},
		Access: []OrganizationView{},
	}

	for _, grant := range account.Access {
		if f.Org != "" && grant.OrganizationID != f.Org {
			continue
		}
		res, err := p.resolveGrant(ctx, tenantID, grant, f)
		if err != nil {
			return nil, err
		}
		view.Access = append(view.Access, OrganizationView{
			ID:            res.orgID,
			DomainAccess:  res.domainAccess,
			ProductAccess: res.productAccess.values(),
			ProductRoles:  res.productRoles,
			MiscRoles:     res.miscRoles,
		})
	}

	return view, nil
}

// ProjectMinimized builds the condensed access view for an account,
// flattening every resolved grant into deduplicated space-joined
// strings and a per-organization index.
func (p *Projector) ProjectMinimized(ctx context.Context, tenantID, accountID string, f Filter) (*MinimizedView, error) {
	ctx, span := p.tracer.StartSpan(ctx, "access.ProjectMinimized",
		trace.WithAttributes(
			attribute.String("tenant", tenantID),
			attribute.String("account", accountID),
		))
	defer span.End()

	tenant, account, err := p.fetchSubjects(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	view := &MinimizedView{
		Sub:       accountID,
		AuthGroup: tenantID,
		Owner:     tenant.Owner == accountID,
		Member:    account.TenantID == tenantID,
		ByOrg:     make(map[string]*OrgStrings),
	}

	orgs := newStringSet()
	orgDomains := newStringSet()
	products := newStringSet()
	productRoles := newStringSet()
	miscRoles := newStringSet()
	permissions := newStringSet()

	for _, grant := range account.Access {
		if f.Org != "" && grant.OrganizationID != f.Org {
			continue
		}
		res, err := p.resolveGrant(ctx, tenantID, grant, f)
		if err != nil {
			return nil, err
		}

		orgs.add(res.orgID)

		byOrgDomains := newStringSet()
		byOrgProducts := newStringSet()
		byOrgRoles := newStringSet()
		byOrgMisc := newStringSet()
		byOrgPerms := newStringSet()

		for _, d := range res.domainAccess {
			qualified := res.orgID + "::" + d
			orgDomains.add(qualified)
			byOrgDomains.add(d)
		}
		for _, pr := range res.productAccess.values() {
			products.add(pr)
			byOrgProducts.add(pr)
		}
		for _, rs := range res.roleStrings {
			productRoles.add(rs)
			byOrgRoles.add(rs)
		}
		for _, ms := range res.miscStrings {
			miscRoles.add(ms)
			byOrgMisc.add(ms)
		}
		for _, ps := range res.permStrings {
			permissions.add(ps)
			byOrgPerms.add(ps)
		}

		view.ByOrg[res.orgID] = &OrgStrings{
			Domains:     byOrgDomains.joined(),
			Products:    byOrgProducts.joined(),
			Roles:       byOrgRoles.joined(),
			MiscRoles:   byOrgMisc.joined(),
			Permissions: byOrgPerms.joined(),
		}
	}

	view.Orgs = orgs.joined()
	view.OrgDomains = orgDomains.joined()
	view.Products = products.joined()
	view.ProductRoles = productRoles.joined()
	view.MiscRoles = miscRoles.joined()
	view.Permissions = permissions.joined()

	return view, nil
}

// fetchSubjects loads the tenant and the account for a projection.
func (p *Projector) fetchSubjects(ctx context.Context, tenantID, accountID string) (*directory.Tenant, *directory.Account, error) {
	tenant, err := p.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	account, err := p.accounts.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, nil, err
	}
	return tenant, account, nil
}

// resolveGrant resolves one stored grant into its live objects. Domain
// and role lookups fan out concurrently; a missing object drops its
// reference while any other store failure aborts the projection.
func (p *Projector) resolveGrant(ctx context.Context, tenantID string, grant directory.OrganizationAccess, f Filter) (*orgResolution, error) {
	res := &orgResolution{
		orgID:         grant.OrganizationID,
		domainAccess:  []string{},
		productAccess: newStringSet(),
		productRoles:  []RoleEntry{},
	}

	resolvedDomains := make([]*directory.Domain, len(grant.DomainIDs))
	resolvedRoles := make([]*directory.Role, len(grant.RoleIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range grant.DomainIDs {
		i, id := i, id
		g.Go(func() error {
			d, err := p.domains.GetDomain(gctx, tenantID, grant.OrganizationID, id)
			if util.IsNotFound(err) {
				p.logger.WithContext(gctx).Debug("dropping stale domain reference",
					observability.String("organization", grant.OrganizationID),
					observability.String("domain", id),
				)
				return nil
			}
			if err != nil {
				return util.WrapError(err, fmt.Sprintf("resolve domain %s", id))
			}
			resolvedDomains[i] = d
			return nil
		})
	}
	for i, id := range grant.RoleIDs {
		i, id := i, id
		g.Go(func() error {
			r, err := p.roles.GetRole(gctx, tenantID, id)
			if util.IsNotFound(err) {
				p.logger.WithContext(gctx).Debug("dropping stale role reference",
					observability.String("organization", grant.OrganizationID),
					observability.String("role", id),
				)
				return nil
			}
			if err != nil {
				return util.WrapError(err, fmt.Sprintf("resolve role %s", id))
			}
			resolvedRoles[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, d := range resolvedDomains {
		if d == nil {
			continue
		}
		if f.Domain != "" && d.ID != f.Domain {
			continue
		}
		res.domainAccess = append(res.domainAccess, d.ID)
		for _, productID := range d.AssociatedOrgProducts {
			if f.Product != "" && productID != f.Product {
				continue
			}
			res.productAccess.add(productID)
		}
	}

	for _, r := range resolvedRoles {
		if r == nil {
			continue
		}
		entry := RoleEntry{ID: r.ID, Name: r.Name, AssociatedProduct: r.ProductID}
		if res.productAccess.contains(r.ProductID) {
			res.productRoles = append(res.productRoles, entry)
			res.roleStrings = append(res.roleStrings, roleString(r))
			res.permStrings = append(res.permStrings, permissionStrings(r)...)
		} else if f.IncludeMiscRoles {
			res.miscRoles = append(res.miscRoles, entry)
			res.miscStrings = append(res.miscStrings, roleString(r))
		}
	}

	return res, nil
}

// roleString renders a role as its coded claim form. Custom roles
// carry their organization as a leading segment.
func roleString(r *directory.Role) string {
	product := r.ProductCodedID
	if product == "" {
		product = r.ProductID
	}
	if r.Custom() {
		return r.OrganizationID + "::" + product + "::" + r.CodedID
	}
	return product + "::" + r.CodedID
}

// permissionStrings renders a role's permission references as coded
// permission strings qualified by the role's product.
func permissionStrings(r *directory.Role) []string {
	product := r.ProductCodedID
	if product == "" {
		product = r.ProductID
	}
	out := make([]string, 0, len(r.Permissions))
	for _, ref := range r.Permissions {
		if ref.Coded == "" {
			continue
		}
		out = append(out, product+":::"+ref.Coded)
	}
	return out
}
