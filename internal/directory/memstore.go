package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/identura/authcore/internal/util"
)

// MemoryStore is an in-memory implementation of the directory store
// contracts, used by tests and single-node deployments. All reads
// return deep copies so callers cannot mutate shared state.
type MemoryStore struct {
	mu sync.RWMutex

	tenants       map[string]*Tenant
	accounts      map[string]map[string]*Account // tenantID -> accountID
	organizations map[string]map[string]*Organization
	domains       map[string]map[string]*Domain
	products      map[string]map[string]*Product
	roles         map[string]map[string]*Role
}

// NewMemoryStore creates an empty in-memory directory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:       make(map[string]*Tenant),
		accounts:      make(map[string]map[string]*Account),
		organizations: make(map[string]map[string]*Organization),
		domains:       make(map[string]map[string]*Domain),
		products:      make(map[string]map[string]*Product),
		roles:         make(map[string]map[string]*Role),
	}
}

// GetTenant returns the tenant by id.
func (s *MemoryStore) GetTenant(_ context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, util.ErrNotFound)
	}
	return copyTenant(t), nil
}

// PutTenant stores or replaces a tenant.
func (s *MemoryStore) PutTenant(t *Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = copyTenant(t)
}

// GetAccount returns the account by id within a tenant.
func (s *MemoryStore) GetAccount(_ context.Context, tenantID, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[tenantID][id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, util.ErrNotFound)
	}
	return copyAccount(a), nil
}

// PutAccount stores or replaces an account.
func (s *MemoryStore) PutAccount(a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accounts[a.TenantID] == nil {
		s.accounts[a.TenantID] = make(map[string]*Account)
	}
	s.accounts[a.TenantID][a.ID] = copyAccount(a)
}

// UpdateAccess replaces the account's full access list.
func (s *MemoryStore) UpdateAccess(_ context.Context, tenantID, accountID string, access []OrganizationAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[tenantID][accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, util.ErrNotFound)
	}

	a.Access = copyAccess(access)
	return nil
}

// FindReferencing returns ids of accounts whose access lists reference
// the given organization, domain, or role id.
func (s *MemoryStore) FindReferencing(_ context.Context, tenantID string, kind AccessRefKind, refID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for id, a := range s.accounts[tenantID] {
		if accessReferences(a.Access, kind, refID) {
			out = append(out, id)
		}
	}
	return out, nil
}

func accessReferences(access []OrganizationAccess, kind AccessRefKind, refID string) bool {
	for _, entry := range access {
		switch kind {
		case RefOrganization:
			if entry.OrganizationID == refID {
				return true
			}
		case RefDomain:
			for _, d := range entry.DomainIDs {
				if d == refID {
					return true
				}
			}
		case RefRole:
			for _, r := range entry.RoleIDs {
				if r == refID {
					return true
				}
			}
		}
	}
	return false
}

// GetOrganization returns the organization by id within a tenant.
func (s *MemoryStore) GetOrganization(_ context.Context, tenantID, id string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.organizations[tenantID][id]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", id, util.ErrNotFound)
	}
	cp := *o
	cp.AssociatedProducts = append([]string(nil), o.AssociatedProducts...)
	return &cp, nil
}

// PutOrganization stores or replaces an organization.
func (s *MemoryStore) PutOrganization(o *Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.organizations[o.TenantID] == nil {
		s.organizations[o.TenantID] = make(map[string]*Organization)
	}
	cp := *o
	cp.AssociatedProducts = append([]string(nil), o.AssociatedProducts...)
	s.organizations[o.TenantID][o.ID] = &cp
}

// GetDomain returns the domain by id, scoped to (tenant, organization).
func (s *MemoryStore) GetDomain(_ context.Context, tenantID, orgID, id string) (*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.domains[tenantID][id]
	if !ok || d.OrganizationID != orgID {
		return nil, fmt.Errorf("domain %s: %w", id, util.ErrNotFound)
	}
	cp := *d
	cp.AssociatedOrgProducts = append([]string(nil), d.AssociatedOrgProducts...)
	return &cp, nil
}

// PutDomain stores or replaces a domain.
func (s *MemoryStore) PutDomain(d *Domain) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.domains[d.TenantID] == nil {
		s.domains[d.TenantID] = make(map[string]*Domain)
	}
	cp := *d
	cp.AssociatedOrgProducts = append([]string(nil), d.AssociatedOrgProducts...)
	s.domains[d.TenantID][d.ID] = &cp
}

// GetProduct returns the product by id within a tenant.
func (s *MemoryStore) GetProduct(_ context.Context, tenantID, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[tenantID][id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, util.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// PutProduct stores or replaces a product.
func (s *MemoryStore) PutProduct(p *Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.products[p.TenantID] == nil {
		s.products[p.TenantID] = make(map[string]*Product)
	}
	cp := *p
	s.products[p.TenantID][p.ID] = &cp
}

// GetRole returns the role by id within a tenant.
func (s *MemoryStore) GetRole(_ context.Context, tenantID, id string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[tenantID][id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, util.ErrNotFound)
	}
	return copyRole(r), nil
}

// FindRoleByCode returns the role matching a product coded id and role
// coded id pair.
func (s *MemoryStore) FindRoleByCode(_ context.Context, tenantID, productCodedID, roleCodedID string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles[tenantID] {
		if r.ProductCodedID == productCodedID && r.CodedID == roleCodedID {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role %s::%s: %w", productCodedID, roleCodedID, util.ErrNotFound)
}

// PutRole stores or replaces a role.
func (s *MemoryStore) PutRole(r *Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles[r.TenantID] == nil {
		s.roles[r.TenantID] = make(map[string]*Role)
	}
	s.roles[r.TenantID][r.ID] = copyRole(r)
}

// DeleteDomain removes a domain, simulating a soft delete.
func (s *MemoryStore) DeleteDomain(tenantID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.domains[tenantID], id)
}

func copyTenant(t *Tenant) *Tenant {
	cp := *t
	cp.CoreProducts = append([]string(nil), t.CoreProducts...)
	return &cp
}

func copyAccount(a *Account) *Account {
	cp := *a
	cp.Access = copyAccess(a.Access)
	return &cp
}

func copyAccess(access []OrganizationAccess) []OrganizationAccess {
	if access == nil {
		return nil
	}
	out := make([]OrganizationAccess, len(access))
	for i, entry := range access {
		out[i] = OrganizationAccess{
			OrganizationID: entry.OrganizationID,
			DomainIDs:      append([]string(nil), entry.DomainIDs...),
			RoleIDs:        append([]string(nil), entry.RoleIDs...),
		}
	}
	return out
}

func copyRole(r *Role) *Role {
	cp := *r
	cp.Permissions = append([]PermissionRef(nil), r.Permissions...)
	return &cp
}

// Ensure MemoryStore implements the full contract set.
var _ Stores = (*MemoryStore)(nil)
