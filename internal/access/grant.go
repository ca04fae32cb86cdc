package access

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/identura/authcore/internal/audit"
	"github.com/identura/authcore/internal/directory"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/util"
)

// GrantRequest is the payload for defining an organization grant.
type GrantRequest struct {
	Domains []string `json:"domains"`
	Roles   []string `json:"roles"`
}

// GrantStore manages organization access grants on accounts. Grants
// are stored as opaque id references; resolution to live directory
// objects happens at projection time.
type GrantStore struct {
	accounts directory.AccountStore
	domains  directory.DomainStore
	roles    directory.RoleStore

	emitter audit.Emitter
	logger  observability.Logger
}

// GrantOption configures a GrantStore.
type GrantOption func(*GrantStore)

// WithGrantLogger sets the logger for the grant store.
func WithGrantLogger(logger observability.Logger) GrantOption {
	return func(s *GrantStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGrantEmitter sets the audit emitter for grant writes.
func WithGrantEmitter(emitter audit.Emitter) GrantOption {
	return func(s *GrantStore) {
		if emitter != nil {
			s.emitter = emitter
		}
	}
}

// NewGrantStore creates a GrantStore over the given directory stores.
func NewGrantStore(accounts directory.AccountStore, domains directory.DomainStore, roles directory.RoleStore, opts ...GrantOption) *GrantStore {
	s := &GrantStore{
		accounts: accounts,
		domains:  domains,
		roles:    roles,
		emitter:  audit.NopEmitter(),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAccess returns the stored grant list for an account.
func (s *GrantStore) GetAccess(ctx context.Context, tenantID, accountID string) ([]directory.OrganizationAccess, error) {
	account, err := s.accounts.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	return account.Access, nil
}

// DefineAccess creates or fully replaces the grant for one
// organization on one account. Every referenced domain must exist
// under the organization and every referenced role must exist and be
// either tenant-wide or scoped to this organization; otherwise the
// write is rejected as a whole with a GrantValidationError listing the
// offending ids. Duplicate ids in the request are collapsed.
func (s *GrantStore) DefineAccess(ctx context.Context, tenantID, accountID, orgID string, req GrantRequest) (*directory.OrganizationAccess, error) {
	domainIDs := dedupe(req.Domains)
	roleIDs := dedupe(req.Roles)

	if err := s.validateGrant(ctx, tenantID, orgID, domainIDs, roleIDs); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	grant := directory.OrganizationAccess{
		OrganizationID: orgID,
		DomainIDs:      domainIDs,
		RoleIDs:        roleIDs,
	}

	found := false
	for i := range account.Access {
		if account.Access[i].OrganizationID == orgID {
			account.Access[i] = grant
			found = true
			break
		}
	}
	if !found {
		account.Access = append(account.Access, grant)
	}

	if err := s.accounts.UpdateAccess(ctx, tenantID, accountID, account.Access); err != nil {
		return nil, util.WrapError(err, fmt.Sprintf("define access for account %s", accountID))
	}

	s.logger.WithContext(ctx).Info("access defined",
		observability.String("tenant", tenantID),
		observability.String("account", accountID),
		observability.String("organization", orgID),
		observability.Int("domains", len(domainIDs)),
		observability.Int("roles", len(roleIDs)),
	)
	s.emitter.Emit(ctx, audit.NewEvent(audit.EventAccessDefined, tenantID, accountID, orgID, &grant))

	return &grant, nil
}

// RemoveOrgFromAccess deletes the grant for one organization from an
// account. Removing a grant that does not exist is a not-found
// condition, as is an account with no grants at all.
func (s *GrantStore) RemoveOrgFromAccess(ctx context.Context, tenantID, accountID, orgID string) error {
	account, err := s.accounts.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}
	if len(account.Access) == 0 {
		return util.WrapError(util.ErrNotFound, fmt.Sprintf("account %s has no access defined", accountID))
	}

	idx := -1
	for i := range account.Access {
		if account.Access[i].OrganizationID == orgID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return util.WrapError(util.ErrNotFound, fmt.Sprintf("account %s has no access to organization %s", accountID, orgID))
	}

	updated := append(account.Access[:idx:idx], account.Access[idx+1:]...)
	if err := s.accounts.UpdateAccess(ctx, tenantID, accountID, updated); err != nil {
		return util.WrapError(err, fmt.Sprintf("remove access for account %s", accountID))
	}

	s.logger.WithContext(ctx).Info("access removed",
		observability.String("tenant", tenantID),
		observability.String("account", accountID),
		observability.String("organization", orgID),
	)
	s.emitter.Emit(ctx, audit.NewEvent(audit.EventAccessRemoved, tenantID, accountID, orgID, nil))

	return nil
}

// validateGrant checks every referenced domain and role concurrently
// and collects the ids that fail. A missing object marks its id
// invalid; any other store failure aborts the validation.
func (s *GrantStore) validateGrant(ctx context.Context, tenantID, orgID string, domainIDs, roleIDs []string) error {
	var (
		mu         sync.Mutex
		badDomains []string
		badRoles   []string
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, id := range domainIDs {
		id := id
		g.Go(func() error {
			_, err := s.domains.GetDomain(gctx, tenantID, orgID, id)
			if util.IsNotFound(err) {
				mu.Lock()
				badDomains = append(badDomains, id)
				mu.Unlock()
				return nil
			}
			return err
		})
	}

	for _, id := range roleIDs {
		id := id
		g.Go(func() error {
			role, err := s.roles.GetRole(gctx, tenantID, id)
			if util.IsNotFound(err) {
				mu.Lock()
				badRoles = append(badRoles, id)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			// Custom roles are usable only inside their own
			// organization.
			if role.OrganizationID != "" && role.OrganizationID != orgID {
				mu.Lock()
				badRoles = append(badRoles, id)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return util.WrapError(err, "validate access grant")
	}

	if len(badDomains) > 0 || len(badRoles) > 0 {
		return &util.GrantValidationError{Domains: badDomains, Roles: badRoles}
	}
	return nil
}

// UsageForOrganization returns the ids of accounts in the tenant that
// hold a grant referencing the organization. A non-empty result means
// the organization cannot be deleted safely.
func (s *GrantStore) UsageForOrganization(ctx context.Context, tenantID, orgID string) ([]string, error) {
	return s.accounts.FindReferencing(ctx, tenantID, directory.RefOrganization, orgID)
}

// UsageForDomain returns the ids of accounts in the tenant that hold a
// grant referencing the domain.
func (s *GrantStore) UsageForDomain(ctx context.Context, tenantID, domainID string) ([]string, error) {
	return s.accounts.FindReferencing(ctx, tenantID, directory.RefDomain, domainID)
}

// UsageForRole returns the ids of accounts in the tenant that hold a
// grant referencing the role.
func (s *GrantStore) UsageForRole(ctx context.Context, tenantID, roleID string) ([]string, error) {
	return s.accounts.FindReferencing(ctx, tenantID, directory.RefRole, roleID)
}

func dedupe(in []string) []string {
	set := newStringSet()
	for _, v := range in {
		set.add(v)
	}
	out := set.values()
	if out == nil {
		out = []string{}
	}
	return out
}
