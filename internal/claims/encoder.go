package claims

import (
	"fmt"
	"strings"

	"github.com/identura/authcore/internal/access"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/util"
)

// ClaimSet is a flat set of custom claims ready to apply to a token.
type ClaimSet map[string]any

// Encoder turns minimized access views into token claims. Small views
// are inlined as per-organization claim maps; views over the size
// threshold are replaced by a single callback URL so the token stays
// bounded while the verifier can still fetch the same view live.
type Encoder struct {
	thresholdKB   int
	accessURLBase string

	logger observability.Logger
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderLogger sets the logger for the encoder.
func WithEncoderLogger(logger observability.Logger) EncoderOption {
	return func(e *Encoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEncoder creates an Encoder. thresholdKB bounds the inline claim
// payload; accessURLBase is the externally reachable base URL for the
// indirection callback.
func NewEncoder(thresholdKB int, accessURLBase string, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		thresholdKB:   thresholdKB,
		accessURLBase: strings.TrimRight(accessURLBase, "/"),
		logger:        observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ShouldInline reports whether the view fits the inline threshold.
func (e *Encoder) ShouldInline(v *access.MinimizedView) bool {
	return v.FlatSize() <= e.thresholdKB*1024
}

// Encode builds the claim set for a minimized view. Group flags and
// the organization list stay flat; domains, products, roles, and
// permissions become maps keyed by organization id. Views over the
// threshold produce only the indirection claim.
func (e *Encoder) Encode(v *access.MinimizedView) (ClaimSet, error) {
	set := ClaimSet{}
	if group := v.GroupString(); group != "" {
		set[ClaimAccessGroup] = group
	}

	if !e.ShouldInline(v) {
		url, err := e.AccessURL(v.AuthGroup, v.Sub)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("access view over inline threshold, using indirection",
			observability.String("tenant", v.AuthGroup),
			observability.String("account", v.Sub),
			observability.Int("size", v.FlatSize()),
		)
		set[ClaimAccessURL] = url
		return set, nil
	}

	if v.Orgs != "" {
		set[ClaimOrganizations] = v.Orgs
	}

	domains := map[string]string{}
	products := map[string]string{}
	roles := map[string]string{}
	permissions := map[string]string{}
	for orgID, entry := range v.ByOrg {
		if entry.Domains != "" {
			domains[orgID] = entry.Domains
		}
		if entry.Products != "" {
			products[orgID] = entry.Products
		}
		if rs := joinNonEmpty(entry.Roles, entry.MiscRoles); rs != "" {
			roles[orgID] = rs
		}
		if entry.Permissions != "" {
			permissions[orgID] = entry.Permissions
		}
	}
	if len(domains) > 0 {
		set[ClaimDomains] = domains
	}
	if len(products) > 0 {
		set[ClaimProducts] = products
	}
	if len(roles) > 0 {
		set[ClaimRoles] = roles
	}
	if len(permissions) > 0 {
		set[ClaimPermissions] = permissions
	}

	return set, nil
}

// AccessURL renders the indirection callback URL for an account.
func (e *Encoder) AccessURL(tenantID, accountID string) (string, error) {
	if e.accessURLBase == "" {
		return "", util.WrapError(util.ErrInvalidInput, "access URL base not configured")
	}
	return fmt.Sprintf("%s/api/%s/access/%s?minimized=true", e.accessURLBase, tenantID, accountID), nil
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
