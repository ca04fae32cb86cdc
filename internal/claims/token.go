package claims

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/identura/authcore/internal/util"
)

// DecodedClaims is the access-relevant slice of a decoded token.
// Absent claims decode to zero values; absence is never an error.
type DecodedClaims struct {
	Sub string

	// Group is the tenant the token was issued for.
	Group string

	// SubjectGroup is the subject's home tenant; equals Group except
	// for root-tenant subjects acting across tenants.
	SubjectGroup string

	// ClientCredential marks a machine actor.
	ClientCredential bool

	// GroupAccess is the flat access-group string, e.g. "owner member".
	GroupAccess string

	// Organizations is the flat space-joined organization id list.
	Organizations string

	// Per-organization claim maps, each value a space-joined string.
	Domains     map[string]string
	Products    map[string]string
	Roles       map[string]string
	Permissions map[string]string

	// OrgContext is the explicit organization context, when present.
	OrgContext string

	// AccessURL is the indirection pointer; non-empty means the access
	// maps were not inlined.
	AccessURL string
}

// Indirect reports whether the token carries an indirection pointer
// instead of inline access maps.
func (d *DecodedClaims) Indirect() bool {
	return d.AccessURL != ""
}

// BuildToken creates a token for the subject carrying the claim set.
// Signing belongs to the issuing protocol; the result is an unsigned
// claim container.
func BuildToken(sub, subjectGroup, tokenGroup string, set ClaimSet) (jwt.Token, error) {
	b := jwt.NewBuilder().
		Subject(sub).
		IssuedAt(time.Now()).
		Claim(ClaimGroup, tokenGroup).
		Claim(ClaimSubjectGroup, subjectGroup)
	for name, value := range set {
		b = b.Claim(name, value)
	}
	tok, err := b.Build()
	if err != nil {
		return nil, util.WrapError(err, "build token")
	}
	return tok, nil
}

// SerializeInsecure renders a token in compact form without a
// signature, for handoff to the issuing protocol or for tests.
func SerializeInsecure(tok jwt.Token) ([]byte, error) {
	raw, err := jwt.Sign(tok, jwt.WithInsecureNoSignature())
	if err != nil {
		return nil, util.WrapError(err, "serialize token")
	}
	return raw, nil
}

// ParseToken decodes claims off a compact token without verifying the
// signature. Verification is the issuing protocol's concern; this
// boundary only extracts claims.
func ParseToken(raw []byte) (*DecodedClaims, error) {
	tok, err := jwt.ParseInsecure(raw)
	if err != nil {
		return nil, util.WrapError(err, "parse token")
	}
	return Decode(tok), nil
}

// Decode extracts the access-relevant claims from a parsed token.
func Decode(tok jwt.Token) *DecodedClaims {
	d := &DecodedClaims{
		Sub:              tok.Subject(),
		Group:            stringClaim(tok, ClaimGroup),
		SubjectGroup:     stringClaim(tok, ClaimSubjectGroup),
		ClientCredential: boolClaim(tok, ClaimClientCredential),
		GroupAccess:      stringClaim(tok, ClaimAccessGroup),
		Organizations:    stringClaim(tok, ClaimOrganizations),
		Domains:          mapClaim(tok, ClaimDomains),
		Products:         mapClaim(tok, ClaimProducts),
		Roles:            mapClaim(tok, ClaimRoles),
		Permissions:      mapClaim(tok, ClaimPermissions),
		OrgContext:       stringClaim(tok, ClaimOrgContext),
		AccessURL:        stringClaim(tok, ClaimAccessURL),
	}
	if d.SubjectGroup == "" {
		d.SubjectGroup = d.Group
	}
	return d
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func boolClaim(tok jwt.Token, name string) bool {
	v, ok := tok.Get(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// mapClaim handles both in-memory map[string]string values and the
// map[string]any form produced by JSON decoding.
func mapClaim(tok jwt.Token, name string) map[string]string {
	v, ok := tok.Get(name)
	if !ok {
		return nil
	}
	switch m := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
