package authz

import (
	"fmt"
	"strings"

	"github.com/identura/authcore/internal/util"
)

// Separators of the coded wire formats. A permission string is
// "<productRef>:::<target>::<action>[:own]"; a role string is
// "[<org>::]<productCode>::<roleCode>".
const (
	productSep = ":::"
	segmentSep = "::"
	ownSuffix  = ":own"
)

// Permission is a parsed effective permission string. Matching is
// exact per field; no substring comparison anywhere.
type Permission struct {
	ProductRef string
	Target     string
	Action     string
	Own        bool
}

// ParsePermission parses a single coded permission string.
func ParsePermission(s string) (Permission, error) {
	productRef, rest, ok := strings.Cut(s, productSep)
	if !ok || productRef == "" {
		return Permission{}, util.WrapError(util.ErrInvalidInput, fmt.Sprintf("malformed permission string %q", s))
	}
	target, action, ok := strings.Cut(rest, segmentSep)
	if !ok || target == "" || action == "" {
		return Permission{}, util.WrapError(util.ErrInvalidInput, fmt.Sprintf("malformed permission string %q", s))
	}
	p := Permission{ProductRef: productRef, Target: target}
	p.Action, p.Own = strings.CutSuffix(action, ownSuffix)
	if p.Action == "" {
		return Permission{}, util.WrapError(util.ErrInvalidInput, fmt.Sprintf("malformed permission string %q", s))
	}
	return p, nil
}

// ParsePermissions parses a space-joined permission string list,
// dropping malformed entries.
func ParsePermissions(s string) []Permission {
	fields := strings.Fields(s)
	out := make([]Permission, 0, len(fields))
	for _, f := range fields {
		p, err := ParsePermission(f)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// String renders the permission back to its wire form.
func (p Permission) String() string {
	s := p.ProductRef + productSep + p.Target + segmentSep + p.Action
	if p.Own {
		s += ownSuffix
	}
	return s
}

// Matches reports whether the permission grants the target/action pair
// under the given product reference.
func (p Permission) Matches(productRef, target, action string) bool {
	return p.ProductRef == productRef && p.Target == target && p.Action == action
}

// RoleRef is a parsed effective role string. Org is empty for roles
// global to their product.
type RoleRef struct {
	Org         string
	ProductCode string
	RoleCode    string
}

// ParseRoleRef parses a single coded role string.
func ParseRoleRef(s string) (RoleRef, error) {
	parts := strings.Split(s, segmentSep)
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			break
		}
		return RoleRef{ProductCode: parts[0], RoleCode: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			break
		}
		return RoleRef{Org: parts[0], ProductCode: parts[1], RoleCode: parts[2]}, nil
	}
	return RoleRef{}, util.WrapError(util.ErrInvalidInput, fmt.Sprintf("malformed role string %q", s))
}

// ParseRoleRefs parses a space-joined role string list, dropping
// malformed entries.
func ParseRoleRefs(s string) []RoleRef {
	fields := strings.Fields(s)
	out := make([]RoleRef, 0, len(fields))
	for _, f := range fields {
		r, err := ParseRoleRef(f)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// String renders the role reference back to its wire form.
func (r RoleRef) String() string {
	if r.Org != "" {
		return r.Org + segmentSep + r.ProductCode + segmentSep + r.RoleCode
	}
	return r.ProductCode + segmentSep + r.RoleCode
}
