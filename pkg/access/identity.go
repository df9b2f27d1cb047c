package access

import (
	"slices"
	"sort"
)

// RoleSet is a set of role names.
type RoleSet map[string]struct{}

// NewRoleSet returns a set holding roles. Empty names are dropped.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r != "" {
			s[r] = struct{}{}
		}
	}
	return s
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Slice returns the roles sorted.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// RoleMapper derives application roles from verified claims. MapRoles must
// be a deterministic function of its input: it performs no I/O, cannot
// fail, and returns an empty set when no role applies.
type RoleMapper interface {
	MapRoles(claims *Claims) RoleSet
}

// RoleMapperFunc adapts a function to RoleMapper.
type RoleMapperFunc func(claims *Claims) RoleSet

// MapRoles calls f.
func (f RoleMapperFunc) MapRoles(claims *Claims) RoleSet { return f(claims) }

// NoRoles maps every token to the empty set.
var NoRoles RoleMapper = RoleMapperFunc(func(*Claims) RoleSet { return RoleSet{} })

// ClaimRoleMapper grants roles from the values of one claim, typically the
// custom "groups" claim an Access application is configured to pass
// through. Values missing from Roles grant nothing.
//
//	mapper := access.ClaimRoleMapper{
//	    Claim: "groups",
//	    Roles: map[string][]string{"eng-oncall": {"operator"}, "eng-leads": {"operator", "admin"}},
//	}
type ClaimRoleMapper struct {
	Claim string
	Roles map[string][]string
}

// MapRoles implements RoleMapper.
func (m ClaimRoleMapper) MapRoles(claims *Claims) RoleSet {
	out := RoleSet{}
	for _, v := range claims.Strings(m.Claim) {
		for _, r := range m.Roles[v] {
			out[r] = struct{}{}
		}
	}
	return out
}

// User is the authenticated principal behind one request. It is built by
// Extract and not modified afterwards.
type User struct {
	subject string
	roles   RoleSet
	claims  *Claims
}

// Extract builds the User for verified claims. A nil mapper grants no
// roles.
func Extract(claims *Claims, mapper RoleMapper) *User {
	if mapper == nil {
		mapper = NoRoles
	}
	mapped := mapper.MapRoles(claims)
	roles := make(RoleSet, len(mapped))
	for r := range mapped {
		roles[r] = struct{}{}
	}
	return &User{subject: claims.Subject, roles: roles, claims: claims}
}

// Subject returns the sub claim.
func (u *User) Subject() string { return u.subject }

// Email returns the email claim, empty for service tokens.
func (u *User) Email() string { return u.claims.Email }

// Roles returns the user's roles, sorted.
func (u *User) Roles() []string { return u.roles.Slice() }

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool { return u.roles.Has(role) }

// HasAnyRole reports whether the user holds at least one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, u.roles.Has)
}

// Claims returns the verified claims the user was built from.
func (u *User) Claims() *Claims { return u.claims }
