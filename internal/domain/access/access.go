// Package access holds the tenant access policy: pure decision functions that
// map a principal and an operation to allow, deny, or a filter predicate the
// query layer must conjoin with the caller's own filter.
package access

import (
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
)

// Operation is a CRUD operation under evaluation.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Filter field paths produced by the policy.
const (
	FieldID              = "id"
	FieldTenant          = "tenant"
	FieldAllowPublicRead = "allow_public_read"
	FieldUserTenants     = "tenants.tenant"
)

type kind uint8

const (
	kindDeny kind = iota
	kindAllow
	kindFilter
)

// Decision is the outcome of a policy evaluation. The zero value denies.
type Decision struct {
	kind  kind
	where query.Where
}

// Allow permits the operation without constraint.
func Allow() Decision { return Decision{kind: kindAllow} }

// Deny refuses the operation.
func Deny() Decision { return Decision{kind: kindDeny} }

// Filter permits the operation only on records matching w.
func Filter(w query.Where) Decision { return Decision{kind: kindFilter, where: w} }

// Denied reports whether the operation must not run at all.
func (d Decision) Denied() bool { return d.kind == kindDeny }

// IsFilter reports whether the decision constrains the records affected.
func (d Decision) IsFilter() bool { return d.kind == kindFilter }

// Where returns the policy filter; empty unless IsFilter.
func (d Decision) Where() query.Where { return d.where }

// Constrain conjoins the policy filter with the caller's filter. ok is false
// when the decision denies.
func (d Decision) Constrain(w query.Where) (query.Where, bool) {
	switch d.kind {
	case kindAllow:
		return w, true
	case kindFilter:
		return query.And(w, d.where), true
	default:
		return query.Where{}, false
	}
}

func (d Decision) String() string {
	switch d.kind {
	case kindAllow:
		return "allow"
	case kindFilter:
		return "filter"
	default:
		return "deny"
	}
}

// Principal is who is asking, as established by the transport layer.
type Principal struct {
	// User is nil for anonymous (public) requests.
	User *user.User
	// TenantSlug is the tenant header value; only consulted for anonymous reads.
	TenantSlug string
	// SelectedTenantID is the admin UI's currently selected tenant. It only
	// narrows an authenticated user's scope.
	SelectedTenantID string
}

// Anonymous returns a public principal addressing the tenant with slug.
func Anonymous(slug string) Principal { return Principal{TenantSlug: slug} }

// As returns an authenticated principal.
func As(u *user.User) Principal { return Principal{User: u} }

// IsAnonymous reports whether the request carries no identity.
func (p Principal) IsAnonymous() bool { return p.User == nil }

// IsSuperAdmin reports whether the principal bypasses tenant scoping.
func (p Principal) IsSuperAdmin() bool { return user.IsSuperAdmin(p.User) }

// ActorID is the acting user's ID, empty when anonymous.
func (p Principal) ActorID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}

// ContextTenant returns the selected tenant when the user belongs to it or
// is a super-admin. Selection of a super-admin is checked for existence when
// the cookie is set.
func (p Principal) ContextTenant() string {
	if p.User == nil || p.SelectedTenantID == "" {
		return ""
	}
	if user.IsSuperAdmin(p.User) || p.User.HasTenant(p.SelectedTenantID) {
		return p.SelectedTenantID
	}
	return ""
}

// Scope returns the tenants an authenticated user may read: the selected
// tenant when the user belongs to it, every membership otherwise.
func Scope(u *user.User, selected string) []string {
	ids := user.TenantIDs(u, "")
	if selected != "" && u.HasTenant(selected) {
		return []string{selected}
	}
	return ids
}
