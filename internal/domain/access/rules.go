package access

import (
	"slices"

	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
)

// ReadScoped decides reads on pages, posts and media. publicTenantID is the
// tenant resolved from the request header for anonymous callers; empty means
// resolution failed and the read is denied.
func ReadScoped(p Principal, publicTenantID string) Decision {
	if p.User == nil {
		if publicTenantID == "" {
			return Deny()
		}
		return Filter(query.Equals(FieldTenant, publicTenantID))
	}
	return readMember(p)
}

// ReadPageTypes decides reads on page types, which are never public.
func ReadPageTypes(p Principal) Decision {
	if p.User == nil {
		return Deny()
	}
	return readMember(p)
}

func readMember(p Principal) Decision {
	if user.IsSuperAdmin(p.User) {
		return Allow()
	}
	ids := Scope(p.User, p.SelectedTenantID)
	if len(ids) == 0 {
		return Deny()
	}
	return Filter(query.In(FieldTenant, ids...))
}

// MutateScoped decides create, update and delete on tenant-scoped
// collections. declared is the tenant named in the payload (empty when
// omitted); targetID is the record ID for update and delete.
func MutateScoped(op Operation, p Principal, declared, targetID string) Decision {
	if p.User == nil {
		return Deny()
	}
	if user.IsSuperAdmin(p.User) {
		return Allow()
	}
	admin := user.TenantIDs(p.User, user.TenantRoleAdmin)
	if len(admin) == 0 {
		return Deny()
	}
	if declared != "" && !slices.Contains(admin, declared) {
		return Deny()
	}
	switch op {
	case OpCreate:
		return Allow()
	case OpUpdate, OpDelete:
		if targetID == "" {
			return Deny()
		}
		return Filter(query.In(FieldTenant, admin...))
	default:
		return Deny()
	}
}

// ReadTenants decides reads on the tenants collection. Anonymous callers see
// only tenants open to public reads.
func ReadTenants(p Principal) Decision {
	if p.User == nil {
		return Filter(query.Equals(FieldAllowPublicRead, true))
	}
	if user.IsSuperAdmin(p.User) {
		return Allow()
	}
	ids := user.TenantIDs(p.User, "")
	if len(ids) == 0 {
		return Deny()
	}
	return Filter(query.In(FieldID, ids...))
}

// MutateTenants decides writes on the tenants collection. Only super-admins
// create tenants; tenant-admins may update or delete the tenants they administer.
func MutateTenants(op Operation, p Principal) Decision {
	if p.User == nil {
		return Deny()
	}
	if user.IsSuperAdmin(p.User) {
		return Allow()
	}
	if op == OpCreate {
		return Deny()
	}
	admin := user.TenantIDs(p.User, user.TenantRoleAdmin)
	if len(admin) == 0 {
		return Deny()
	}
	return Filter(query.In(FieldID, admin...))
}

// ReadUsers decides reads on the users collection. A user always sees
// themself; tenant-admins see members of the tenants they administer, or of
// the selected tenant when listing with one selected.
func ReadUsers(p Principal, targetID string) Decision {
	if p.User == nil {
		return Deny()
	}
	if user.IsSuperAdmin(p.User) {
		return Allow()
	}
	admin := user.TenantIDs(p.User, user.TenantRoleAdmin)
	if targetID == "" && p.SelectedTenantID != "" && slices.Contains(admin, p.SelectedTenantID) {
		return Filter(query.Equals(FieldUserTenants, p.SelectedTenantID))
	}
	self := query.Equals(FieldID, p.User.ID)
	if len(admin) == 0 {
		return Filter(self)
	}
	return Filter(query.Or(self, query.In(FieldUserTenants, admin...)))
}

// MutateUsers decides writes on the users collection. Field-level limits
// (who may change roles or memberships) are enforced by the user service.
func MutateUsers(op Operation, p Principal, targetID string) Decision {
	if p.User == nil {
		return Deny()
	}
	if user.IsSuperAdmin(p.User) {
		return Allow()
	}
	admin := user.TenantIDs(p.User, user.TenantRoleAdmin)
	switch op {
	case OpCreate:
		if len(admin) == 0 {
			return Deny()
		}
		return Allow()
	case OpUpdate:
		if targetID == "" {
			return Deny()
		}
		self := query.Equals(FieldID, p.User.ID)
		if len(admin) == 0 {
			return Filter(self)
		}
		return Filter(query.Or(self, query.In(FieldUserTenants, admin...)))
	default:
		return Deny()
	}
}
