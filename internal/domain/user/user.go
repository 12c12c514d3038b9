// Package user defines the user domain model: global roles, per-tenant
// memberships and the identity queries the access policy is built on.
package user

import (
	"errors"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

// Role is a global role that applies across all tenants.
type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleUser       Role = "user"
)

// ValidRoles is the set of all valid global roles.
var ValidRoles = map[Role]bool{
	RoleSuperAdmin: true,
	RoleUser:       true,
}

// TenantRole is a role held within a single tenant.
type TenantRole string

const (
	TenantRoleAdmin  TenantRole = "tenant-admin"
	TenantRoleViewer TenantRole = "tenant-viewer"
)

// ValidTenantRoles is the set of all valid per-tenant roles.
var ValidTenantRoles = map[TenantRole]bool{
	TenantRoleAdmin:  true,
	TenantRoleViewer: true,
}

// Membership ties a user to one tenant with an independent role set.
type Membership struct {
	Tenant domain.Ref   `json:"tenant"`
	Roles  []TenantRole `json:"roles"`
}

// User is an administrator account.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	PasswordHash string       `json:"-"` // never serialized
	Roles        []Role       `json:"roles"`
	Tenants      []Membership `json:"tenants"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsSuperAdmin reports whether u holds the global super-admin role.
func IsSuperAdmin(u *User) bool {
	return u != nil && slices.Contains(u.Roles, RoleSuperAdmin)
}

// TenantIDs returns the IDs of every tenant u is a member of. When role is
// non-empty only memberships granting that role count. Memberships without
// a tenant reference, or without roles when a role is required, are skipped.
func TenantIDs(u *User, role TenantRole) []string {
	if u == nil {
		return nil
	}
	ids := make([]string, 0, len(u.Tenants))
	for _, m := range u.Tenants {
		id := m.Tenant.ID()
		if id == "" {
			continue
		}
		if role != "" && !slices.Contains(m.Roles, role) {
			continue
		}
		if slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// HasTenant reports whether u holds any membership in tenantID.
func (u *User) HasTenant(tenantID string) bool {
	return tenantID != "" && slices.Contains(TenantIDs(u, ""), tenantID)
}

// Administers reports whether u is a tenant-admin of tenantID.
func (u *User) Administers(tenantID string) bool {
	return tenantID != "" && slices.Contains(TenantIDs(u, TenantRoleAdmin), tenantID)
}

// CreateRequest is the input for creating a user.
type CreateRequest struct {
	Email    string       `json:"email"`
	Name     string       `json:"name"`
	Password string       `json:"password"` //nolint:gosec // request field, not a hardcoded secret
	Roles    []Role       `json:"roles,omitempty"`
	Tenants  []Membership `json:"tenants,omitempty"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return domain.NewValidationError("email", "email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return domain.NewValidationError("email", "invalid email format")
	}
	if r.Name == "" {
		return domain.NewValidationError("name", "name is required")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if err := validateRoles(r.Roles); err != nil {
		return err
	}
	return validateMemberships(r.Tenants)
}

// UpdateRequest is the input for updating a user. Nil fields are left unchanged.
type UpdateRequest struct {
	Name     *string       `json:"name,omitempty"`
	Password *string       `json:"password,omitempty"` //nolint:gosec // request field, not a hardcoded secret
	Roles    *[]Role       `json:"roles,omitempty"`
	Tenants  *[]Membership `json:"tenants,omitempty"`
}

// Validate checks the fields present in the UpdateRequest.
func (r *UpdateRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return domain.NewValidationError("name", "name is required")
	}
	if r.Password != nil {
		if err := validatePassword(*r.Password); err != nil {
			return err
		}
	}
	if r.Roles != nil {
		if err := validateRoles(*r.Roles); err != nil {
			return err
		}
	}
	if r.Tenants != nil {
		return validateMemberships(*r.Tenants)
	}
	return nil
}

// LoginRequest is the input for user authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return errors.New("email is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // response field, not a hardcoded secret
	ExpiresIn   int    `json:"expires_in"`   // seconds until access token expires
	User        User   `json:"user"`
}

func validatePassword(p string) error {
	if p == "" {
		return domain.NewValidationError("password", "password is required")
	}
	if len(p) < 8 {
		return domain.NewValidationError("password", "password must be at least 8 characters")
	}
	return nil
}

func validateRoles(roles []Role) error {
	for _, r := range roles {
		if !ValidRoles[r] {
			return domain.NewValidationError("roles", "invalid role: "+string(r))
		}
	}
	return nil
}

func validateMemberships(ms []Membership) error {
	for _, m := range ms {
		if m.Tenant.IsZero() {
			return domain.NewValidationError("tenants", "membership requires a tenant")
		}
		for _, r := range m.Roles {
			if !ValidTenantRoles[r] {
				return domain.NewValidationError("tenants", "invalid tenant role: "+string(r))
			}
		}
	}
	return nil
}
