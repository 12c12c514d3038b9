package service

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

// UserList is one page of users.
type UserList struct {
	Docs      []user.User `json:"docs"`
	TotalDocs int         `json:"total_docs"`
	Limit     int         `json:"limit"`
	Page      int         `json:"page"`
}

// UserService manages admin accounts. On top of the users policy it limits
// which fields each caller may change.
type UserService struct {
	store  database.Store
	access *AccessService
	auth   *AuthService
}

// NewUserService creates a UserService.
func NewUserService(store database.Store, accessSvc *AccessService, auth *AuthService) *UserService {
	return &UserService{store: store, access: accessSvc, auth: auth}
}

func userForbidden(op access.Operation, reason string) error {
	if reason == "" {
		return fmt.Errorf("%s user: %w", op, domain.ErrForbidden)
	}
	return fmt.Errorf("%s user: %s: %w", op, reason, domain.ErrForbidden)
}

// Create adds a user. Tenant-admins may only create plain users whose
// memberships all lie in tenants they administer.
func (s *UserService) Create(ctx context.Context, p access.Principal, req *user.CreateRequest) (*user.User, error) {
	if s.access.Decide(ctx, p, AccessRequest{Collection: CollectionUsers, Op: access.OpCreate}).Denied() {
		return nil, userForbidden(access.OpCreate, "")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !p.IsSuperAdmin() {
		if slices.ContainsFunc(req.Roles, func(r user.Role) bool { return r != user.RoleUser }) {
			return nil, userForbidden(access.OpCreate, "global roles require a super-admin")
		}
		if len(req.Tenants) == 0 {
			return nil, domain.NewValidationError("tenants", "at least one membership is required")
		}
		for _, m := range req.Tenants {
			if !p.User.Administers(m.Tenant.ID()) {
				return nil, userForbidden(access.OpCreate, "membership in tenant "+m.Tenant.ID())
			}
		}
	}
	return s.auth.Register(ctx, req)
}

// Find lists the users visible to p.
func (s *UserService) Find(ctx context.Context, p access.Principal, params FindParams) (*UserList, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionUsers, Op: access.OpRead})
	w, ok := dec.Constrain(params.Where)
	if !ok {
		return nil, userForbidden(access.OpRead, "")
	}
	params.normalize()
	docs, total, err := s.store.FindUsers(ctx, database.Query{
		Where:  w,
		Limit:  params.Limit,
		Offset: (params.Page - 1) * params.Limit,
		Sort:   params.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return &UserList{Docs: docs, TotalDocs: total, Limit: params.Limit, Page: params.Page}, nil
}

// Get returns the user id if p may read it.
func (s *UserService) Get(ctx context.Context, p access.Principal, id string) (*user.User, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionUsers, Op: access.OpRead, TargetID: id})
	return s.scoped(ctx, dec, access.OpRead, id)
}

func (s *UserService) scoped(ctx context.Context, dec access.Decision, op access.Operation, id string) (*user.User, error) {
	if dec.Denied() {
		return nil, userForbidden(op, "")
	}
	if !dec.IsFilter() {
		return s.store.GetUser(ctx, id)
	}
	w, _ := dec.Constrain(query.Equals(access.FieldID, id))
	found, _, err := s.store.FindUsers(ctx, database.Query{Where: w, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	return &found[0], nil
}

// Update applies req to the user id. Super-admins may change anything and
// are the only ones who may change a super-admin. Users may change their own
// name and password. Tenant-admins may change the name and the memberships of
// their administered tenants of users they share a tenant with; other
// memberships are preserved.
func (s *UserService) Update(ctx context.Context, p access.Principal, id string, req *user.UpdateRequest) (*user.User, error) {
	dec := s.access.Decide(ctx, p, AccessRequest{Collection: CollectionUsers, Op: access.OpUpdate, TargetID: id})
	u, err := s.scoped(ctx, dec, access.OpUpdate, id)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	self := p.ActorID() == u.ID
	if !p.IsSuperAdmin() {
		if user.IsSuperAdmin(u) {
			return nil, userForbidden(access.OpUpdate, "super-admin accounts are managed by super-admins")
		}
		if req.Roles != nil {
			return nil, userForbidden(access.OpUpdate, "global roles require a super-admin")
		}
		if req.Password != nil && !self {
			return nil, userForbidden(access.OpUpdate, "only the account owner may change the password")
		}
		if req.Tenants != nil {
			if self {
				return nil, userForbidden(access.OpUpdate, "users cannot change their own memberships")
			}
			merged, err := mergeMemberships(p.User, u.Tenants, *req.Tenants)
			if err != nil {
				return nil, err
			}
			req.Tenants = &merged
		}
	}

	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Password != nil {
		hash, err := s.auth.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if req.Roles != nil {
		u.Roles = *req.Roles
	}
	if req.Tenants != nil {
		u.Tenants = *req.Tenants
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return u, nil
}

// mergeMemberships replaces the memberships of the tenants admin administers
// with requested and keeps every other existing membership.
func mergeMemberships(admin *user.User, existing, requested []user.Membership) ([]user.Membership, error) {
	for _, m := range requested {
		if !admin.Administers(m.Tenant.ID()) {
			return nil, userForbidden(access.OpUpdate, "membership in tenant "+m.Tenant.ID())
		}
	}
	merged := make([]user.Membership, 0, len(existing)+len(requested))
	for _, m := range existing {
		if !admin.Administers(m.Tenant.ID()) {
			merged = append(merged, m)
		}
	}
	return append(merged, requested...), nil
}

// Delete removes the user id. Only super-admins delete users.
func (s *UserService) Delete(ctx context.Context, p access.Principal, id string) error {
	if s.access.Decide(ctx, p, AccessRequest{Collection: CollectionUsers, Op: access.OpDelete, TargetID: id}).Denied() {
		return userForbidden(access.OpDelete, "")
	}
	if p.ActorID() == id {
		return domain.NewValidationError("id", "you cannot delete your own account")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
