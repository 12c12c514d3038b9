package user

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

func TestIsSuperAdmin(t *testing.T) {
	if IsSuperAdmin(nil) {
		t.Error("nil user must not be super-admin")
	}
	if IsSuperAdmin(&User{Roles: []Role{RoleUser}}) {
		t.Error("plain user reported as super-admin")
	}
	if !IsSuperAdmin(&User{Roles: []Role{RoleUser, RoleSuperAdmin}}) {
		t.Error("super-admin not detected")
	}
}

func TestTenantIDs(t *testing.T) {
	u := &User{Tenants: []Membership{
		{Tenant: domain.RefTo("t1"), Roles: []TenantRole{TenantRoleAdmin}},
		{Tenant: domain.RefTo("t2"), Roles: []TenantRole{TenantRoleViewer}},
		{Tenant: domain.Ref{}, Roles: []TenantRole{TenantRoleAdmin}},
		{Tenant: domain.RefTo("t3")},
		{Tenant: domain.RefTo("t1"), Roles: []TenantRole{TenantRoleViewer}},
	}}

	tests := []struct {
		name string
		role TenantRole
		want []string
	}{
		{"any role", "", []string{"t1", "t2", "t3"}},
		{"admin only", TenantRoleAdmin, []string{"t1"}},
		{"viewer only", TenantRoleViewer, []string{"t2", "t1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TenantIDs(u, tt.role)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TenantIDs() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := TenantIDs(nil, ""); got != nil {
		t.Errorf("TenantIDs(nil) = %v", got)
	}
}

func TestTenantIDsFromExpandedMemberships(t *testing.T) {
	raw := `{"tenants":[{"tenant":{"id":"t9","slug":"acme"},"roles":["tenant-admin"]},{"tenant":null,"roles":["tenant-admin"]}]}`
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatal(err)
	}
	if got := TenantIDs(&u, TenantRoleAdmin); !reflect.DeepEqual(got, []string{"t9"}) {
		t.Errorf("TenantIDs() = %v", got)
	}
	if !u.Administers("t9") || u.Administers("t1") {
		t.Error("Administers mismatch")
	}
}

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr string
	}{
		{name: "valid", req: CreateRequest{Email: "A@b.com", Name: "A", Password: "12345678"}},
		{name: "missing email", req: CreateRequest{Name: "A", Password: "12345678"}, wantErr: "email: email is required"},
		{name: "invalid email", req: CreateRequest{Email: "bad", Name: "A", Password: "12345678"}, wantErr: "email: invalid email format"},
		{name: "missing name", req: CreateRequest{Email: "a@b.com", Password: "12345678"}, wantErr: "name: name is required"},
		{name: "short password", req: CreateRequest{Email: "a@b.com", Name: "A", Password: "short"}, wantErr: "password: password must be at least 8 characters"},
		{name: "invalid role", req: CreateRequest{Email: "a@b.com", Name: "A", Password: "12345678", Roles: []Role{"root"}}, wantErr: "roles: invalid role: root"},
		{name: "membership without tenant", req: CreateRequest{Email: "a@b.com", Name: "A", Password: "12345678", Tenants: []Membership{{Roles: []TenantRole{TenantRoleAdmin}}}}, wantErr: "tenants: membership requires a tenant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantErr)
			}
			if got := err.Error(); got != tt.wantErr {
				t.Fatalf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestCreateRequest_NormalizesEmail(t *testing.T) {
	req := CreateRequest{Email: "  Admin@Example.COM ", Name: "A", Password: "12345678"}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.Email != "admin@example.com" {
		t.Errorf("Email = %q", req.Email)
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	if err := (&LoginRequest{Email: "a@b.com", Password: "secret"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (&LoginRequest{Password: "secret"}).Validate(); err == nil {
		t.Fatal("expected error for missing email")
	}
	if err := (&LoginRequest{Email: "a@b.com"}).Validate(); err == nil {
		t.Fatal("expected error for missing password")
	}
}
