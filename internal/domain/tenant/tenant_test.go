package tenant

import (
	"errors"
	"testing"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       CreateRequest
		wantField string
	}{
		{name: "valid", req: CreateRequest{Name: "Acme", Slug: "acme-corp"}},
		{name: "uppercase slug normalized", req: CreateRequest{Name: "Acme", Slug: " ACME "}},
		{name: "missing name", req: CreateRequest{Slug: "acme"}, wantField: "name"},
		{name: "missing slug", req: CreateRequest{Name: "Acme"}, wantField: "slug"},
		{name: "slug with spaces", req: CreateRequest{Name: "Acme", Slug: "acme corp"}, wantField: "slug"},
		{name: "slug with double dash", req: CreateRequest{Name: "Acme", Slug: "acme--corp"}, wantField: "slug"},
		{name: "bad locale", req: CreateRequest{Name: "Acme", Slug: "acme", DefaultLocale: "fr"}, wantField: "default_locale"},
		{name: "bad theme", req: CreateRequest{Name: "Acme", Slug: "acme", Theme: []byte("{")}, wantField: "settings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestCreateRequest_Defaults(t *testing.T) {
	req := CreateRequest{Name: "Acme", Slug: "acme"}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	tn := req.Tenant()
	if !tn.AllowPublicRead {
		t.Error("allow_public_read should default to true")
	}
	if tn.DefaultLocale != LocaleEnglish {
		t.Errorf("default locale = %q", tn.DefaultLocale)
	}

	off := false
	req.AllowPublicRead = &off
	if req.Tenant().AllowPublicRead {
		t.Error("explicit allow_public_read=false ignored")
	}
}

func TestUpdateRequest_Apply(t *testing.T) {
	tn := &Tenant{Name: "Acme", Slug: "acme", DefaultLocale: LocaleEnglish}
	name, slug, locale := "Acme Ltd", "Acme-Ltd", LocaleGreek
	req := UpdateRequest{Name: &name, Slug: &slug, DefaultLocale: &locale}
	if err := req.Apply(tn); err != nil {
		t.Fatal(err)
	}
	if tn.Name != "Acme Ltd" || tn.Slug != "acme-ltd" || tn.DefaultLocale != LocaleGreek {
		t.Errorf("tenant after apply = %+v", tn)
	}

	bad := "not a slug!"
	if err := (&UpdateRequest{Slug: &bad}).Apply(tn); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
