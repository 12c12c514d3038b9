// Package tenant defines the tenant domain model for multi-tenancy.
package tenant

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

// Locales supported as a tenant's default locale.
const (
	LocaleEnglish = "en"
	LocaleGreek   = "el"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Tenant represents one client website served by the platform.
type Tenant struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Domain          string          `json:"domain,omitempty"`
	AllowPublicRead bool            `json:"allow_public_read"`
	DefaultLocale   string          `json:"default_locale"`
	Theme           json.RawMessage `json:"theme,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Summary returns the fields exposed when a tenant is populated into a
// related document.
func (t *Tenant) Summary() map[string]any {
	s := map[string]any{"name": t.Name, "slug": t.Slug}
	if t.Domain != "" {
		s["domain"] = t.Domain
	}
	return s
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Domain          string          `json:"domain,omitempty"`
	AllowPublicRead *bool           `json:"allow_public_read,omitempty"`
	DefaultLocale   string          `json:"default_locale,omitempty"`
	Theme           json.RawMessage `json:"theme,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
	// Template names the seed template applied after creation.
	Template string `json:"template,omitempty"`
}

// Validate normalizes and checks the request.
func (r *CreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Domain = strings.ToLower(strings.TrimSpace(r.Domain))
	if r.Name == "" {
		return domain.NewValidationError("name", "name is required")
	}
	if err := ValidateSlug(r.Slug); err != nil {
		return err
	}
	if r.DefaultLocale == "" {
		r.DefaultLocale = LocaleEnglish
	}
	if err := validateLocale(r.DefaultLocale); err != nil {
		return err
	}
	return validateJSON(r.Theme, r.Settings)
}

// Tenant builds the entity described by the request.
func (r *CreateRequest) Tenant() *Tenant {
	allow := true
	if r.AllowPublicRead != nil {
		allow = *r.AllowPublicRead
	}
	return &Tenant{
		Name:            r.Name,
		Slug:            r.Slug,
		Domain:          r.Domain,
		AllowPublicRead: allow,
		DefaultLocale:   r.DefaultLocale,
		Theme:           r.Theme,
		Settings:        r.Settings,
	}
}

// UpdateRequest holds the fields that can be updated on a tenant.
type UpdateRequest struct {
	Name            *string         `json:"name,omitempty"`
	Slug            *string         `json:"slug,omitempty"`
	Domain          *string         `json:"domain,omitempty"`
	AllowPublicRead *bool           `json:"allow_public_read,omitempty"`
	DefaultLocale   *string         `json:"default_locale,omitempty"`
	Theme           json.RawMessage `json:"theme,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
}

// Apply validates the request and writes its fields onto t.
func (r *UpdateRequest) Apply(t *Tenant) error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return domain.NewValidationError("name", "name is required")
		}
		t.Name = name
	}
	if r.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*r.Slug))
		if err := ValidateSlug(slug); err != nil {
			return err
		}
		t.Slug = slug
	}
	if r.Domain != nil {
		t.Domain = strings.ToLower(strings.TrimSpace(*r.Domain))
	}
	if r.AllowPublicRead != nil {
		t.AllowPublicRead = *r.AllowPublicRead
	}
	if r.DefaultLocale != nil {
		if err := validateLocale(*r.DefaultLocale); err != nil {
			return err
		}
		t.DefaultLocale = *r.DefaultLocale
	}
	if err := validateJSON(r.Theme, r.Settings); err != nil {
		return err
	}
	if r.Theme != nil {
		t.Theme = r.Theme
	}
	if r.Settings != nil {
		t.Settings = r.Settings
	}
	return nil
}

// ValidateSlug checks that slug is URL-safe.
func ValidateSlug(slug string) error {
	if slug == "" {
		return domain.NewValidationError("slug", "slug is required")
	}
	if !slugPattern.MatchString(slug) {
		return domain.NewValidationError("slug", "slug must contain only lowercase letters, digits and single dashes")
	}
	return nil
}

func validateLocale(l string) error {
	if l != LocaleEnglish && l != LocaleGreek {
		return domain.NewValidationError("default_locale", "unsupported locale: "+l)
	}
	return nil
}

func validateJSON(blobs ...json.RawMessage) error {
	for _, b := range blobs {
		if b != nil && !json.Valid(b) {
			return domain.NewValidationError("settings", "theme and settings must be valid JSON")
		}
	}
	return nil
}
