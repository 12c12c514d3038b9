package content

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

// Input is a create or update payload. Nil pointers and zero references mean
// the field was omitted.
type Input struct {
	Tenant      domain.Ref      `json:"tenant"`
	PageType    domain.Ref      `json:"page_type"`
	Title       *string         `json:"title,omitempty"`
	Name        *string         `json:"name,omitempty"`
	Slug        *string         `json:"slug,omitempty"`
	Status      *Status         `json:"status,omitempty"`
	Description *string         `json:"description,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	IsDefault   *bool           `json:"is_default,omitempty"`
	Alt         *string         `json:"alt,omitempty"`
	Filename    *string         `json:"filename,omitempty"`
	MimeType    *string         `json:"mime_type,omitempty"`
	URL         *string         `json:"url,omitempty"`
}

// Apply copies the supplied fields onto d. The tenant is left to the
// consistency validator; the page type is copied when present.
func (in *Input) Apply(d *Document) {
	if !in.PageType.IsZero() {
		d.PageType = in.PageType
	}
	setString(&d.Title, in.Title)
	setString(&d.Name, in.Name)
	setString(&d.Description, in.Description)
	setString(&d.Alt, in.Alt)
	setString(&d.Filename, in.Filename)
	setString(&d.MimeType, in.MimeType)
	setString(&d.URL, in.URL)
	if in.Slug != nil {
		d.Slug = Slugify(*in.Slug)
	}
	if in.Status != nil {
		d.Status = *in.Status
	}
	if in.Content != nil {
		d.Content = in.Content
	}
	if in.Fields != nil {
		d.Fields = in.Fields
	}
	if in.IsDefault != nil {
		d.IsDefault = *in.IsDefault
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Prepare fills defaults for a new document: draft status and a slug derived
// from the title or name when none was given.
func Prepare(d *Document) {
	if d.Collection == CollectionPages || d.Collection == CollectionPosts {
		if d.Status == "" {
			d.Status = StatusDraft
		}
	}
	if d.Collection.HasSlug() && d.Slug == "" {
		if d.Title != "" {
			d.Slug = Slugify(d.Title)
		} else {
			d.Slug = Slugify(d.Name)
		}
	}
}

// Validate checks the collection-specific required fields of d. Tenant
// presence and relations are checked by the service layer.
func Validate(d *Document) error {
	switch d.Collection {
	case CollectionPages, CollectionPosts:
		if d.Title == "" {
			return domain.NewValidationError("title", "title is required")
		}
		if d.Status != StatusDraft && d.Status != StatusPublished {
			return domain.NewValidationError("status", fmt.Sprintf("invalid status %q", d.Status))
		}
		if d.Collection == CollectionPages && d.PageType.IsZero() {
			return domain.NewValidationError("page_type", "page type is required")
		}
	case CollectionPageTypes:
		if d.Name == "" {
			return domain.NewValidationError("name", "name is required")
		}
	case CollectionMedia:
		if d.Filename == "" {
			return domain.NewValidationError("filename", "filename is required")
		}
		if d.URL == "" {
			return domain.NewValidationError("url", "url is required")
		}
	default:
		return domain.NewValidationError("collection", fmt.Sprintf("unknown collection %q", d.Collection))
	}
	if d.Collection.HasSlug() && d.Slug == "" {
		return domain.NewValidationError("slug", "slug is required")
	}
	for field, blob := range map[string]json.RawMessage{"content": d.Content, "fields": d.Fields} {
		if blob != nil && !json.Valid(blob) {
			return domain.NewValidationError(field, field+" must be valid JSON")
		}
	}
	return nil
}
