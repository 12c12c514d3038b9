// Package content defines the tenant-owned documents served by the platform:
// pages, posts, page types and media.
package content

import (
	"encoding/json"
	"time"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

// Collection names a tenant-scoped document collection.
type Collection string

const (
	CollectionPages     Collection = "pages"
	CollectionPosts     Collection = "posts"
	CollectionPageTypes Collection = "page-types"
	CollectionMedia     Collection = "media"
)

// Collections lists every tenant-scoped collection.
var Collections = []Collection{CollectionPages, CollectionPosts, CollectionPageTypes, CollectionMedia}

// ParseCollection maps a URL segment to a collection.
func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Noun is the singular, human-readable name used in messages.
func (c Collection) Noun() string {
	switch c {
	case CollectionPages:
		return "page"
	case CollectionPosts:
		return "post"
	case CollectionPageTypes:
		return "page type"
	case CollectionMedia:
		return "media item"
	default:
		return string(c)
	}
}

// HasSlug reports whether documents of c carry a tenant-unique slug.
func (c Collection) HasSlug() bool { return c != CollectionMedia }

// Status is the publication state of a page or post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Document is one record of a tenant-scoped collection. Fields not used by
// the document's collection stay empty.
type Document struct {
	ID          string          `json:"id"`
	Collection  Collection      `json:"-"`
	Tenant      domain.Ref      `json:"tenant,omitzero"`
	PageType    domain.Ref      `json:"page_type,omitzero"`
	Title       string          `json:"title,omitempty"`
	Name        string          `json:"name,omitempty"`
	Slug        string          `json:"slug,omitempty"`
	Status      Status          `json:"status,omitempty"`
	Description string          `json:"description,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	IsDefault   bool            `json:"is_default,omitempty"`
	Alt         string          `json:"alt,omitempty"`
	Filename    string          `json:"filename,omitempty"`
	MimeType    string          `json:"mime_type,omitempty"`
	URL         string          `json:"url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TenantID is the owning tenant's ID, empty if unassigned.
func (d *Document) TenantID() string { return d.Tenant.ID() }

// Value returns the values at a filterable path. Relation paths through the
// tenant ("tenant.slug") are not resolvable from the document alone.
func (d *Document) Value(path string) ([]any, bool) {
	switch path {
	case "id":
		return []any{d.ID}, true
	case "tenant":
		return []any{d.Tenant.ID()}, true
	case "page_type":
		return []any{d.PageType.ID()}, true
	case "title":
		return []any{d.Title}, true
	case "name":
		return []any{d.Name}, true
	case "slug":
		return []any{d.Slug}, true
	case "status":
		return []any{string(d.Status)}, true
	case "is_default":
		return []any{d.IsDefault}, true
	case "filename":
		return []any{d.Filename}, true
	case "mime_type":
		return []any{d.MimeType}, true
	case "created_at":
		return []any{d.CreatedAt.UTC().Format(time.RFC3339Nano)}, true
	case "updated_at":
		return []any{d.UpdatedAt.UTC().Format(time.RFC3339Nano)}, true
	default:
		return nil, false
	}
}
