// Package template defines seed templates: the page types and pages a new
// tenant starts with.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// Definition is a named set of page types and pages.
type Definition struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	PageTypes   []PageType `yaml:"page_types" json:"page_types"`
	Pages       []Page     `yaml:"pages" json:"pages"`
}

// PageType is a page type created for the tenant.
type PageType struct {
	Slug      string `yaml:"slug" json:"slug"`
	Name      string `yaml:"name" json:"name"`
	IsDefault bool   `yaml:"is_default" json:"is_default"`
	Fields    any    `yaml:"fields" json:"fields,omitempty"`
}

// Page is a page created for the tenant. PageType is the slug of one of the
// definition's page types.
type Page struct {
	Slug        string `yaml:"slug" json:"slug"`
	Title       string `yaml:"title" json:"title"`
	PageType    string `yaml:"page_type" json:"page_type"`
	Description string `yaml:"description" json:"description,omitempty"`
	Status      string `yaml:"status" json:"status,omitempty"`
	Content     any    `yaml:"content" json:"content,omitempty"`
}

// Vars are the placeholders substituted into every string of a template.
type Vars struct {
	TenantName string
	TenantSlug string
}

func (v Vars) replacer() *strings.Replacer {
	return strings.NewReplacer("{{tenant-name}}", v.TenantName, "{{tenant-slug}}", v.TenantSlug)
}

// Render returns a copy of d with placeholders replaced.
func (d Definition) Render(v Vars) Definition {
	r := v.replacer()
	out := Definition{Name: d.Name, Description: r.Replace(d.Description)}
	for _, pt := range d.PageTypes {
		out.PageTypes = append(out.PageTypes, PageType{
			Slug:      r.Replace(pt.Slug),
			Name:      r.Replace(pt.Name),
			IsDefault: pt.IsDefault,
			Fields:    substitute(pt.Fields, r),
		})
	}
	for _, p := range d.Pages {
		out.Pages = append(out.Pages, Page{
			Slug:        r.Replace(p.Slug),
			Title:       r.Replace(p.Title),
			PageType:    p.PageType,
			Description: r.Replace(p.Description),
			Status:      p.Status,
			Content:     substitute(p.Content, r),
		})
	}
	return out
}

func substitute(v any, r *strings.Replacer) any {
	switch t := v.(type) {
	case string:
		return r.Replace(t)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = substitute(val, r)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = substitute(val, r)
		}
		return s
	default:
		return v
	}
}

// Validate checks that d is named and that every page uses one of d's page
// types.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("template name is required")
	}
	known := make(map[string]bool, len(d.PageTypes))
	for _, pt := range d.PageTypes {
		if pt.Slug == "" {
			return fmt.Errorf("template %s: page type without slug", d.Name)
		}
		known[pt.Slug] = true
	}
	for _, p := range d.Pages {
		if p.Slug == "" {
			return fmt.Errorf("template %s: page without slug", d.Name)
		}
		if !known[p.PageType] {
			return fmt.Errorf("template %s: page %s uses unknown page type %q", d.Name, p.Slug, p.PageType)
		}
	}
	return nil
}
