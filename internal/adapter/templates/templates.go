// Package templates provides the seed templates applied to new tenants. The
// built-in templates are embedded; a directory of YAML files may add more or
// override them by name.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/template"
)

//go:embed *.yaml
var builtin embed.FS

// Registry holds templates by name.
type Registry struct {
	defs map[string]template.Definition
}

// Load returns the built-in templates plus those found in dir. An empty or
// missing dir loads only the built-ins.
func Load(dir string) (*Registry, error) {
	r := &Registry{defs: map[string]template.Definition{}}
	if err := r.loadFS(builtin, "."); err != nil {
		return nil, err
	}
	if dir == "" {
		return r, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err := r.loadFS(os.DirFS(dir), "."); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read templates: %w", err)
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		var d template.Definition
		if err := yaml.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("parse template %s: %w", entry.Name(), err)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("validate template %s: %w", entry.Name(), err)
		}
		r.defs[d.Name] = d
	}
	return nil
}

// Get returns the template called name.
func (r *Registry) Get(name string) (template.Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return template.Definition{}, fmt.Errorf("template %q: %w", name, domain.ErrNotFound)
	}
	return d, nil
}

// Names lists the available templates in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
