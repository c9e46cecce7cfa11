// Package templates holds the layout template registry and the YAML loading
// of templates from the embedded defaults and from template directories.
package templates

import (
	"fmt"
	"sort"

	"fjacquet/statement-ledger/internal/models"
)

// Registry is a read-only, ordered set of compiled templates. Build one with
// NewRegistry and pass it to the components that need it.
type Registry struct {
	templates []*models.Template
	byName    map[string]*models.Template
}

// NewRegistry compiles and validates each template, rejects duplicate names
// and orders the set: specific templates before generic ones, then by
// priority, then by name.
func NewRegistry(templates ...models.Template) (*Registry, error) {
	r := &Registry{
		templates: make([]*models.Template, 0, len(templates)),
		byName:    make(map[string]*models.Template, len(templates)),
	}
	for i := range templates {
		t := templates[i]
		if err := t.Compile(); err != nil {
			return nil, fmt.Errorf("invalid template at position %d: %w", i, err)
		}
		if _, exists := r.byName[t.Name]; exists {
			return nil, fmt.Errorf("duplicate template name %q", t.Name)
		}
		r.byName[t.Name] = &t
		r.templates = append(r.templates, &t)
	}

	sort.SliceStable(r.templates, func(i, j int) bool {
		return Less(r.templates[i], r.templates[j])
	})
	return r, nil
}

// Less is the registry order: non-generic first, lower priority first, then name.
func Less(a, b *models.Template) bool {
	if a.Generic != b.Generic {
		return !a.Generic
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Name < b.Name
}

// Templates returns the templates in registry order. The slice is a copy;
// the templates themselves must not be modified.
func (r *Registry) Templates() []*models.Template {
	if r == nil {
		return nil
	}
	return append([]*models.Template(nil), r.templates...)
}

// Get returns the template called name.
func (r *Registry) Get(name string) (*models.Template, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the template names in registry order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.templates))
	for i, t := range r.templates {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.templates)
}
