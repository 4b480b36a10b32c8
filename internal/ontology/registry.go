package ontology

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Registry holds the loaded ontologies. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	ontologies map[string]*Ontology
	classes    map[string]*ClassInfo // by URI
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ontologies: make(map[string]*Ontology),
		classes:    make(map[string]*ClassInfo),
	}
}

// LoadFile reads one YAML ontology file and adds it.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read ontology file %s", path)
	}

	var ont Ontology
	if err := yaml.Unmarshal(data, &ont); err != nil {
		return errors.Wrapf(err, "failed to parse ontology file %s", path)
	}
	if ont.ID == "" {
		ont.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := r.Add(&ont); err != nil {
		return errors.Wrapf(err, "ontology file %s", path)
	}
	return nil
}

// LoadGlobs loads every file matching the given glob patterns, in sorted
// order. Patterns that match nothing are not an error.
func (r *Registry) LoadGlobs(patterns []string) error {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return errors.Wrapf(err, "invalid ontology pattern %q", pattern)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := r.LoadFile(p); err != nil {
			return err
		}
	}
	return nil
}

// Add validates an ontology and registers its classes. Ontology ids and class
// URIs must be unique across the registry.
func (r *Registry) Add(ont *Ontology) error {
	if ont.ID == "" {
		return errors.New("ontology id is required")
	}
	if strings.TrimSpace(ont.Base) == "" {
		return errors.Newf("ontology %s: base URI is required", ont.ID)
	}

	flat := make(map[string]*ClassInfo)
	var walk func(classes []*Class, parent string) error
	walk = func(classes []*Class, parent string) error {
		for _, c := range classes {
			if c.ID == "" {
				return errors.Newf("ontology %s: class without id", ont.ID)
			}
			uri := ont.URI(c.ID)
			if _, dup := flat[uri]; dup {
				return errors.Newf("ontology %s: duplicate class id %q", ont.ID, c.ID)
			}
			flat[uri] = &ClassInfo{
				Ontology:  ont.ID,
				ID:        c.ID,
				Label:     c.Label,
				URI:       uri,
				ParentURI: parent,
			}
			if err := walk(c.Children, uri); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(ont.Classes, ""); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ontologies[ont.ID]; exists {
		return errors.Newf("ontology %s is already registered", ont.ID)
	}
	for uri := range flat {
		if _, exists := r.classes[uri]; exists {
			return errors.Newf("ontology %s: class %s is already declared", ont.ID, uri)
		}
	}

	r.ontologies[ont.ID] = ont
	for uri, info := range flat {
		r.classes[uri] = info
	}
	return nil
}

// Ontologies returns the registered ontologies sorted by id.
func (r *Registry) Ontologies() []*Ontology {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Ontology, 0, len(r.ontologies))
	for _, o := range r.ontologies {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Classes returns every declared class sorted by URI.
func (r *Registry) Classes() []ClassInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ClassInfo, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}
