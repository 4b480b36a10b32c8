// Package model defines the catalog's artifact types shared by the query engine,
// the storage backend and the ingestion pipeline.
package model

import (
	"sort"
	"time"
)

// Core artifact models.
const (
	ModelCore = "core"
	ModelXSD  = "xsd"
	ModelExt  = "ext"
)

// Artifact is a registered document plus its extracted metadata.
type Artifact struct {
	// UUID uniquely identifies this artifact.
	UUID string `json:"uuid"`

	// Name is the human-readable name (e.g. the file name, or the ncName of a
	// derived XSD declaration).
	Name string `json:"name"`

	// Model groups artifact types ("core", "xsd", "ext", ...).
	Model string `json:"model"`

	// Type is the artifact type within its model (e.g. "XsdDocument").
	Type string `json:"type"`

	Description    string    `json:"description,omitempty"`
	Version        string    `json:"version,omitempty"`
	MimeType       string    `json:"mime_type,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`

	// Content is the raw document text. Empty for derived artifacts.
	Content string `json:"-"`

	// Derived is true when the artifact was produced by analyzing another
	// artifact's content.
	Derived bool `json:"derived"`

	// DerivedFrom is the UUID of the primary artifact this one was derived from.
	DerivedFrom string `json:"derived_from,omitempty"`

	// Properties holds custom (non-core) properties.
	Properties map[string]string `json:"properties,omitempty"`

	// Classifiers holds the class URIs the artifact is directly classified by.
	Classifiers []string `json:"classifiers,omitempty"`

	Relationships []*Relationship `json:"relationships,omitempty"`
}

// SetProperty sets a custom property, allocating the map on first use.
func (a *Artifact) SetProperty(name, value string) {
	if a.Properties == nil {
		a.Properties = make(map[string]string)
	}
	a.Properties[name] = value
}

// Property returns a custom property value.
func (a *Artifact) Property(name string) (string, bool) {
	v, ok := a.Properties[name]
	return v, ok
}

// PropertyNames returns the custom property names in sorted order.
func (a *Artifact) PropertyNames() []string {
	names := make([]string, 0, len(a.Properties))
	for name := range a.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relationship returns the first relationship with the given name, or nil.
func (a *Artifact) Relationship(name string) *Relationship {
	for _, r := range a.Relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// EnsureRelationship returns the named relationship, creating an empty one if
// the artifact has none yet.
func (a *Artifact) EnsureRelationship(name string) *Relationship {
	if r := a.Relationship(name); r != nil {
		return r
	}
	r := &Relationship{Name: name}
	a.Relationships = append(a.Relationships, r)
	return r
}

// Summary returns the summary row for this artifact.
func (a *Artifact) Summary() ArtifactSummary {
	return ArtifactSummary{
		UUID:           a.UUID,
		Name:           a.Name,
		Model:          a.Model,
		Type:           a.Type,
		Description:    a.Description,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt,
		LastModifiedAt: a.LastModifiedAt,
		Derived:        a.Derived,
	}
}
