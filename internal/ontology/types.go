// Package ontology is the classification registry: ontologies loaded from
// YAML, classifier resolution to class URIs, and expansion of a class to its
// ancestors for membership tests.
package ontology

import "github.com/cockroachdb/errors"

// ErrInvalidClassifier is returned when a classifier cannot be resolved to
// exactly one declared class.
var ErrInvalidClassifier = errors.New("invalid classifier")

// Ontology is one controlled vocabulary. Class URIs are Base + "#" + class id.
type Ontology struct {
	ID      string   `yaml:"id" json:"id"`
	Base    string   `yaml:"base" json:"base"`
	Label   string   `yaml:"label,omitempty" json:"label,omitempty"`
	Comment string   `yaml:"comment,omitempty" json:"comment,omitempty"`
	Classes []*Class `yaml:"classes" json:"classes"`
}

// Class is a node of an ontology's class tree.
type Class struct {
	ID       string   `yaml:"id" json:"id"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`
	Comment  string   `yaml:"comment,omitempty" json:"comment,omitempty"`
	Children []*Class `yaml:"children,omitempty" json:"children,omitempty"`
}

// ClassInfo is a flattened class with its resolved URI and parent.
type ClassInfo struct {
	Ontology  string `json:"ontology"`
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	URI       string `json:"uri"`
	ParentURI string `json:"parent_uri,omitempty"`
}

// URI returns the URI of the class with the given id.
func (o *Ontology) URI(classID string) string {
	return o.Base + "#" + classID
}
