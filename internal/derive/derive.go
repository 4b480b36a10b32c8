// Package derive extracts derived artifacts and pending relationship sources
// from a primary artifact's content, and runs the ingestion pipeline that
// stores them and links the sources.
package derive

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/resolver"
)

// Artifact types produced or understood by the built-in derivers.
const (
	TypeDocument          = "Document"
	TypeXsdDocument       = "XsdDocument"
	TypeElement           = "ElementDeclaration"
	TypeAttribute         = "AttributeDeclaration"
	TypeComplexType       = "ComplexTypeDeclaration"
	TypeSimpleType        = "SimpleTypeDeclaration"
	TypeMarkdownDocument  = "MarkdownDocument"
	TypeMarkdownSection   = "MarkdownSection"
	TypeJavaClass         = "JavaClass"
	TypeJavaInterface     = "JavaInterface"
	RelationshipRelatedTo = "relatedDocument"
)

// ErrDerivation marks a failure to analyze a primary artifact's content.
var ErrDerivation = errors.New("derivation failed")

// Derivation is everything a deriver found in one primary artifact. Sources
// stay pending until the whole derivation has been stored.
type Derivation struct {
	Artifacts []*model.Artifact
	Sources   []*resolver.Source
}

// Deriver analyzes the content of a primary artifact.
type Deriver interface {
	Derive(primary *model.Artifact, content []byte) (*Derivation, error)
}

// newDerived creates an artifact derived from primary, with the relatedDocument
// relationship pointing back at it.
func newDerived(primary *model.Artifact, artifactModel, artifactType, name string) *model.Artifact {
	a := &model.Artifact{
		UUID:           uuid.NewString(),
		Name:           name,
		Model:          artifactModel,
		Type:           artifactType,
		CreatedBy:      primary.CreatedBy,
		CreatedAt:      primary.CreatedAt,
		LastModifiedAt: primary.LastModifiedAt,
		Derived:        true,
		DerivedFrom:    primary.UUID,
	}
	a.EnsureRelationship(RelationshipRelatedTo).AddTarget(&model.Target{
		UUID: primary.UUID,
		Type: primary.Type,
	})
	return a
}

// DetectType guesses the model and type of a file from its extension.
func DetectType(path string) (artifactModel, artifactType, mimeType string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xsd":
		return model.ModelXSD, TypeXsdDocument, "application/xml"
	case ".md", ".markdown":
		return model.ModelExt, TypeMarkdownDocument, "text/markdown"
	default:
		return model.ModelCore, TypeDocument, "application/octet-stream"
	}
}
