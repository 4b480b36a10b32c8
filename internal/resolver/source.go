// Package resolver links relationship sources found while deriving artifacts
// to the artifacts they name. Sources are created during derivation and
// resolved once, in a post-pass over the whole derivation, by running
// criteria queries through the query engine.
package resolver

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/model"
)

// ErrEmptyCriteria is returned when a source's criteria has nothing to match on.
var ErrEmptyCriteria = errors.New("empty resolution criteria")

// State is the lifecycle state of a Source.
type State int

const (
	// StatePending means the criteria has not been evaluated yet.
	StatePending State = iota
	// StateResolved means the target carries the matched artifact's UUID.
	StateResolved
	// StateDiscarded means nothing matched and the target was dropped.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateDiscarded:
		return "discarded"
	default:
		return "pending"
	}
}

// Source is a pending relationship edge: a Target placeholder waiting for the
// UUID of the artifact its criteria names.
type Source struct {
	Target *model.Target
	// Owner is the relationship whose targets hold Target, if any.
	Owner    *model.Relationship
	Model    string
	Types    []string
	Criteria Criteria
	// NotFound is called when nothing matches, before the target is discarded.
	NotFound func(*Source)

	state      State
	candidates int
}

// SourceOptions configures NewSource.
type SourceOptions struct {
	Target   *model.Target
	Owner    *model.Relationship
	Model    string
	Types    []string
	Criteria Criteria
	NotFound func(*Source)
}

// NewSource creates a pending source. Without a Target a placeholder is
// created; when the source has an Owner the placeholder is appended to it
// right away so the artifact's shape is fixed before resolution.
func NewSource(opts SourceOptions) *Source {
	s := &Source{
		Target:   opts.Target,
		Owner:    opts.Owner,
		Model:    opts.Model,
		Types:    opts.Types,
		Criteria: opts.Criteria,
		NotFound: opts.NotFound,
	}
	if s.Target == nil {
		s.Target = &model.Target{}
		if s.Owner != nil {
			s.Owner.AddTarget(s.Target)
		}
	}
	return s
}

// State returns the source's lifecycle state.
func (s *Source) State() State { return s.state }

// Candidates returns how many artifacts matched when the source was resolved.
func (s *Source) Candidates() int { return s.candidates }

func (s *Source) String() string {
	owner := "-"
	if s.Owner != nil {
		owner = s.Owner.Name
	}
	return owner + " -> " + s.Model + "/" + strings.Join(s.Types, "|") + " " + s.Criteria.String()
}

// CriteriaKind selects how a Criteria turns its value into property matches.
type CriteriaKind int

const (
	// CriteriaJavaClass matches a fully qualified class name.
	CriteriaJavaClass CriteriaKind = iota
	// CriteriaJavaInterface matches a fully qualified interface name.
	CriteriaJavaInterface
	// CriteriaQName matches a namespace and local name.
	CriteriaQName
	// CriteriaLiteral matches one property against a fixed value.
	CriteriaLiteral
)

// Criteria describes what a source's target must match.
type Criteria struct {
	Kind      CriteriaKind
	Value     string // fully qualified name, or the literal value
	Namespace string
	LocalName string
	Property  string // literal criteria only; defaults to "name"
}

// JavaClass matches the class with the given fully qualified name.
func JavaClass(fqcn string) Criteria {
	return Criteria{Kind: CriteriaJavaClass, Value: fqcn}
}

// JavaInterface matches the interface with the given fully qualified name.
func JavaInterface(fqcn string) Criteria {
	return Criteria{Kind: CriteriaJavaInterface, Value: fqcn}
}

// QName matches a declaration by namespace and local name.
func QName(namespace, localName string) Criteria {
	return Criteria{Kind: CriteriaQName, Namespace: namespace, LocalName: localName}
}

// Literal matches property = value. An empty property means "name".
func Literal(property, value string) Criteria {
	return Criteria{Kind: CriteriaLiteral, Property: property, Value: value}
}

// Build returns the property equality map for a find.
func (c Criteria) Build() (map[string]string, error) {
	switch c.Kind {
	case CriteriaJavaClass, CriteriaJavaInterface:
		if c.Value == "" {
			return nil, errors.Wrap(ErrEmptyCriteria, "java type name")
		}
		pkg, name := splitQualifiedName(c.Value)
		criteria := map[string]string{"name": name}
		if pkg != "" {
			criteria["packageName"] = pkg
		}
		return criteria, nil
	case CriteriaQName:
		if c.LocalName == "" {
			return nil, errors.Wrap(ErrEmptyCriteria, "qname local part")
		}
		criteria := map[string]string{"ncName": c.LocalName}
		if c.Namespace != "" {
			criteria["namespace"] = c.Namespace
		}
		return criteria, nil
	case CriteriaLiteral:
		if c.Value == "" {
			return nil, errors.Wrap(ErrEmptyCriteria, "literal value")
		}
		property := c.Property
		if property == "" {
			property = "name"
		}
		return map[string]string{property: c.Value}, nil
	default:
		return nil, errors.Newf("unknown criteria kind %d", c.Kind)
	}
}

func (c Criteria) String() string {
	switch c.Kind {
	case CriteriaJavaClass:
		return "class " + c.Value
	case CriteriaJavaInterface:
		return "interface " + c.Value
	case CriteriaQName:
		return "{" + c.Namespace + "}" + c.LocalName
	default:
		property := c.Property
		if property == "" {
			property = "name"
		}
		return property + "=" + c.Value
	}
}

// splitQualifiedName splits "org.example.Order" into "org.example" and "Order".
func splitQualifiedName(fqn string) (pkg, name string) {
	idx := strings.LastIndex(fqn, ".")
	if idx < 0 {
		return "", fqn
	}
	return fqn[:idx], fqn[idx+1:]
}
