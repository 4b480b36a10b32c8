package derive

import (
	"bytes"
	"encoding/xml"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/resolver"
)

const xmlSchemaNamespace = "http://www.w3.org/2001/XMLSchema"

type xsdSchema struct {
	XMLName         xml.Name         `xml:"schema"`
	TargetNamespace string           `xml:"targetNamespace,attr"`
	Attrs           []xml.Attr       `xml:",any,attr"`
	Imports         []xsdImport      `xml:"import"`
	Includes        []xsdImport      `xml:"include"`
	Elements        []xsdTyped       `xml:"element"`
	Attributes      []xsdTyped       `xml:"attribute"`
	ComplexTypes    []xsdComplexType `xml:"complexType"`
	SimpleTypes     []xsdSimpleType  `xml:"simpleType"`
}

type xsdImport struct {
	Namespace      string `xml:"namespace,attr"`
	SchemaLocation string `xml:"schemaLocation,attr"`
}

type xsdTyped struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type xsdComplexType struct {
	Name           string      `xml:"name,attr"`
	ComplexContent *xsdContent `xml:"complexContent"`
	SimpleContent  *xsdContent `xml:"simpleContent"`
}

type xsdContent struct {
	Extension   *xsdBase `xml:"extension"`
	Restriction *xsdBase `xml:"restriction"`
}

type xsdSimpleType struct {
	Name        string   `xml:"name,attr"`
	Restriction *xsdBase `xml:"restriction"`
}

type xsdBase struct {
	Base string `xml:"base,attr"`
}

// XSDDeriver derives global declarations from an XML Schema document.
type XSDDeriver struct{}

// Derive creates one artifact per named global element, attribute, complex type
// and simple type. Type references, extension and restriction bases become
// QName sources on the declaring artifact; import and include locations
// become name sources on the primary.
func (XSDDeriver) Derive(primary *model.Artifact, content []byte) (*Derivation, error) {
	var schema xsdSchema
	if err := xml.NewDecoder(bytes.NewReader(content)).Decode(&schema); err != nil {
		return nil, errors.Wrapf(err, "parse schema %s", primary.Name)
	}

	d := &xsdDerivation{
		primary:    primary,
		namespace:  schema.TargetNamespace,
		prefixes:   namespacePrefixes(schema.Attrs),
		Derivation: &Derivation{},
	}
	if schema.TargetNamespace != "" {
		primary.SetProperty("targetNamespace", schema.TargetNamespace)
	}

	for _, imp := range schema.Imports {
		d.locationSource("importedXsds", imp.SchemaLocation)
	}
	for _, inc := range schema.Includes {
		d.locationSource("includedXsds", inc.SchemaLocation)
	}

	typeTargets := []string{TypeComplexType, TypeSimpleType}
	for _, el := range schema.Elements {
		if a := d.declare(TypeElement, el.Name); a != nil {
			d.qnameSource(a, "type", el.Type, typeTargets)
		}
	}
	for _, attr := range schema.Attributes {
		if a := d.declare(TypeAttribute, attr.Name); a != nil {
			d.qnameSource(a, "type", attr.Type, []string{TypeSimpleType})
		}
	}
	for _, ct := range schema.ComplexTypes {
		a := d.declare(TypeComplexType, ct.Name)
		if a == nil {
			continue
		}
		for _, c := range []*xsdContent{ct.ComplexContent, ct.SimpleContent} {
			if c == nil {
				continue
			}
			if c.Extension != nil {
				d.qnameSource(a, "extension", c.Extension.Base, typeTargets)
			}
			if c.Restriction != nil {
				d.qnameSource(a, "restriction", c.Restriction.Base, typeTargets)
			}
		}
	}
	for _, st := range schema.SimpleTypes {
		if a := d.declare(TypeSimpleType, st.Name); a != nil && st.Restriction != nil {
			d.qnameSource(a, "restriction", st.Restriction.Base, []string{TypeSimpleType})
		}
	}

	return d.Derivation, nil
}

type xsdDerivation struct {
	*Derivation
	primary   *model.Artifact
	namespace string
	prefixes  map[string]string
}

func (d *xsdDerivation) declare(artifactType, ncName string) *model.Artifact {
	if ncName == "" {
		return nil
	}
	a := newDerived(d.primary, model.ModelXSD, artifactType, ncName)
	a.SetProperty("ncName", ncName)
	if d.namespace != "" {
		a.SetProperty("namespace", d.namespace)
	}
	d.Artifacts = append(d.Artifacts, a)
	return a
}

func (d *xsdDerivation) qnameSource(owner *model.Artifact, relationship, qname string, types []string) {
	if qname == "" {
		return
	}
	namespace, local := d.resolveQName(qname)
	if namespace == xmlSchemaNamespace {
		return
	}
	d.Sources = append(d.Sources, resolver.NewSource(resolver.SourceOptions{
		Owner:    owner.EnsureRelationship(relationship),
		Model:    model.ModelXSD,
		Types:    types,
		Criteria: resolver.QName(namespace, local),
	}))
}

func (d *xsdDerivation) locationSource(relationship, location string) {
	if location == "" {
		return
	}
	d.Sources = append(d.Sources, resolver.NewSource(resolver.SourceOptions{
		Owner:    d.primary.EnsureRelationship(relationship),
		Model:    model.ModelXSD,
		Types:    []string{TypeXsdDocument},
		Criteria: resolver.Literal("name", path.Base(location)),
	}))
}

// resolveQName splits prefix:local and maps the prefix through the schema's
// namespace declarations. Unprefixed names use the default namespace.
func (d *xsdDerivation) resolveQName(qname string) (namespace, local string) {
	prefix, local, ok := strings.Cut(qname, ":")
	if !ok {
		return d.prefixes[""], qname
	}
	return d.prefixes[prefix], local
}

func namespacePrefixes(attrs []xml.Attr) map[string]string {
	prefixes := make(map[string]string)
	for _, a := range attrs {
		switch {
		case a.Name.Space == "xmlns":
			prefixes[a.Name.Local] = a.Value
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			prefixes[""] = a.Value
		}
	}
	return prefixes
}
