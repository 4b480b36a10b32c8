package derive

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/resolver"
)

const ordersXSD = `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           xmlns:tns="urn:orders"
           xmlns:c="urn:common"
           targetNamespace="urn:orders">
  <xs:import namespace="urn:common" schemaLocation="../shared/common.xsd"/>
  <xs:element name="order" type="tns:OrderType"/>
  <xs:element name="note" type="xs:string"/>
  <xs:attribute name="currency" type="c:Currency"/>
  <xs:complexType name="OrderType">
    <xs:complexContent>
      <xs:extension base="c:BaseDocument"/>
    </xs:complexContent>
  </xs:complexType>
  <xs:simpleType name="OrderId">
    <xs:restriction base="xs:string"/>
  </xs:simpleType>
</xs:schema>`

func primary(name, artifactType string) *model.Artifact {
	return &model.Artifact{UUID: "p-1", Name: name, Model: model.ModelXSD, Type: artifactType}
}

func names(as []*model.Artifact) map[string]*model.Artifact {
	out := make(map[string]*model.Artifact, len(as))
	for _, a := range as {
		out[a.Type+"/"+a.Name] = a
	}
	return out
}

func sourceStrings(sources []*resolver.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.String()
	}
	sort.Strings(out)
	return out
}

func TestXSDDeriverDeclarations(t *testing.T) {
	p := primary("orders.xsd", TypeXsdDocument)
	d, err := XSDDeriver{}.Derive(p, []byte(ordersXSD))
	require.NoError(t, err)

	byName := names(d.Artifacts)
	require.Len(t, byName, 5)
	for _, key := range []string{
		"ElementDeclaration/order", "ElementDeclaration/note", "AttributeDeclaration/currency",
		"ComplexTypeDeclaration/OrderType", "SimpleTypeDeclaration/OrderId",
	} {
		a, ok := byName[key]
		require.True(t, ok, key)
		assert.True(t, a.Derived)
		assert.Equal(t, "p-1", a.DerivedFrom)
		assert.Equal(t, model.ModelXSD, a.Model)
		assert.Equal(t, "urn:orders", a.Properties["namespace"])
		assert.Equal(t, a.Name, a.Properties["ncName"])

		rel := a.Relationship(RelationshipRelatedTo)
		require.NotNil(t, rel)
		require.Len(t, rel.Targets, 1)
		assert.Equal(t, "p-1", rel.Targets[0].UUID)
	}
	assert.Equal(t, "urn:orders", p.Properties["targetNamespace"])
}

func TestXSDDeriverSources(t *testing.T) {
	p := primary("orders.xsd", TypeXsdDocument)
	d, err := XSDDeriver{}.Derive(p, []byte(ordersXSD))
	require.NoError(t, err)

	// Built-in xs: types never produce sources.
	assert.Equal(t, []string{
		"extension -> xsd/ComplexTypeDeclaration|SimpleTypeDeclaration {urn:common}BaseDocument",
		"importedXsds -> xsd/XsdDocument name=common.xsd",
		"type -> xsd/ComplexTypeDeclaration|SimpleTypeDeclaration {urn:orders}OrderType",
		"type -> xsd/SimpleTypeDeclaration {urn:common}Currency",
	}, sourceStrings(d.Sources))

	// Placeholders are in place before resolution.
	imported := p.Relationship("importedXsds")
	require.NotNil(t, imported)
	require.Len(t, imported.Targets, 1)
	assert.Empty(t, imported.Targets[0].UUID)

	note := names(d.Artifacts)["ElementDeclaration/note"]
	assert.Nil(t, note.Relationship("type"))
}

func TestXSDDeriverRejectsMalformedXML(t *testing.T) {
	_, err := XSDDeriver{}.Derive(primary("bad.xsd", TypeXsdDocument), []byte("<xs:schema"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.xsd")
}

const guideMD = `---
owner: billing
description: How orders flow
tags: [a, b]
---
# Order handling

The entry point is ` + "`org.example.orders.OrderService`" + `, see [common types](../schemas/common.xsd#types)
and [the wiki](https://example.org/wiki).

## Retries

` + "```java\norg.example.Ignored\n```" + `

Mentioned again: ` + "`org.example.orders.OrderService`" + ` and ` + "`not a type`" + `.
`

func TestMarkdownDeriver(t *testing.T) {
	p := &model.Artifact{UUID: "p-2", Name: "guide.md", Model: model.ModelExt, Type: TypeMarkdownDocument}
	d, err := MarkdownDeriver{}.Derive(p, []byte(guideMD))
	require.NoError(t, err)

	byName := names(d.Artifacts)
	require.Len(t, byName, 2)
	assert.Equal(t, "1", byName["MarkdownSection/Order handling"].Properties["level"])
	assert.Equal(t, "2", byName["MarkdownSection/Retries"].Properties["level"])
	assert.Equal(t, "order-handling", byName["MarkdownSection/Order handling"].Properties[PropertyAnchor])

	assert.Equal(t, "billing", p.Properties["owner"])
	assert.Equal(t, "How orders flow", p.Description)
	_, hasTags := p.Properties["tags"]
	assert.False(t, hasTags, "non-scalar front matter is ignored")

	assert.Equal(t, []string{
		"documents -> ext/JavaClass|JavaInterface class org.example.orders.OrderService",
		"references -> / name=common.xsd",
	}, sourceStrings(d.Sources))
}

func TestRelativeLinkFile(t *testing.T) {
	tests := []struct {
		dest string
		want string
		ok   bool
	}{
		{"common.xsd", "common.xsd", true},
		{"../a/b.md#top", "b.md", true},
		{"b.md?raw=1", "b.md", true},
		{"#anchor", "", false},
		{"https://example.org/x.md", "", false},
		{"mailto:someone@example.org", "", false},
		{"/abs/path.md", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := relativeLinkFile(tt.dest)
		assert.Equal(t, tt.ok, ok, tt.dest)
		assert.Equal(t, tt.want, got, tt.dest)
	}
}

func TestDetectType(t *testing.T) {
	m, typ, mime := DetectType("schemas/Orders.XSD")
	assert.Equal(t, model.ModelXSD, m)
	assert.Equal(t, TypeXsdDocument, typ)
	assert.Equal(t, "application/xml", mime)

	m, typ, _ = DetectType("README.md")
	assert.Equal(t, model.ModelExt, m)
	assert.Equal(t, TypeMarkdownDocument, typ)

	m, typ, _ = DetectType("blob.bin")
	assert.Equal(t, model.ModelCore, m)
	assert.Equal(t, TypeDocument, typ)
}
