package derive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/ontology"
	"github.com/aidanlsb/sramp/internal/query"
	"github.com/aidanlsb/sramp/internal/resolver"
	"github.com/aidanlsb/sramp/internal/store"
)

const commonXSD = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:common">
  <xs:complexType name="BaseDocument"/>
  <xs:simpleType name="Currency"><xs:restriction base="xs:string"/></xs:simpleType>
</xs:schema>`

type catalog struct {
	store    *store.Store
	engine   *query.Engine
	ingester *Ingester
}

func newCatalog(t *testing.T) *catalog {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := ontology.NewRegistry()
	require.NoError(t, reg.Add(&ontology.Ontology{
		ID:      "docs",
		Base:    "urn:docs",
		Classes: []*ontology.Class{{ID: "Schema", Children: []*ontology.Class{{ID: "OrderSchema"}}}},
	}))

	engine := query.NewEngine(s, reg)
	ing := NewIngester(s, reg, resolver.NewLinker(engine, 2))
	ing.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &catalog{store: s, engine: engine, ingester: ing}
}

func (c *catalog) ingest(t *testing.T, name, content string, classifiers ...string) *Result {
	t.Helper()
	m, typ, mime := DetectType(name)
	res, err := c.ingester.Ingest(context.Background(), &model.Artifact{
		Name: name, Model: m, Type: typ, MimeType: mime, Classifiers: classifiers,
	}, []byte(content))
	require.NoError(t, err)
	return res
}

func (c *catalog) query(t *testing.T, q string) []string {
	t.Helper()
	res, err := c.engine.Query(context.Background(), q, nil, query.ArgsInput{})
	require.NoError(t, err)
	out := make([]string, len(res.Items))
	for i, item := range res.Items {
		out[i] = item.Name
	}
	return out
}

func TestIngestLinksAcrossDocuments(t *testing.T) {
	c := newCatalog(t)
	common := c.ingest(t, "common.xsd", commonXSD)
	assert.Len(t, common.Derived, 2)

	orders := c.ingest(t, "orders.xsd", ordersXSD, "urn:docs#OrderSchema")
	assert.Equal(t, 4, orders.Link.Total)
	assert.Equal(t, 4, orders.Link.Resolved)
	assert.Zero(t, orders.Link.Discarded)

	assert.Equal(t, []string{"common.xsd"}, c.query(t, "/s-ramp/xsd/XsdDocument[@name = 'orders.xsd']/importedXsds"))
	assert.Equal(t, []string{"OrderType"}, c.query(t, "/s-ramp/xsd/ElementDeclaration[@name = 'order']/type"))
	assert.Equal(t, []string{"BaseDocument"}, c.query(t, "/s-ramp/xsd/ComplexTypeDeclaration[@name = 'OrderType']/extension"))
	assert.Equal(t, []string{"Currency"}, c.query(t, "/s-ramp/xsd/AttributeDeclaration/type"))
	assert.Equal(t, []string{"orders.xsd"}, c.query(t, "/s-ramp[s-ramp:classifiedByAnyOf(., 'Schema')]"))

	derived := c.query(t, "/s-ramp/xsd[@derived = 'true' and relatedDocument[@name = 'orders.xsd']]")
	assert.Equal(t, []string{"OrderId", "OrderType", "currency", "note", "order"}, derived)

	stored, err := c.store.GetArtifact(context.Background(), orders.Primary.UUID)
	require.NoError(t, err)
	assert.Equal(t, "urn:orders", stored.Properties["targetNamespace"])
	assert.Equal(t, 2024, stored.CreatedAt.Year())
	assert.Equal(t, ordersXSD, stored.Content)
}

func TestIngestDiscardsUnresolvedTargets(t *testing.T) {
	c := newCatalog(t)
	res := c.ingest(t, "orders.xsd", ordersXSD)

	// Only the element type resolves within the document.
	assert.Equal(t, 4, res.Link.Total)
	assert.Equal(t, 1, res.Link.Resolved)
	assert.Equal(t, 3, res.Link.Discarded)

	imported := res.Primary.Relationship("importedXsds")
	require.NotNil(t, imported)
	assert.Empty(t, imported.Targets)
	assert.Empty(t, c.query(t, "/s-ramp/xsd/XsdDocument/importedXsds"))
}

func TestIngestMarkdownLinksLaterDocuments(t *testing.T) {
	c := newCatalog(t)
	c.ingest(t, "common.xsd", commonXSD)
	res := c.ingest(t, "guide.md", guideMD)

	assert.Equal(t, 2, res.Link.Total)
	assert.Equal(t, 1, res.Link.Resolved)
	assert.Equal(t, []string{"common.xsd"}, c.query(t, "/s-ramp/ext/MarkdownDocument/references"))
	assert.Equal(t, []string{"Order handling", "Retries"}, c.query(t, "/s-ramp/ext/MarkdownSection"))
	assert.Equal(t, []string{"guide.md"}, c.query(t, "/s-ramp[xp2:matches(., '.*OrderService.*')]"))
}

type failingStore struct{ err error }

func (f failingStore) SaveArtifact(context.Context, *model.Artifact, []string) error { return f.err }
func (f failingStore) SaveRelationships(context.Context, *model.Artifact) error { return f.err }
func (f failingStore) DeleteArtifact(context.Context, string) error           { return f.err }
func (f failingStore) DeleteDerivation(context.Context, string) (int, error) { return 0, f.err }
func (f failingStore) Derivation(context.Context, string) ([]*model.Artifact, error) {
	return nil, f.err
}
func (f failingStore) PrimariesByProperty(context.Context, string, string) ([]string, error) {
	return nil, f.err
}

// brokenLinkStore saves artifacts but cannot write resolved relationships.
type brokenLinkStore struct {
	*store.Store
	err error
}

func (b brokenLinkStore) SaveRelationships(context.Context, *model.Artifact) error { return b.err }

func TestIngestStoresResolvedClassifiers(t *testing.T) {
	c := newCatalog(t)
	res := c.ingest(t, "orders.xsd", ordersXSD, "OrderSchema", "urn:docs#OrderSchema")
	assert.Equal(t, []string{"urn:docs#OrderSchema"}, res.Primary.Classifiers)

	stored, err := c.store.GetArtifact(context.Background(), res.Primary.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:docs#OrderSchema"}, stored.Classifiers)

	assert.Equal(t, []string{"orders.xsd"}, c.query(t, "/s-ramp[s-ramp:exactlyClassifiedByAnyOf(., 'OrderSchema')]"))
	assert.Equal(t, []string{"orders.xsd"}, c.query(t, "/s-ramp[s-ramp:exactlyClassifiedByAllOf(., 'urn:docs#OrderSchema')]"))
	assert.Equal(t, []string{"orders.xsd"}, c.query(t, "/s-ramp[s-ramp:classifiedByAllOf(., 'Schema', 'OrderSchema')]"))
	assert.Empty(t, c.query(t, "/s-ramp[s-ramp:exactlyClassifiedByAnyOf(., 'Schema')]"))
}

func TestIngestRejectsUnknownClassifier(t *testing.T) {
	c := newCatalog(t)
	_, err := c.ingester.Ingest(context.Background(), &model.Artifact{
		Name: "orders.xsd", Model: model.ModelXSD, Type: TypeXsdDocument, Classifiers: []string{"Unicorn"},
	}, []byte(ordersXSD))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ontology.ErrInvalidClassifier))
	assert.Empty(t, c.query(t, "/s-ramp"))
}

func TestIngestRollsBackWhenLinkingFails(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	first := c.ingest(t, "orders.xsd", ordersXSD)
	before := c.query(t, "/s-ramp")
	require.Equal(t, []string{"OrderType"}, c.query(t, "/s-ramp/xsd/ElementDeclaration[@name = 'order']/type"))

	boom := errors.New("database is locked")
	broken := NewIngester(brokenLinkStore{Store: c.store, err: boom}, c.ingester.ontology, c.ingester.linker)
	renamed := strings.ReplaceAll(ordersXSD, `name="note"`, `name="remark"`)
	_, err := broken.Ingest(ctx, &model.Artifact{
		UUID: first.Primary.UUID, Name: "orders.xsd", Model: model.ModelXSD, Type: TypeXsdDocument,
	}, []byte(renamed))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	assert.Equal(t, before, c.query(t, "/s-ramp"))
	assert.Empty(t, c.query(t, "/s-ramp[@name = 'remark']"))
	assert.Equal(t, []string{"OrderType"}, c.query(t, "/s-ramp/xsd/ElementDeclaration[@name = 'order']/type"))

	stored, err := c.store.GetArtifact(ctx, first.Primary.UUID)
	require.NoError(t, err)
	assert.Equal(t, ordersXSD, stored.Content)
}

func TestIngestWithKnownUUIDReplacesDerivation(t *testing.T) {
	c := newCatalog(t)
	first := c.ingest(t, "common.xsd", commonXSD)

	updated := strings.ReplaceAll(commonXSD, `name="Currency"`, `name="Amount"`)
	_, err := c.ingester.Ingest(context.Background(), &model.Artifact{
		UUID: first.Primary.UUID, Name: "common.xsd", Model: model.ModelXSD, Type: TypeXsdDocument,
	}, []byte(updated))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Amount", "BaseDocument"}, c.query(t, "/s-ramp/xsd[@derived = 'true']"))
}

func TestIngestPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	ing := NewIngester(failingStore{err: boom}, nil, resolver.NewLinker(nil, 1))

	_, err := ing.Ingest(context.Background(), &model.Artifact{Name: "x.xsd", Model: model.ModelXSD, Type: TypeXsdDocument}, []byte(commonXSD))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestIngestMarksDerivationFailures(t *testing.T) {
	ing := NewIngester(failingStore{}, nil, resolver.NewLinker(nil, 1))

	_, err := ing.Ingest(context.Background(), &model.Artifact{Name: "bad.xsd", Model: model.ModelXSD, Type: TypeXsdDocument}, []byte("<xs:schema"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDerivation))
}

func TestIngestRequiresType(t *testing.T) {
	ing := NewIngester(failingStore{}, nil, resolver.NewLinker(nil, 1))
	_, err := ing.Ingest(context.Background(), &model.Artifact{Name: "x"}, nil)
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}
