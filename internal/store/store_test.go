package store

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/ontology"
	"github.com/aidanlsb/sramp/internal/query"
)

func testRegistry(t *testing.T) *ontology.Registry {
	t.Helper()
	r := ontology.NewRegistry()
	require.NoError(t, r.Add(&ontology.Ontology{
		ID:   "orders",
		Base: "http://example.org/orders",
		Classes: []*ontology.Class{
			{ID: "Party", Children: []*ontology.Class{{ID: "Customer"}}},
			{ID: "Document"},
		},
	}))
	return r
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func save(t *testing.T, s *Store, reg *ontology.Registry, a *model.Artifact) {
	t.Helper()
	normalized, err := reg.NormalizeAll(a.Classifiers)
	require.NoError(t, err)
	require.NoError(t, s.SaveArtifact(context.Background(), a, normalized))
}

// seed stores a small catalog:
//
//	aaa  orders.xsd   classified Customer, schemaLocation -> bbb
//	bbb  common.xsd   classified Document
//	ccc  notes.md     free text about widgets
func seed(t *testing.T, s *Store, reg *ontology.Registry) {
	t.Helper()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	orders := &model.Artifact{
		UUID: "aaa", Name: "orders.xsd", Model: model.ModelXSD, Type: "XsdDocument",
		Version: "2", CreatedBy: "alice", CreatedAt: created, LastModifiedAt: created,
		Content:     "<schema/>",
		Classifiers: []string{"http://example.org/orders#Customer"},
	}
	orders.SetProperty("priority", "10")
	rel := orders.EnsureRelationship("importedXsds")
	rel.Attributes = map[string]string{"kind": "import"}
	rel.AddTarget(&model.Target{UUID: "bbb", Type: "XsdDocument", Attributes: map[string]string{"location": "common.xsd"}})
	rel.AddTarget(&model.Target{})
	save(t, s, reg, orders)

	common := &model.Artifact{
		UUID: "bbb", Name: "common.xsd", Model: model.ModelXSD, Type: "XsdDocument",
		CreatedAt:   created.Add(24 * time.Hour),
		Classifiers: []string{"http://example.org/orders#Document"},
	}
	common.SetProperty("priority", "9")
	save(t, s, reg, common)

	save(t, s, reg, &model.Artifact{
		UUID: "ccc", Name: "notes.md", Model: model.ModelCore, Type: "Document",
		Content: "Notes about the widget catalog", Description: "scratch",
	})
}

func uuids(r *model.PagedResult[model.ArtifactSummary]) []string {
	out := make([]string, len(r.Items))
	for i, item := range r.Items {
		out[i] = item.UUID
	}
	return out
}

func TestGetArtifactRoundTrip(t *testing.T) {
	s := openStore(t)
	reg := testRegistry(t)
	seed(t, s, reg)

	a, err := s.GetArtifact(context.Background(), "aaa")
	require.NoError(t, err)

	assert.Equal(t, "orders.xsd", a.Name)
	assert.Equal(t, "alice", a.CreatedBy)
	assert.True(t, a.CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, map[string]string{"priority": "10"}, a.Properties)
	assert.Equal(t, []string{"http://example.org/orders#Customer"}, a.Classifiers)

	require.Len(t, a.Relationships, 1)
	rel := a.Relationships[0]
	assert.Equal(t, "importedXsds", rel.Name)
	assert.Equal(t, map[string]string{"kind": "import"}, rel.Attributes)
	require.Len(t, rel.Targets, 1, "placeholder targets are not stored")
	assert.Equal(t, "bbb", rel.Targets[0].UUID)
	assert.Equal(t, "common.xsd", rel.Targets[0].Attributes["location"])
}

func TestGetArtifactNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetArtifact(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestSaveArtifactReplaces(t *testing.T) {
	s := openStore(t)
	reg := testRegistry(t)
	seed(t, s, reg)
	ctx := context.Background()

	a, err := s.GetArtifact(ctx, "aaa")
	require.NoError(t, err)
	a.Properties = nil
	a.Relationships = nil
	save(t, s, reg, a)

	again, err := s.GetArtifact(ctx, "aaa")
	require.NoError(t, err)
	assert.Empty(t, again.Properties)
	assert.Empty(t, again.Relationships)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Artifacts)
	assert.Equal(t, 0, st.Relationships)
}

func TestDeleteArtifact(t *testing.T) {
	s := openStore(t)
	seed(t, s, testRegistry(t))
	ctx := context.Background()

	require.NoError(t, s.DeleteArtifact(ctx, "aaa"))
	_, err := s.GetArtifact(ctx, "aaa")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	err = s.DeleteArtifact(ctx, "aaa")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Artifacts)
	assert.Equal(t, 0, st.Targets)
}

func TestQueriesThroughEngine(t *testing.T) {
	s := openStore(t)
	reg := testRegistry(t)
	seed(t, s, reg)
	engine := query.NewEngine(s, reg)
	ctx := context.Background()

	tests := []struct {
		name   string
		query  string
		params []query.Param
		want   []string
	}{
		{name: "all", query: "/s-ramp", want: []string{"bbb", "ccc", "aaa"}},
		{name: "model", query: "/s-ramp/xsd", want: []string{"bbb", "aaa"}},
		{name: "model and type", query: "/s-ramp/xsd/XsdDocument[@name = ?]",
			params: []query.Param{query.StringParam("orders.xsd")}, want: []string{"aaa"}},
		{name: "numeric custom property", query: "/s-ramp[@priority > ?]",
			params: []query.Param{query.NumberParam[int64](9)}, want: []string{"aaa"}},
		{name: "property exists", query: "/s-ramp[@description]", want: []string{"ccc"}},
		{name: "date comparison", query: "/s-ramp[@createdTimestamp >= ?]",
			params: []query.Param{query.DateParam(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))}, want: []string{"bbb"}},
		{name: "normalized classification", query: "/s-ramp[s-ramp:classifiedByAnyOf(., 'Party')]", want: []string{"aaa"}},
		{name: "exact classification", query: "/s-ramp[s-ramp:exactlyClassifiedByAnyOf(., 'Party')]", want: []string{}},
		{name: "all of", query: "/s-ramp[s-ramp:classifiedByAllOf(., 'Party', 'Customer')]", want: []string{"aaa"}},
		{name: "free text", query: "/s-ramp[xp2:matches(., '.*widget.*')]", want: []string{"ccc"}},
		{name: "free text inside a word", query: "/s-ramp[xp2:matches(., '.*idge.*')]", want: []string{"ccc"}},
		{name: "free text prefix only", query: "/s-ramp[xp2:matches(., 'idge.*')]", want: []string{}},
		{name: "free text several infix words", query: "/s-ramp[xp2:matches(., '.*idge atalo.*')]", want: []string{"ccc"}},
		{name: "free text short infix word", query: "/s-ramp[xp2:matches(., '.*XS.*')]", want: []string{"bbb", "aaa"}},
		{name: "regexp on property", query: "/s-ramp[xp2:matches(@name, '^comm.*')]", want: []string{"bbb"}},
		{name: "regexp on artifact", query: "/s-ramp[xp2:matches(., 'sch[e]ma')]", want: []string{"aaa"}},
		{name: "not", query: "/s-ramp/xsd[fn:not(@name = 'common.xsd')]", want: []string{"aaa"}},
		{name: "relationship step", query: "/s-ramp/xsd/XsdDocument/importedXsds", want: []string{"bbb"}},
		{name: "relationship predicate", query: "/s-ramp[importedXsds[@name = 'common.xsd']]", want: []string{"aaa"}},
		{name: "relationship attribute", query: "/s-ramp[importedXsds[s-ramp:getRelationshipAttribute(., 'kind') = 'import']]", want: []string{"aaa"}},
		{name: "target attribute", query: "/s-ramp[importedXsds[s-ramp:getTargetAttribute(., 'location') = 'common.xsd']]", want: []string{"aaa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Query(ctx, tt.query, tt.params, query.ArgsInput{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, uuids(got))
			assert.Equal(t, len(tt.want), got.TotalAvailable)
		})
	}
}

func TestQueryPagingAndOrdering(t *testing.T) {
	s := openStore(t)
	reg := testRegistry(t)
	seed(t, s, reg)
	engine := query.NewEngine(s, reg)
	ctx := context.Background()

	orderBy := "priority"
	desc := false
	count := 1
	page := 2
	got, err := engine.Query(ctx, "/s-ramp/xsd", nil, query.ArgsInput{
		OrderBy: &orderBy, Ascending: &desc, Count: &count, StartPage: &page,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalAvailable)
	assert.Equal(t, 1, got.StartIndex)
	assert.Equal(t, []string{"bbb"}, uuids(got))
	assert.False(t, got.HasMore())

	start := 5
	got, err = engine.Query(ctx, "/s-ramp", nil, query.ArgsInput{StartIndex: &start})
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalAvailable)
	assert.Empty(t, got.Items)

	zero := 0
	got, err = engine.Query(ctx, "/s-ramp", nil, query.ArgsInput{Count: &zero})
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalAvailable)
	assert.Empty(t, got.Items)
}

func TestFindThroughEngine(t *testing.T) {
	s := openStore(t)
	reg := testRegistry(t)
	seed(t, s, reg)
	engine := query.NewEngine(s, reg)

	got, err := engine.Find(context.Background(), model.ModelXSD, []string{"XsdDocument", "ElementDeclaration"},
		map[string]string{"name": "common.xsd"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bbb"}, uuids(got))
}

func TestArtifactsByUUID(t *testing.T) {
	s := openStore(t)
	seed(t, s, testRegistry(t))

	got, err := s.ArtifactsByUUID(context.Background(), []string{"ccc", "aaa", "zzz"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "aaa", got[0].UUID)
	assert.Equal(t, "ccc", got[1].UUID)

	none, err := s.ArtifactsByUUID(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/catalog.db"
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version string
	require.NoError(t, s.DB().QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&version))
	assert.Equal(t, "2", version)
}

func TestOpenBackfillsTrigramIndex(t *testing.T) {
	path := t.TempDir() + "/catalog.db"
	s, err := Open(path)
	require.NoError(t, err)
	save(t, s, testRegistry(t), &model.Artifact{
		UUID: "ccc", Name: "notes.md", Model: model.ModelCore, Type: "Document", Content: "seafood platter",
	})
	// A version 1 catalog has no trigram rows.
	_, err = s.DB().Exec(`DELETE FROM fts_trigram`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`UPDATE meta SET value = '1' WHERE key = 'version'`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := query.NewEngine(s, nil).Query(context.Background(), "/s-ramp[xp2:matches(., '.*food.*')]", nil, query.ArgsInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ccc"}, uuids(got))
}

func TestDerivation(t *testing.T) {
	s := openStore(t)
	reg := testRegistry(t)
	ctx := context.Background()

	save(t, s, reg, &model.Artifact{UUID: "p1", Name: "orders.xsd", Model: model.ModelXSD, Type: "XsdDocument",
		Classifiers: []string{"http://example.org/orders#Customer"}})
	derived := &model.Artifact{UUID: "d1", Name: "OrderType", Model: model.ModelXSD, Type: "ComplexTypeDeclaration",
		Derived: true, DerivedFrom: "p1"}
	derived.EnsureRelationship("relatedDocument").AddTarget(&model.Target{UUID: "p1", Type: "XsdDocument"})
	save(t, s, reg, derived)
	save(t, s, reg, &model.Artifact{UUID: "x1", Name: "other.xsd", Model: model.ModelXSD, Type: "XsdDocument"})

	got, err := s.Derivation(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].UUID)
	assert.Equal(t, "p1", got[1].UUID)
	assert.Equal(t, []string{"http://example.org/orders#Customer"}, got[1].Classifiers)
	require.NotNil(t, got[0].Relationship("relatedDocument"))
	assert.Equal(t, "p1", got[0].Relationship("relatedDocument").Targets[0].UUID)

	none, err := s.Derivation(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
