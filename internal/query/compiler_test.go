package query

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnknownClass = errors.New("unknown class")

// fakeOntology resolves classifiers from a fixed table.
type fakeOntology map[string]string

func (o fakeOntology) Resolve(classifier string) (string, error) {
	if uri, ok := o[classifier]; ok {
		return uri, nil
	}
	return "", errors.Wrapf(errUnknownClass, "%q", classifier)
}

var testOntology = fakeOntology{
	"Customer": "http://example.org/ont#Customer",
	"Order":    "http://example.org/ont#Order",

	"http://example.org/ont#Order": "http://example.org/ont#Order",
}

func compileString(t *testing.T, input string, opts CompileOptions) (*Compiled, error) {
	t.Helper()
	q, err := Parse(input)
	require.NoError(t, err)
	if opts.OrderBy == "" {
		opts.OrderBy = DefaultOrderBy
		opts.Ascending = true
	}
	return Compile(q, testOntology, opts)
}

func mustCompile(t *testing.T, input string) *Compiled {
	t.Helper()
	c, err := compileString(t, input, CompileOptions{})
	require.NoError(t, err)
	return c
}

func TestCompileGolden(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  CompileOptions
	}{
		{
			name:  "property_equality",
			input: "/s-ramp/xsd/XsdDocument[@name = 'orders.xsd']",
		},
		{
			name:  "relationship_step_custom_order",
			input: "/s-ramp/xsd/XsdDocument/importedXsds[@targetNamespace = 'urn:a']",
			opts:  CompileOptions{OrderBy: "targetNamespace", Ascending: false},
		},
		{
			name:  "classification_and_free_text",
			input: "/s-ramp[s-ramp:classifiedByAnyOf(., 'Customer') and xp2:matches(., '.*order.*')]",
		},
		{
			name:  "relationship_attribute",
			input: "/s-ramp/xsd/XsdDocument[importedXsds[s-ramp:getRelationshipAttribute(., 'kind') = 'strong']]",
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := compileString(t, tt.input, tt.opts)
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(compiled.SelectSQL()+"\n"))
		})
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	input := "/s-ramp/xsd/XsdDocument[@prop1 = 'x' and importedXsds[@name = 'b']]/includedXsds[@prop2]"

	first := mustCompile(t, input)
	second := mustCompile(t, input)
	assert.Equal(t, first.SelectSQL(), second.SelectSQL())
	assert.Equal(t, first.CountSQL(), second.CountSQL())

	// property2 for @prop1, relationship3..artifact5 in the predicate
	// subquery, then the location step and property9 for @prop2.
	assert.Contains(t, first.Where, "property2.name = 'prop1'")
	assert.Contains(t, first.Where, "relationship3.source_uuid = artifact1.uuid")
	assert.Contains(t, first.Where, "property9.name = 'prop2'")
	assert.Equal(t, "artifact8", first.ResultAlias)
}

func TestCompilerRefusesReuse(t *testing.T) {
	q, err := Parse("/s-ramp")
	require.NoError(t, err)

	c := NewCompiler(nil)
	_, err = c.Compile(q)
	require.NoError(t, err)

	_, err = c.Compile(q)
	assert.True(t, errors.Is(err, ErrCompilerReused))
}

func TestCompileEscapesStringLiterals(t *testing.T) {
	bound, err := Bind("/s-ramp[@name = ?]", []Param{StringParam("O'Brien")})
	require.NoError(t, err)

	q, err := Parse(bound)
	require.NoError(t, err)
	compiled, err := Compile(q, nil, CompileOptions{OrderBy: "name", Ascending: true})
	require.NoError(t, err)

	assert.Contains(t, compiled.Where, "artifact1.name = 'O''Brien'")
}

func TestCompileFullTextIdiom(t *testing.T) {
	compiled := mustCompile(t, "/s-ramp[xp2:matches(., '.*foo.*')]")

	assert.Equal(t, `artifact1.uuid IN (SELECT uuid FROM fts_trigram WHERE fts_trigram MATCH '"foo"')`, compiled.Where)
	assert.NotContains(t, compiled.Where, "properties")
}

func TestCompileMatches(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "regex over the whole artifact",
			input: "/s-ramp[xp2:matches(., 'ord(er)?s')]",
			want:  "(COALESCE(artifact1.name, '') || ' ' || COALESCE(artifact1.content, '')) REGEXP 'ord(er)?s'",
		},
		{
			name:  "core property",
			input: "/s-ramp[matches(@name, '^orders')]",
			want:  "artifact1.name REGEXP '^orders'",
		},
		{
			name:  "case insensitive flag",
			input: "/s-ramp[matches(@name, 'orders', 'i')]",
			want:  "artifact1.name REGEXP '(?i)orders'",
		},
		{
			name:  "custom property",
			input: "/s-ramp[matches(@ncName, 'Item.*')]",
			want:  "(SELECT property2.value FROM properties property2 WHERE property2.artifact_uuid = artifact1.uuid AND property2.name = 'ncName') REGEXP 'Item.*'",
		},
		{
			name:  "prefix words without a leading wildcard",
			input: "/s-ramp[matches(., 'foo.*')]",
			want:  `artifact1.uuid IN (SELECT uuid FROM fts_content WHERE fts_content MATCH '"foo"*')`,
		},
		{
			name:  "infix words with a short word",
			input: "/s-ramp[matches(., '.*sea Fo')]",
			want: `(artifact1.uuid IN (SELECT uuid FROM fts_trigram WHERE fts_trigram MATCH '"sea"') AND ` +
				`(instr(lower(artifact1.name), 'fo') > 0 OR instr(lower(artifact1.content), 'fo') > 0))`,
		},
		{
			name:  "multiple words",
			input: "/s-ramp[matches(., 'purchase order-line')]",
			want:  `artifact1.uuid IN (SELECT uuid FROM fts_content WHERE fts_content MATCH '"purchase"* "order-line"*')`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustCompile(t, tt.input).Where)
		})
	}
}

func TestCompileClassification(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "any of uses the normalized set",
			input: "/s-ramp[classifiedByAnyOf(., 'Customer', 'Order')]",
			want:  "EXISTS (SELECT 1 FROM classifications classification2 WHERE classification2.artifact_uuid = artifact1.uuid AND classification2.normalized = 1 AND classification2.uri IN ('http://example.org/ont#Customer', 'http://example.org/ont#Order'))",
		},
		{
			name:  "all of tests each class",
			input: "/s-ramp[s-ramp:classifiedByAllOf(., 'Customer', 'Order')]",
			want: "(EXISTS (SELECT 1 FROM classifications classification2 WHERE classification2.artifact_uuid = artifact1.uuid AND classification2.normalized = 1 AND classification2.uri IN ('http://example.org/ont#Customer'))" +
				" AND EXISTS (SELECT 1 FROM classifications classification3 WHERE classification3.artifact_uuid = artifact1.uuid AND classification3.normalized = 1 AND classification3.uri IN ('http://example.org/ont#Order')))",
		},
		{
			name:  "exactly uses the direct set",
			input: "/s-ramp[exactlyClassifiedByAnyOf(., 'Order')]",
			want:  "EXISTS (SELECT 1 FROM classifications classification2 WHERE classification2.artifact_uuid = artifact1.uuid AND classification2.normalized = 0 AND classification2.uri IN ('http://example.org/ont#Order'))",
		},
		{
			name:  "duplicates collapse",
			input: "/s-ramp[classifiedByAnyOf(., 'Order', 'http://example.org/ont#Order')]",
			want:  "EXISTS (SELECT 1 FROM classifications classification2 WHERE classification2.artifact_uuid = artifact1.uuid AND classification2.normalized = 1 AND classification2.uri IN ('http://example.org/ont#Order'))",
		},
		{
			name:  "no classifiers never matches",
			input: "/s-ramp[classifiedByAnyOf(.)]",
			want:  "1 = 0",
		},
		{
			name:  "no classifiers for all of never matches",
			input: "/s-ramp[exactlyClassifiedByAllOf(.)]",
			want:  "1 = 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustCompile(t, tt.input).Where)
		})
	}
}

func TestCompileComparisons(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "custom property against a number is cast",
			input: "/s-ramp[@size > 10]",
			want:  "CAST((SELECT property2.value FROM properties property2 WHERE property2.artifact_uuid = artifact1.uuid AND property2.name = 'size') AS REAL) > 10",
		},
		{
			name:  "timestamp against a date compares the date part",
			input: "/s-ramp[@createdTimestamp >= 2024-01-02]",
			want:  "substr(artifact1.created_at, 1, 10) >= '2024-01-02'",
		},
		{
			name:  "timestamp against a date-time is normalized to UTC",
			input: "/s-ramp[@lastModifiedTimestamp < 2024-01-02T12:00:00+02:00]",
			want:  "artifact1.last_modified_at < '2024-01-02T10:00:00Z'",
		},
		{
			name:  "core property existence",
			input: "/s-ramp[@description]",
			want:  "COALESCE(artifact1.description, '') != ''",
		},
		{
			name:  "custom property existence",
			input: "/s-ramp[@prop1]",
			want:  "EXISTS (SELECT 1 FROM properties property2 WHERE property2.artifact_uuid = artifact1.uuid AND property2.name = 'prop1')",
		},
		{
			name:  "not",
			input: "/s-ramp[fn:not(@name = 'a')]",
			want:  "NOT (artifact1.name = 'a')",
		},
		{
			name:  "or and parens",
			input: "/s-ramp[(@name = 'a' or @name = 'b') and @version != '1']",
			want:  "(((artifact1.name = 'a' OR artifact1.name = 'b')) AND artifact1.version != '1')",
		},
		{
			name:  "literal on the left",
			input: "/s-ramp['a' = @artifactType]",
			want:  "'a' = artifact1.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustCompile(t, tt.input).Where)
		})
	}
}

func TestCompileWildcards(t *testing.T) {
	compiled := mustCompile(t, "/s-ramp/*/*")
	assert.Equal(t, "", compiled.Where)
	assert.Contains(t, compiled.SelectSQL(), "WHERE 1 = 1")
	assert.Equal(t, "SELECT COUNT(DISTINCT artifact1.uuid) FROM artifacts artifact1 WHERE 1 = 1", compiled.CountSQL())

	compiled = mustCompile(t, "/s-ramp/xsd/XsdDocument/*")
	assert.NotContains(t, compiled.From, "relationship2.name")
	assert.Equal(t, "artifact4", compiled.ResultAlias)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "wrong root",
			input:   "/catalog/xsd",
			wantErr: ErrInvalidQuery,
		},
		{
			name:    "unknown function",
			input:   "/s-ramp[fn:frobnicate(.)]",
			wantErr: ErrUnknownFunction,
		},
		{
			name:    "prefix mismatch",
			input:   "/s-ramp[fn:matches(., 'x')]",
			wantErr: ErrUnknownFunction,
		},
		{
			name:    "matches subject is not a property",
			input:   "/s-ramp[matches('name', 'x')]",
			wantErr: ErrExpectedPropertyArgument,
		},
		{
			name:    "matches pattern is not a literal",
			input:   "/s-ramp[matches(@name, @other)]",
			wantErr: ErrExpectedStringLiteral,
		},
		{
			name:    "classifier is not a literal",
			input:   "/s-ramp[classifiedByAnyOf(., @name)]",
			wantErr: ErrExpectedStringLiteral,
		},
		{
			name:    "unknown classifier",
			input:   "/s-ramp[classifiedByAnyOf(., 'Nope')]",
			wantErr: errUnknownClass,
		},
		{
			name:    "attribute accessor outside a relationship",
			input:   "/s-ramp[getTargetAttribute(., 'x') = 'y']",
			wantErr: ErrNoRelationshipContext,
		},
		{
			name:    "bare literal predicate",
			input:   "/s-ramp['x']",
			wantErr: ErrInvalidQuery,
		},
		{
			name:    "invalid regex",
			input:   "/s-ramp[matches(@name, '(')]",
			wantErr: ErrInvalidQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.input, CompileOptions{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCompileInvalidOrderBy(t *testing.T) {
	q, err := Parse("/s-ramp")
	require.NoError(t, err)
	_, err = Compile(q, nil, CompileOptions{OrderBy: "name; DROP TABLE artifacts", Ascending: true})
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestCompileTargetAttributeInLocationStep(t *testing.T) {
	compiled := mustCompile(t, "/s-ramp/xsd/XsdDocument/importedXsds[getTargetAttribute(., 'order')]")
	assert.Contains(t, compiled.Where, "EXISTS (SELECT 1 FROM target_attributes attribute5 WHERE attribute5.target_id = target3.id AND attribute5.name = 'order')")
}
