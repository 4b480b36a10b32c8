package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/sqlutil"
)

// OntologyResolver maps a free-form classifier (a URI, class id or label) to
// the canonical class URI.
type OntologyResolver interface {
	Resolve(classifier string) (string, error)
}

// CompileOptions carries the ordering applied to a compiled query. It is
// independent of the AST.
type CompileOptions struct {
	OrderBy   string
	Ascending bool
}

// Compiled is a query translated to SQL over the store schema.
// ResultAlias names the artifacts alias whose rows form the result.
type Compiled struct {
	ResultAlias string
	From        string
	Where       string
	OrderExpr   string
	Ascending   bool
}

// summaryColumns are the artifact columns selected for a result row, in scan order.
var summaryColumns = []string{
	"uuid", "name", "model", "type", "description",
	"created_by", "created_at", "last_modified_at", "derived",
}

// SelectSQL returns the row query. The caller appends LIMIT/OFFSET.
func (c *Compiled) SelectSQL() string {
	cols := make([]string, len(summaryColumns))
	for i, col := range summaryColumns {
		cols[i] = c.ResultAlias + "." + col
	}

	dir := "ASC"
	if !c.Ascending {
		dir = "DESC"
	}

	return fmt.Sprintf("SELECT DISTINCT %s, %s AS sort_key FROM %s WHERE %s ORDER BY sort_key %s, %s.uuid ASC",
		strings.Join(cols, ", "), c.OrderExpr, c.From, c.where(), dir, c.ResultAlias)
}

// CountSQL returns a query for the total number of matching artifacts.
func (c *Compiled) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(DISTINCT %s.uuid) FROM %s WHERE %s", c.ResultAlias, c.From, c.where())
}

func (c *Compiled) String() string { return c.SelectSQL() }

func (c *Compiled) where() string {
	if c.Where == "" {
		return "1 = 1"
	}
	return c.Where
}

// Compile compiles q with a fresh Compiler.
func Compile(q *Query, ontology OntologyResolver, opts CompileOptions) (*Compiled, error) {
	c := NewCompiler(ontology)
	c.SetOrderBy(opts.OrderBy, opts.Ascending)
	return c.Compile(q)
}

// Compiler translates one Query AST into SQL. A Compiler owns its alias
// counter and compiles exactly one query; it must not be shared between
// goroutines.
type Compiler struct {
	ontology  OntologyResolver
	orderBy   string
	ascending bool
	aliases   aliasCounter
	used      bool
}

// NewCompiler returns a compiler ordering by name, ascending.
func NewCompiler(ontology OntologyResolver) *Compiler {
	return &Compiler{ontology: ontology, orderBy: DefaultOrderBy, ascending: true}
}

// SetOrderBy sets the order-by property and direction. It must be called
// before Compile.
func (c *Compiler) SetOrderBy(property string, ascending bool) {
	if property == "" {
		property = DefaultOrderBy
	}
	c.orderBy = property
	c.ascending = ascending
}

type aliasCounter struct {
	n int
}

func (a *aliasCounter) next(prefix string) string {
	a.n++
	return prefix + strconv.Itoa(a.n)
}

// scope is what "." and the attribute accessors refer to while compiling a
// predicate. relationship and target are empty outside relationship steps.
type scope struct {
	artifact     string
	relationship string
	target       string
}

func (s scope) inRelationship() bool { return s.relationship != "" }

// Compile translates q. The first error aborts compilation and no partial
// result is returned.
func (c *Compiler) Compile(q *Query) (*Compiled, error) {
	if c.used {
		return nil, ErrCompilerReused
	}
	c.used = true

	if q == nil || q.Path == nil || len(q.Path.Steps) == 0 {
		return nil, errors.Wrap(ErrInvalidQuery, "empty query")
	}
	steps := q.Path.Steps
	if steps[0].Name != "s-ramp" {
		return nil, errors.Wrapf(ErrInvalidQuery, "query must start with /s-ramp, got /%s", steps[0].Name)
	}

	cur := scope{artifact: c.aliases.next("artifact")}
	from := []string{"artifacts " + cur.artifact}
	var where []string

	for i, step := range steps {
		switch i {
		case 0:
			// s-ramp root
		case 1:
			if step.Name != "*" {
				where = append(where, fmt.Sprintf("%s.model = %s", cur.artifact, sqlutil.QuoteLiteral(step.Name)))
			}
		case 2:
			if step.Name != "*" {
				where = append(where, fmt.Sprintf("%s.type = %s", cur.artifact, sqlutil.QuoteLiteral(step.Name)))
			}
		default:
			var join string
			cur, join = c.relationshipJoin(cur.artifact, step.Name)
			from = append(from, join)
		}

		for _, pred := range step.Predicates {
			cond, err := c.condition(pred, cur)
			if err != nil {
				return nil, err
			}
			where = append(where, cond)
		}
	}

	orderExpr, err := c.orderExpr(cur.artifact)
	if err != nil {
		return nil, err
	}

	return &Compiled{
		ResultAlias: cur.artifact,
		From:        strings.Join(from, " "),
		Where:       strings.Join(where, " AND "),
		OrderExpr:   orderExpr,
		Ascending:   c.ascending,
	}, nil
}

// relationshipJoin follows relationship name (or any, for "*") from the
// source alias to its target artifacts.
func (c *Compiler) relationshipJoin(source, name string) (scope, string) {
	next := c.relationshipScope()
	return next, fmt.Sprintf("JOIN relationships %s ON %s %s", next.relationship, relationshipOn(next, source, name), targetJoins(next))
}

func (c *Compiler) relationshipScope() scope {
	next := scope{
		relationship: c.aliases.next("relationship"),
		target:       c.aliases.next("target"),
	}
	next.artifact = c.aliases.next("artifact")
	return next
}

func relationshipOn(next scope, source, name string) string {
	on := fmt.Sprintf("%s.source_uuid = %s.uuid", next.relationship, source)
	if name != "*" {
		on += fmt.Sprintf(" AND %s.name = %s", next.relationship, sqlutil.QuoteLiteral(name))
	}
	return on
}

func targetJoins(next scope) string {
	return fmt.Sprintf("JOIN targets %s ON %s.relationship_id = %s.id JOIN artifacts %s ON %s.uuid = %s.target_uuid",
		next.target, next.target, next.relationship,
		next.artifact, next.artifact, next.target)
}

func (c *Compiler) orderExpr(alias string) (string, error) {
	if !IsName(c.orderBy) {
		return "", errors.Wrapf(ErrInvalidQuery, "invalid order-by property %q", c.orderBy)
	}
	return c.propertyValue(c.orderBy, alias), nil
}

// condition compiles an expression used as a boolean predicate.
func (c *Compiler) condition(expr Expr, s scope) (string, error) {
	switch e := expr.(type) {
	case *OrExpr:
		return c.joinConditions(e.Operands, " OR ", s)
	case *AndExpr:
		return c.joinConditions(e.Operands, " AND ", s)
	case *ParenExpr:
		inner, err := c.condition(e.Inner, s)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *CompareExpr:
		return c.comparison(e, s)
	case *PropertyStep:
		return c.propertyExists(e.Name, s.artifact), nil
	case *RelationshipPath:
		return c.relationshipExists(e, s)
	case *FunctionCall:
		return c.functionCondition(e, s)
	case *ContextItem, *StringLiteral, *NumberLiteral, *DateLiteral:
		return "", errors.Wrapf(ErrInvalidQuery, "%s is not a predicate", expr.String())
	default:
		return "", errors.Wrapf(ErrInvalidQuery, "unsupported expression %T", expr)
	}
}

func (c *Compiler) joinConditions(operands []Expr, sep string, s scope) (string, error) {
	parts := make([]string, 0, len(operands))
	for _, op := range operands {
		cond, err := c.condition(op, s)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (c *Compiler) comparison(e *CompareExpr, s scope) (string, error) {
	left, err := c.value(e.Left, s)
	if err != nil {
		return "", err
	}
	right, err := c.value(e.Right, s)
	if err != nil {
		return "", err
	}
	left, right = coerceOperands(e.Left, left, e.Right, right)
	return left.sql + " " + e.Op.String() + " " + right.sql, nil
}

// operand is a compiled value expression.
type operand struct {
	sql string
	// untyped is set for values stored as free text (custom properties and
	// attributes), which need a cast to compare numerically.
	untyped bool
	// timestamp is set for RFC 3339 timestamp columns.
	timestamp bool
}

// coerceOperands adjusts both sides of a comparison to a common type:
// free-text values compared with numbers are cast to REAL, and timestamps
// compared with a bare date are truncated to the date.
func coerceOperands(le Expr, l operand, re Expr, r operand) (operand, operand) {
	if _, ok := re.(*NumberLiteral); ok && l.untyped {
		l.sql = "CAST(" + l.sql + " AS REAL)"
	}
	if _, ok := le.(*NumberLiteral); ok && r.untyped {
		r.sql = "CAST(" + r.sql + " AS REAL)"
	}
	if d, ok := re.(*DateLiteral); ok && !d.HasTime && (l.timestamp || l.untyped) {
		l.sql = "substr(" + l.sql + ", 1, 10)"
	}
	if d, ok := le.(*DateLiteral); ok && !d.HasTime && (r.timestamp || r.untyped) {
		r.sql = "substr(" + r.sql + ", 1, 10)"
	}
	return l, r
}

// value compiles an expression used as a comparison operand.
func (c *Compiler) value(expr Expr, s scope) (operand, error) {
	switch e := expr.(type) {
	case *PropertyStep:
		col, core := coreColumns[e.Name]
		if core {
			return operand{sql: s.artifact + "." + col, timestamp: timestampColumns[col]}, nil
		}
		return operand{sql: c.customProperty(e.Name, s.artifact), untyped: true}, nil
	case *StringLiteral:
		return operand{sql: sqlutil.QuoteLiteral(e.Value)}, nil
	case *NumberLiteral:
		return operand{sql: e.Text}, nil
	case *DateLiteral:
		if e.HasTime {
			return operand{sql: sqlutil.QuoteLiteral(e.Time.UTC().Format(timestampLayout))}, nil
		}
		return operand{sql: sqlutil.QuoteLiteral(e.Text)}, nil
	case *ParenExpr:
		return c.value(e.Inner, s)
	case *FunctionCall:
		sql, err := c.functionValue(e, s)
		if err != nil {
			return operand{}, err
		}
		return operand{sql: sql, untyped: true}, nil
	default:
		return operand{}, errors.Wrapf(ErrInvalidQuery, "%s cannot be compared", expr.String())
	}
}

// timestampLayout is the layout timestamps are stored with.
const timestampLayout = "2006-01-02T15:04:05Z07:00"

// coreColumns maps core artifact properties to artifacts columns. Every other
// property name refers to a custom property.
var coreColumns = map[string]string{
	"uuid":                  "uuid",
	"name":                  "name",
	"description":           "description",
	"version":               "version",
	"mimeType":              "mime_type",
	"createdBy":             "created_by",
	"createdTimestamp":      "created_at",
	"lastModifiedTimestamp": "last_modified_at",
	"artifactModel":         "model",
	"artifactType":          "type",
	"derived":               "derived",
}

var timestampColumns = map[string]bool{
	"created_at":       true,
	"last_modified_at": true,
}

// IsCoreProperty reports whether name is stored as an artifact column rather
// than a custom property.
func IsCoreProperty(name string) bool {
	_, ok := coreColumns[name]
	return ok
}

func (c *Compiler) propertyValue(name, alias string) string {
	if col, ok := coreColumns[name]; ok {
		return alias + "." + col
	}
	return c.customProperty(name, alias)
}

func (c *Compiler) customProperty(name, alias string) string {
	p := c.aliases.next("property")
	return fmt.Sprintf("(SELECT %s.value FROM properties %s WHERE %s.artifact_uuid = %s.uuid AND %s.name = %s)",
		p, p, p, alias, p, sqlutil.QuoteLiteral(name))
}

func (c *Compiler) propertyExists(name, alias string) string {
	if col, ok := coreColumns[name]; ok {
		return fmt.Sprintf("COALESCE(%s.%s, '') != ''", alias, col)
	}
	p := c.aliases.next("property")
	return fmt.Sprintf("EXISTS (SELECT 1 FROM properties %s WHERE %s.artifact_uuid = %s.uuid AND %s.name = %s)",
		p, p, alias, p, sqlutil.QuoteLiteral(name))
}

// relationshipExists compiles a relationship path used as a predicate: true
// when at least one chain of targets satisfies every step's predicates.
func (c *Compiler) relationshipExists(path *RelationshipPath, s scope) (string, error) {
	cur := s
	var from []string
	var where []string

	for i, step := range path.Steps {
		var next scope
		if i == 0 {
			// The first relationship is correlated with the enclosing artifact.
			next = c.relationshipScope()
			from = append(from, fmt.Sprintf("relationships %s %s", next.relationship, targetJoins(next)))
			where = append(where, relationshipOn(next, cur.artifact, step.Name))
		} else {
			var join string
			next, join = c.relationshipJoin(cur.artifact, step.Name)
			from = append(from, join)
		}
		cur = next

		for _, pred := range step.Predicates {
			cond, err := c.condition(pred, cur)
			if err != nil {
				return "", err
			}
			where = append(where, cond)
		}
	}

	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", strings.Join(from, " "), strings.Join(where, " AND ")), nil
}
