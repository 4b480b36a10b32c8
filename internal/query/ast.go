// Package query implements the artifact query language: parameter binding,
// parsing into an AST, and compilation of the AST into SQL for the store.
//
// A query is a location path with optional predicates:
//
//	/s-ramp/xsd/XsdDocument[@name = 'orders.xsd' and importedXsds[@ncName = 'Item']]
//
// The first step is always "s-ramp". The second step selects an artifact model,
// the third an artifact type (either may be "*"), and any further steps follow
// relationships to their target artifacts.
package query

import (
	"strings"
	"time"
)

// Query is the root of a parsed query.
type Query struct {
	Path *LocationPath
}

func (q *Query) String() string {
	if q == nil || q.Path == nil {
		return ""
	}
	return "/" + q.Path.String()
}

// LocationPath is a '/'-separated sequence of steps.
type LocationPath struct {
	Steps []*Step
}

func (p *LocationPath) String() string {
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// Step is a named path step with zero or more predicates.
type Step struct {
	Name       string // "*" for a wildcard step
	Predicates []Expr
	Pos        int
}

func (s *Step) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	for _, p := range s.Predicates {
		sb.WriteString("[")
		sb.WriteString(p.String())
		sb.WriteString("]")
	}
	return sb.String()
}

// Expr is any node that can appear inside a predicate.
type Expr interface {
	exprNode()
	String() string
}

// OrExpr is a disjunction of two or more operands.
type OrExpr struct {
	Operands []Expr
}

// AndExpr is a conjunction of two or more operands.
type AndExpr struct {
	Operands []Expr
}

// CompareOp represents a comparison operator.
type CompareOp int

const (
	CompareEq  CompareOp = iota // =
	CompareNeq                  // !=
	CompareLt                   // <
	CompareGt                   // >
	CompareLte                  // <=
	CompareGte                  // >=
)

func (op CompareOp) String() string {
	switch op {
	case CompareNeq:
		return "!="
	case CompareLt:
		return "<"
	case CompareGt:
		return ">"
	case CompareLte:
		return "<="
	case CompareGte:
		return ">="
	default:
		return "="
	}
}

// CompareExpr is a binary relational expression: Left Op Right.
type CompareExpr struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

// PropertyStep is a forward property reference such as @name or @prop1.
type PropertyStep struct {
	Name string
}

// ContextItem is the "." expression: the artifact (or relationship) currently in scope.
type ContextItem struct{}

// StringLiteral is a quoted string. Value is unescaped.
type StringLiteral struct {
	Value string
}

// NumberLiteral is a numeric literal. Text keeps the original spelling.
type NumberLiteral struct {
	Text  string
	Value float64
}

// DateLiteral is a bare ISO date or date-time.
type DateLiteral struct {
	Text    string
	Time    time.Time
	HasTime bool
}

// RelationshipPath is a relationship traversal inside a predicate, e.g.
// importedXsds[@name = 'b']/includedXsds.
type RelationshipPath struct {
	Steps []*Step
}

// FunctionCall is prefix:name(arg, ...). Prefix may be empty.
type FunctionCall struct {
	Prefix string
	Name   string
	Args   []Expr
	Pos    int
}

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	Inner Expr
}

func (*OrExpr) exprNode()           {}
func (*AndExpr) exprNode()          {}
func (*CompareExpr) exprNode()      {}
func (*PropertyStep) exprNode()     {}
func (*ContextItem) exprNode()      {}
func (*StringLiteral) exprNode()    {}
func (*NumberLiteral) exprNode()    {}
func (*DateLiteral) exprNode()      {}
func (*RelationshipPath) exprNode() {}
func (*FunctionCall) exprNode()     {}
func (*ParenExpr) exprNode()        {}

func (e *OrExpr) String() string  { return joinExprs(e.Operands, " or ") }
func (e *AndExpr) String() string { return joinExprs(e.Operands, " and ") }

func (e *CompareExpr) String() string {
	return e.Left.String() + " " + e.Op.String() + " " + e.Right.String()
}

func (e *PropertyStep) String() string { return "@" + e.Name }
func (*ContextItem) String() string    { return "." }

func (e *StringLiteral) String() string {
	return "'" + strings.ReplaceAll(e.Value, "'", "''") + "'"
}

func (e *NumberLiteral) String() string { return e.Text }
func (e *DateLiteral) String() string   { return e.Text }

func (e *RelationshipPath) String() string {
	return (&LocationPath{Steps: e.Steps}).String()
}

func (e *FunctionCall) String() string {
	var sb strings.Builder
	if e.Prefix != "" {
		sb.WriteString(e.Prefix)
		sb.WriteString(":")
	}
	sb.WriteString(e.Name)
	sb.WriteString("(")
	sb.WriteString(joinExprs(e.Args, ", "))
	sb.WriteString(")")
	return sb.String()
}

func (e *ParenExpr) String() string { return "(" + e.Inner.String() + ")" }

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}
