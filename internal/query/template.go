package query

import (
	"strings"
	"time"
)

// Template is an immutable query string with '?' placeholders, plus the
// ordering the caller wants by default.
type Template struct {
	text      string
	orderBy   string
	ascending bool
}

// NewTemplate returns a template ordered by name, ascending.
func NewTemplate(text string) Template {
	return Template{text: text, orderBy: DefaultOrderBy, ascending: true}
}

// WithOrderBy returns a copy of the template ordered by the given property.
func (t Template) WithOrderBy(property string) Template {
	t.orderBy = property
	return t
}

// WithAscending returns a copy of the template with the given direction.
func (t Template) WithAscending(ascending bool) Template {
	t.ascending = ascending
	return t
}

// Text returns the raw template string.
func (t Template) Text() string { return t.text }

// OrderBy returns the template's order-by property.
func (t Template) OrderBy() string { return t.orderBy }

// Ascending returns the template's order direction.
func (t Template) Ascending() bool { return t.ascending }

// Placeholders returns the number of '?' placeholders in the template.
func (t Template) Placeholders() int {
	return strings.Count(t.text, "?")
}

// Statement returns a new statement for binding params to this template.
func (t Template) Statement() *Statement {
	return &Statement{template: t}
}

// Statement is a template plus the params bound to it so far, in call order.
type Statement struct {
	template Template
	params   []Param
	engine   *Engine
}

// Template returns the statement's template.
func (s *Statement) Template() Template { return s.template }

// Params returns the params bound so far.
func (s *Statement) Params() []Param { return s.params }

// Set appends an already-built param.
func (s *Statement) Set(p Param) *Statement {
	s.params = append(s.params, p)
	return s
}

// SetString binds the next placeholder to a string.
func (s *Statement) SetString(v string) *Statement { return s.Set(StringParam(v)) }

// SetInt binds the next placeholder to an integer.
func (s *Statement) SetInt(v int64) *Statement { return s.Set(NumberParam(v)) }

// SetFloat binds the next placeholder to a floating point number.
func (s *Statement) SetFloat(v float64) *Statement { return s.Set(NumberParam(v)) }

// SetDate binds the next placeholder to a date.
func (s *Statement) SetDate(v time.Time) *Statement { return s.Set(DateParam(v)) }

// SetDateTime binds the next placeholder to a date-time.
func (s *Statement) SetDateTime(v time.Time) *Statement { return s.Set(DateTimeParam(v)) }

// Bind returns the concrete query string.
func (s *Statement) Bind() (string, error) {
	return Bind(s.template.text, s.params)
}
