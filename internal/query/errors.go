package query

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrTooFewParams is returned when a template has more placeholders than bound params.
	ErrTooFewParams = errors.New("too few replacement params")
	// ErrTooManyParams is returned when params remain after the last placeholder.
	ErrTooManyParams = errors.New("too many replacement params")
	// ErrInvalidParam is returned for a param that has no literal form, such as NaN.
	ErrInvalidParam = errors.New("invalid replacement param")

	// ErrQueryParse marks every syntax error; see QueryParseError for the position.
	ErrQueryParse = errors.New("query parse error")

	// ErrExpectedPropertyArgument is returned when a function argument must be a bare @property.
	ErrExpectedPropertyArgument = errors.New("expected a property argument")
	// ErrExpectedStringLiteral is returned when a function argument must be a string literal.
	ErrExpectedStringLiteral = errors.New("expected a string literal argument")

	// ErrUnknownFunction is returned for calls to functions the compiler does not support.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrNoRelationshipContext is returned when a relationship or target accessor is used
	// outside of a relationship predicate.
	ErrNoRelationshipContext = errors.New("function requires a relationship context")
	// ErrInvalidQuery covers structurally valid queries the compiler cannot translate.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrCompilerReused is returned when a Compiler is asked to compile a second query.
	ErrCompilerReused = errors.New("compiler instances compile exactly one query")

	// ErrInvalidPaging is returned for negative counts or start indexes, or a start page below 1.
	ErrInvalidPaging = errors.New("invalid paging arguments")
	// ErrInvalidCriteria is returned for criteria maps that cannot be turned into a query.
	ErrInvalidCriteria = errors.New("invalid criteria")
)

// QueryParseError is a syntax error at a byte offset of the (bound) query string.
type QueryParseError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *QueryParseError) Error() string {
	return fmt.Sprintf("query parse error at position %d: %s", e.Pos, e.Msg)
}

// Unwrap lets errors.Is(err, ErrQueryParse) match every parse error.
func (e *QueryParseError) Unwrap() error { return ErrQueryParse }
