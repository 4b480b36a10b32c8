package query

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/sqlutil"
)

// ParamKind tags a replacement param.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamNumber
	ParamDate
	ParamDateTime
)

func (k ParamKind) String() string {
	switch k {
	case ParamNumber:
		return "number"
	case ParamDate:
		return "date"
	case ParamDateTime:
		return "datetime"
	default:
		return "string"
	}
}

// Param is a typed replacement value for one '?' placeholder.
type Param struct {
	kind ParamKind
	text string // unformatted value: raw string, number spelling, or ISO date text

	nonFinite bool // NaN or an infinity; rejected by Bind
}

// Number is the set of numeric types accepted by NumberParam.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// StringParam returns a string param. It is bound as a quoted literal.
func StringParam(s string) Param {
	return Param{kind: ParamString, text: s}
}

// NumberParam returns a numeric param. It is bound as a bare literal.
// NaN and infinities have no literal form, so Bind rejects them.
func NumberParam[N Number](n N) Param {
	switch v := any(n).(type) {
	case float32:
		return floatParam(float64(v), 32)
	case float64:
		return floatParam(v, 64)
	}
	// Integer kinds, including named types.
	f := float64(n)
	if f == float64(int64(n)) {
		return Param{kind: ParamNumber, text: strconv.FormatInt(int64(n), 10)}
	}
	return Param{kind: ParamNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

func floatParam(f float64, bitSize int) Param {
	return Param{
		kind:      ParamNumber,
		text:      strconv.FormatFloat(f, 'g', -1, bitSize),
		nonFinite: math.IsNaN(f) || math.IsInf(f, 0),
	}
}

// DateParam returns a date param, bound as a bare ISO date (2006-01-02).
func DateParam(t time.Time) Param {
	return Param{kind: ParamDate, text: t.Format("2006-01-02")}
}

// DateTimeParam returns a date-time param, bound as a bare RFC 3339 UTC timestamp.
func DateTimeParam(t time.Time) Param {
	return Param{kind: ParamDateTime, text: t.UTC().Format(time.RFC3339)}
}

// Kind returns the param's tag.
func (p Param) Kind() ParamKind { return p.kind }

// Formatted returns the literal text substituted for the placeholder.
func (p Param) Formatted() string {
	if p.kind == ParamString {
		return sqlutil.QuoteLiteral(p.text)
	}
	return p.text
}

// Bind substitutes params for the '?' placeholders of template, left to right.
// The placeholder and param counts must match exactly.
func Bind(template string, params []Param) (string, error) {
	segments := strings.Split(template, "?")
	placeholders := len(segments) - 1

	if len(params) < placeholders {
		return "", errors.WithHintf(
			errors.Wrapf(ErrTooFewParams, "template has %d placeholders but %d params were bound", placeholders, len(params)),
			"bind one value per '?' in the template")
	}
	if len(params) > placeholders {
		return "", errors.WithHintf(
			errors.Wrapf(ErrTooManyParams, "template has %d placeholders but %d params were bound", placeholders, len(params)),
			"bind one value per '?' in the template")
	}

	for i, p := range params {
		if p.nonFinite {
			return "", errors.WithHint(
				errors.Wrapf(ErrInvalidParam, "param %d is %s", i+1, p.text),
				"numeric params must be finite")
		}
	}

	var sb strings.Builder
	sb.Grow(len(template) + 16*len(params))
	for i, seg := range segments {
		sb.WriteString(seg)
		if i < len(params) {
			sb.WriteString(params[i].Formatted())
		}
	}
	return sb.String(), nil
}
