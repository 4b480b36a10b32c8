package cli

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/dates"
	"github.com/aidanlsb/sramp/internal/query"
)

var errBadParam = errors.New("invalid --param")

// clock supplies the day that relative dates resolve against.
var clock = time.Now

// parseParam parses a --param value of the form kind:value, where kind is
// string, number, date (YYYY-MM-DD, today, yesterday, tomorrow) or datetime
// (RFC 3339). A value without a known kind prefix is a string.
func parseParam(raw string) (query.Param, error) {
	kind, value, ok := strings.Cut(raw, ":")
	if !ok {
		return query.StringParam(raw), nil
	}

	switch kind {
	case "string", "s":
		return query.StringParam(value), nil
	case "number", "n":
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return query.NumberParam(i), nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return query.Param{}, errors.WithHint(errors.Wrapf(errBadParam, "%q is not a number", value),
				"Numbers look like 42 or 3.5.")
		}
		return query.NumberParam(f), nil
	case "date", "d":
		t, err := dates.ParseDateArg(value, clock())
		if err != nil {
			return query.Param{}, errors.Mark(err, errBadParam)
		}
		return query.DateParam(t), nil
	case "datetime", "dt":
		t, err := dates.ParseDatetime(value)
		if err != nil {
			return query.Param{}, errors.WithHint(errors.Mark(err, errBadParam),
				"Date-times look like 2024-01-31T09:30:00Z or 2024-01-31T09:30.")
		}
		return query.DateTimeParam(t), nil
	default:
		// "urn:x" and similar values are strings.
		return query.StringParam(raw), nil
	}
}

func parseParams(raw []string) ([]query.Param, error) {
	params := make([]query.Param, 0, len(raw))
	for _, r := range raw {
		p, err := parseParam(r)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}
