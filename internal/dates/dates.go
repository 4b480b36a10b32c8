// Package dates parses the date and date-time values accepted for query
// parameters.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidDate is returned for values that are not a date or date-time.
var ErrInvalidDate = errors.New("invalid date")

var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// datetimeFormats are tried in order. Formats without a zone are read as UTC.
var datetimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !dateRegex.MatchString(s) {
		return time.Time{}, errors.Wrapf(ErrInvalidDate, "%q", s)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDate, "%q", s)
	}
	return t, nil
}

// ParseDatetime parses an RFC 3339 timestamp, or a local-looking
// YYYY-MM-DDTHH:MM[:SS] value taken as UTC.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, format := range datetimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidDate, "%q is not a date-time", s)
}

// ParseDateArg parses a date argument: "today", "yesterday", "tomorrow" or
// YYYY-MM-DD. Relative keywords resolve against now's calendar day.
func ParseDateArg(arg string, now time.Time) (time.Time, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "today":
		return day, nil
	case "yesterday":
		return day.AddDate(0, 0, -1), nil
	case "tomorrow":
		return day.AddDate(0, 0, 1), nil
	}
	t, err := ParseDate(arg)
	if err != nil {
		return time.Time{}, errors.WithHint(err, "Use YYYY-MM-DD, today, yesterday or tomorrow.")
	}
	return t, nil
}
