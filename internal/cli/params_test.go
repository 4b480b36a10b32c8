package cli

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sramp/internal/query"
)

func fixClock(t *testing.T, now time.Time) {
	t.Helper()
	prev := clock
	clock = func() time.Time { return now }
	t.Cleanup(func() { clock = prev })
}

func TestParseParam(t *testing.T) {
	fixClock(t, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC))
	tests := []struct {
		raw       string
		kind      query.ParamKind
		formatted string
	}{
		{"plain", query.ParamString, "'plain'"},
		{"string:it's", query.ParamString, "'it''s'"},
		{"s:x", query.ParamString, "'x'"},
		{"urn:orders", query.ParamString, "'urn:orders'"},
		{"number:42", query.ParamNumber, "42"},
		{"n:3.5", query.ParamNumber, "3.5"},
		{"date:2024-01-31", query.ParamDate, "2024-01-31"},
		{"date:yesterday", query.ParamDate, "2024-02-29"},
		{"d:today", query.ParamDate, "2024-03-01"},
		{"dt:2024-01-31T10:30:00+01:00", query.ParamDateTime, "2024-01-31T09:30:00Z"},
		{"dt:2024-01-31T10:30", query.ParamDateTime, "2024-01-31T10:30:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := parseParam(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, tt.formatted, p.Formatted())
		})
	}
}

func TestParseParamErrors(t *testing.T) {
	for _, raw := range []string{"number:abc", "number:NaN", "n:+Inf", "n:-infinity", "date:31/01/2024", "datetime:2024-01-31"} {
		t.Run(raw, func(t *testing.T) {
			_, err := parseParam(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errBadParam))
			assert.NotEmpty(t, errors.GetAllHints(err))
		})
	}
}

func TestParseParamsKeepsOrder(t *testing.T) {
	params, err := parseParams([]string{"a", "n:1", "b"})
	require.NoError(t, err)
	require.Len(t, params, 3)
	assert.Equal(t, "'a'", params[0].Formatted())
	assert.Equal(t, "1", params[1].Formatted())
	assert.Equal(t, "'b'", params[2].Formatted())

	_, err = parseParams([]string{"a", "n:x"})
	assert.Error(t, err)
}
