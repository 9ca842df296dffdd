package extraction

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)

	c, err := check(v.events, json.RawMessage(`{"summary":"  Moved to Berlin ","start_date":"2025-03-01","category":"personal"}`))
	require.NoError(t, err)
	assert.Equal(t, "Moved to Berlin", c.Summary)
	assert.Equal(t, "2025-03-01", c.StartDate)

	for _, bad := range []string{
		`{"start_date":"2025-03-01"}`,
		`{"summary":"","start_date":"2025-03-01"}`,
		`{"summary":"   ","start_date":"2025-03-01"}`,
		`{"summary":42,"start_date":"2025-03-01"}`,
		`{"summary":"x"}`,
		`"just a string"`,
	} {
		_, err := check(v.events, json.RawMessage(bad))
		assert.Error(t, err, bad)
	}

	_, err = check(v.facts, json.RawMessage(`{"summary":"Speaks Latvian"}`))
	assert.NoError(t, err)
}

func TestParseDate(t *testing.T) {
	tests := map[string]time.Time{
		"2025-03-01":                time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"2025-03-01T10:30:00Z":      time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		"2025-03-01T10:30:00+02:00": time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC),
		"2025-03-01T10:30:00":       time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		" 2025-03-01 10:30:00 ":     time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
	}
	for in, want := range tests {
		got, err := parseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	for _, bad := range []string{"March 2025", "2025-13-01", "yesterday", ""} {
		_, err := parseDate(bad)
		assert.Error(t, err, bad)
	}
}
