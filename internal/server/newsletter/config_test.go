package newsletter

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigs(t *testing.T) {
	doc := `
newsletters:
  - name: Family digest
    frequency: monthly
    instructions: Keep it short.
    visibility:
      - tier: close_family
  - name: Friends
    periodicity: 48
    start_date: 2025-06-01T00:00:00Z
    visibility:
      - tier: good_friends
      - tier: best_friends
`
	got, err := LoadConfigs(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got, 2)

	h, err := got[0].Hours()
	require.NoError(t, err)
	assert.Equal(t, 720, h)
	assert.Equal(t, "Keep it short.", got[0].Instructions)
	assert.Equal(t, visibility.CloseFamily, got[0].Visibility[0].Tier)

	h, err = got[1].Hours()
	require.NoError(t, err)
	assert.Equal(t, 48, h)
	require.NotNil(t, got[1].StartDate)
	assert.True(t, got[1].StartDate.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLoadConfigs_Invalid(t *testing.T) {
	_, err := LoadConfigs(strings.NewReader("newsletters:\n  - name: x\n    frequency: hourly\n"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = LoadConfigs(strings.NewReader("newsletters:\n  - name: x\n    frequency: daily\n    visibility:\n      - tier: enemies\n"))
	assert.ErrorIs(t, err, common.ErrInvalidVisibility)

	_, err = LoadConfigs(strings.NewReader("newsletters:\n  - name: x\n    frequency: daily\n"))
	assert.ErrorIs(t, err, common.ErrInvalidVisibility, "an empty audience is rejected")

	_, err = LoadConfigs(strings.NewReader("newsletter: []\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, "weekly", f)

	_, err = ParseFrequency("hourly")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestWindow(t *testing.T) {
	start, end, err := Window(Config{Frequency: "daily"}, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), start)
	assert.Equal(t, now, end)

	future := now.Add(time.Hour)
	start, _, err = Window(Config{Periodicity: 24, StartDate: &future}, now)
	require.NoError(t, err)
	assert.Equal(t, now, start)

	_, _, err = Window(Config{}, now)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
