package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArray(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		strategy string
		items    int
	}{
		{name: "whole array", text: `  [{"summary":"a"},{"summary":"b"}] `, strategy: "whole", items: 2},
		{name: "fenced json", text: "Sure!\n```json\n[{\"summary\":\"a\"}]\n```\nDone.", strategy: "fenced", items: 1},
		{name: "fenced plain", text: "```\n[1, 2, 3]\n```", strategy: "fenced", items: 3},
		{name: "second fence parses", text: "```\nnot json\n```\n```json\n[{\"summary\":\"x\"}]\n```", strategy: "fenced", items: 1},
		{name: "bracket scan empty", text: "Looking at the content, I found no specific dates mentioned.\n[]", strategy: "brackets", items: 0},
		{name: "bracket scan across newlines", text: "Here you go:\n[\n  {\"summary\": \"a\"}\n]\nHope it helps", strategy: "brackets", items: 1},
		{name: "bracket scan nested", text: `Result: [{"summary":"a","tags":["x","y"]}] end`, strategy: "brackets", items: 1},
		{name: "no data phrase", text: "I cannot extract any events from this profile.", strategy: "no_data", items: 0},
		{name: "no data phrase case insensitive", text: "There are No Dated Events here.", strategy: "no_data", items: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, strategy, ok := ParseArray(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.strategy, strategy)
			require.NotNil(t, items, "an empty result is not a failure")
			assert.Len(t, items, tt.items)
		})
	}
}

func TestParseArray_Unusable(t *testing.T) {
	for _, text := range []string{
		"",
		"I am not sure what you want.",
		`{"summary": "an object, not an array"}`,
		"null",
		"[not json at all]",
	} {
		items, _, ok := ParseArray(text)
		assert.False(t, ok, text)
		assert.Nil(t, items, text)
	}
}

func TestStrategiesInIsolation(t *testing.T) {
	_, ok := parseWhole("prefix [1]")
	assert.False(t, ok)

	_, ok = parseFenced("[1]")
	assert.False(t, ok)

	items, ok := parseBrackets("x [1] y [2,3]")
	require.True(t, ok)
	assert.Equal(t, []json.RawMessage{json.RawMessage("1")}, items)

	_, ok = parseNoData("[1]")
	assert.False(t, ok)
}

func TestLadderOrder(t *testing.T) {
	names := make([]string, len(ladder))
	for i, s := range ladder {
		names[i] = s.name
	}
	assert.Equal(t, []string{"whole", "fenced", "brackets", "no_data"}, names)
}
