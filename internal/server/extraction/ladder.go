package extraction

import (
	"encoding/json"
	"regexp"
	"strings"
)

// A strategy tries to recover a JSON array from model output. ok=false
// means the strategy did not apply; an empty, non-nil slice with ok=true is
// a valid empty result.
type strategy struct {
	name  string
	parse func(text string) ([]json.RawMessage, bool)
}

// ladder is tried in order; the first strategy that applies wins.
var ladder = []strategy{
	{name: "whole", parse: parseWhole},
	{name: "fenced", parse: parseFenced},
	{name: "brackets", parse: parseBrackets},
	{name: "no_data", parse: parseNoData},
}

// ParseArray runs the ladder over text. It returns the items, the name of
// the strategy that produced them, and false when nothing applied.
func ParseArray(text string) ([]json.RawMessage, string, bool) {
	for _, s := range ladder {
		if items, ok := s.parse(text); ok {
			return items, s.name, true
		}
	}
	return nil, "", false
}

func decodeArray(s string) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &items); err != nil || items == nil {
		return nil, false
	}
	return items, true
}

func parseWhole(text string) ([]json.RawMessage, bool) {
	return decodeArray(text)
}

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

func parseFenced(text string) ([]json.RawMessage, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if items, ok := decodeArray(m[1]); ok {
			return items, true
		}
	}
	return nil, false
}

var bracketRe = regexp.MustCompile(`(?s)\[.*?\]`)

// parseBrackets tries the shortest bracketed spans first, then decodes
// from each '[' so arrays with nested brackets are still found.
func parseBrackets(text string) ([]json.RawMessage, bool) {
	for _, m := range bracketRe.FindAllString(text, -1) {
		if items, ok := decodeArray(m); ok {
			return items, true
		}
	}

	for i := strings.IndexByte(text, '['); i >= 0; {
		var items []json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&items); err == nil && items != nil {
			return items, true
		}
		next := strings.IndexByte(text[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}

var noDataPhrases = []string{
	"no specific dates",
	"cannot extract",
	"can't extract",
	"no dated events",
	"no clear dates",
	"empty array",
	"no explicit dates",
	"no events found",
}

func parseNoData(text string) ([]json.RawMessage, bool) {
	lower := strings.ToLower(text)
	for _, p := range noDataPhrases {
		if strings.Contains(lower, p) {
			return []json.RawMessage{}, true
		}
	}
	return nil, false
}
