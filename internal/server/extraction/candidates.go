package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
)

const eventSchema = `{
  "type": "object",
  "required": ["summary", "start_date"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "start_date": {"type": "string", "minLength": 1},
    "end_date": {"type": ["string", "null"]},
    "category": {"type": ["string", "null"]}
  }
}`

const factSchema = `{
  "type": "object",
  "required": ["summary"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "category": {"type": ["string", "null"]}
  }
}`

type candidate struct {
	Summary   string  `json:"summary"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Category  *string `json:"category"`
}

type validator struct {
	events *jsonschema.Schema
	facts  *jsonschema.Schema
}

func newValidator() (*validator, error) {
	compiler := jsonschema.NewCompiler()
	events, err := compiler.Compile([]byte(eventSchema))
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	facts, err := compiler.Compile([]byte(factSchema))
	if err != nil {
		return nil, fmt.Errorf("compile fact schema: %w", err)
	}
	return &validator{events: events, facts: facts}, nil
}

// check decodes one item and validates it against schema.
func check(schema *jsonschema.Schema, raw json.RawMessage) (*candidate, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("not an object: %w", err)
	}

	result := schema.Validate(generic)
	if !result.IsValid() {
		var msgs []string
		for field, evalErr := range result.Errors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		return nil, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}

	var c candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	c.Summary = strings.TrimSpace(c.Summary)
	if c.Summary == "" {
		return nil, fmt.Errorf("blank summary")
	}
	return &c, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDate accepts an ISO-8601 date or date-time. Values without a zone
// are read as UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
