package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// narrativeSchema is the JSON schema both providers are asked to answer in.
var narrativeSchema = generateSchema[Narrative]()

// narrativeSchemaJSON is narrativeSchema as passed to the claude CLI.
var narrativeSchemaJSON = mustMarshal(narrativeSchema)

// generateSchema reflects T into an inline schema with no additional
// properties, the shape strict structured output requires.
func generateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func mustMarshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshaling schema: %v", err))
	}
	return string(data)
}

// parseNarrative decodes a model reply, tolerating a fenced code block.
func parseNarrative(raw string) (*Narrative, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}

	var n Narrative
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return nil, fmt.Errorf("parsing narrative: %w (raw: %s)", err, truncateStr(raw, 1000))
	}
	n.Headline = strings.TrimSpace(n.Headline)
	n.Summary = strings.TrimSpace(n.Summary)
	if n.Headline == "" && n.Summary == "" {
		return nil, fmt.Errorf("narrative is empty")
	}
	if len(n.Highlights) > maxHighlights {
		n.Highlights = n.Highlights[:maxHighlights]
	}
	if n.Highlights == nil {
		n.Highlights = []string{}
	}
	return &n, nil
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
