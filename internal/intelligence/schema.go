package intelligence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/troikatech/call-center/internal/call"
)

var errEmptyAnswer = errors.New("empty model answer")

const synthesisSchemaJSON = `{
	"type": "object",
	"required": ["long_summary", "short_summary", "satisfaction", "improvement_suggestions"],
	"properties": {
		"long_summary": {"type": "string", "minLength": 1},
		"short_summary": {"type": "string", "minLength": 1},
		"satisfaction": {"enum": ["high", "low", "unknown"]},
		"improvement_suggestions": {"type": "string"}
	}
}`

func nextSchemaJSON() string {
	actions, _ := json.Marshal(call.NextActions)
	return `{
	"type": "object",
	"required": ["action", "justification"],
	"properties": {
		"action": {"enum": ` + string(actions) + `},
		"justification": {"type": "string", "minLength": 1}
	}
}`
}

const schemaBaseURL = "https://callcenter.troikatech.dev/schemas/"

var (
	nextSchema      = mustCompile("next.json", nextSchemaJSON())
	synthesisSchema = mustCompile("synthesis.json", synthesisSchemaJSON)
)

func mustCompile(name, raw string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaBaseURL+name, doc); err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", name, err))
	}
	return c.MustCompile(schemaBaseURL + name)
}

// extractJSON drops the markdown fence models sometimes wrap JSON in.
func extractJSON(answer string) string {
	answer = strings.TrimSpace(answer)
	if !strings.HasPrefix(answer, "```") {
		return answer
	}
	if i := strings.Index(answer, "\n"); i >= 0 {
		answer = answer[i+1:]
	}
	answer = strings.TrimSuffix(strings.TrimSpace(answer), "```")
	return strings.TrimSpace(answer)
}

// decodeValid checks answer against schema and decodes it into out.
func decodeValid(schema *jsonschema.Schema, answer string, out interface{}) error {
	raw := extractJSON(answer)
	if raw == "" {
		return errEmptyAnswer
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("answer is not JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("answer does not match schema: %w", err)
	}
	return json.Unmarshal([]byte(raw), out)
}
