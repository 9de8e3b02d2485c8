package types

import "encoding/json"

// Tool describes one callable function offered to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a structured action request emitted by the model, naming one
// of the fixed catalog of browser-control operations.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// ArgumentsMap decodes the call's JSON arguments. Malformed or empty
// arguments yield an empty map rather than an error; tool executors validate
// the fields they need.
func (c ToolCall) ArgumentsMap() map[string]any {
	out := make(map[string]any)
	if c.Arguments == "" {
		return out
	}
	if err := json.Unmarshal([]byte(c.Arguments), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// ObjectSchema builds a JSON-schema object for tool parameters.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
