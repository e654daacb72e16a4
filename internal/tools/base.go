// Package tools defines the Tool interface, the registry, and the built-in
// tool set exposed to the model.
package tools

import "context"

// Tool is the contract every agent tool implements. Execute returns the
// observation text for the model; a non-nil error marks tool failure but
// never aborts the turn.
type Tool interface {
	// Name returns the tool name used in LLM function calls.
	Name() string

	// Description returns what the tool does.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToSchema converts a tool to OpenAI function calling format.
func ToSchema(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}

// MissingParams returns the names of required schema fields absent from args,
// in schema order. A field that is present with a null value counts as given.
func MissingParams(t Tool, args map[string]any) []string {
	schema := t.Parameters()
	required, ok := schema["required"]
	if !ok {
		return nil
	}

	var missing []string
	appendMissing := func(name string) {
		if _, present := args[name]; !present {
			missing = append(missing, name)
		}
	}
	switch req := required.(type) {
	case []string:
		for _, name := range req {
			appendMissing(name)
		}
	case []any:
		for _, v := range req {
			if name, ok := v.(string); ok {
				appendMissing(name)
			}
		}
	}
	return missing
}
