package tools

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Registry holds all registered tools, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any previous tool with
// the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// All returns all registered tools.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	return result
}

// Schemas returns OpenAI function-call schemas for all registered tools.
func (r *Registry) Schemas() []map[string]any {
	tools := r.All()
	schemas := make([]map[string]any, len(tools))
	for i, t := range tools {
		schemas[i] = ToSchema(t)
	}
	return schemas
}

// Execute dispatches a tool call by name and returns the observation text
// plus an error flag. All failure modes (unknown tool, invalid params, tool
// error, panic) produce text for the model; nothing here aborts the turn.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, bool) {
	tool := r.Get(name)
	if tool == nil {
		return fmt.Sprintf("Error: Tool '%s' not found", name), true
	}

	if missing := MissingParams(tool, args); len(missing) > 0 {
		return fmt.Sprintf("Error: Invalid parameters for tool '%s': Missing required field: %s",
			name, strings.Join(missing, ", ")), true
	}

	result, err := safeExecute(ctx, tool, args)
	if err != nil {
		return fmt.Sprintf("Error executing tool '%s': %v", name, err), true
	}
	// Tools report soft failures in-band with an "Error" prefix.
	return result, strings.HasPrefix(result, "Error")
}

// safeExecute contains panics from misbehaving tools.
func safeExecute(ctx context.Context, tool Tool, args map[string]any) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Tools] panic in tool %s: %v", tool.Name(), rec)
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return tool.Execute(ctx, args)
}
