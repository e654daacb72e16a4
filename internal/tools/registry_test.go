package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name     string
	required []string
	result   string
	err      error
	panics   bool
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool" }
func (f *fakeTool) Parameters() map[string]any {
	props := map[string]any{}
	for _, r := range f.required {
		props[r] = map[string]any{"type": "string"}
	}
	return map[string]any{"type": "object", "properties": props, "required": f.required}
}
func (f *fakeTool) Execute(_ context.Context, _ map[string]any) (string, error) {
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func TestRegistry_RegisterGetAll(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("x"))
	assert.Empty(t, r.All())

	r.Register(&fakeTool{name: "x"})
	r.Register(&fakeTool{name: "y"})
	assert.NotNil(t, r.Get("x"))
	assert.Len(t, r.All(), 2)
	assert.Len(t, r.Schemas(), 2)

	// Re-registering replaces.
	r.Register(&fakeTool{name: "x", result: "v2"})
	assert.Len(t, r.All(), 2)
}

func TestRegistry_Execute_Success(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "echo", result: "ok"})

	out, isErr := r.Execute(context.Background(), "echo", map[string]any{})
	assert.Equal(t, "ok", out)
	assert.False(t, isErr)
}

func TestRegistry_Execute_UnknownTool(t *testing.T) {
	r := NewRegistry()
	out, isErr := r.Execute(context.Background(), "nope", map[string]any{})
	assert.True(t, isErr)
	assert.Equal(t, "Error: Tool 'nope' not found", out)
}

func TestRegistry_Execute_MissingRequiredField(t *testing.T) {
	r := NewRegistry()
	r.Register(&ReadFileTool{})

	out, isErr := r.Execute(context.Background(), "read_file", map[string]any{})
	assert.True(t, isErr)
	assert.Equal(t, "Error: Invalid parameters for tool 'read_file': Missing required field: path", out)
}

func TestRegistry_Execute_NullValueCountsAsPresent(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "t", required: []string{"path"}, result: "ran"})

	out, isErr := r.Execute(context.Background(), "t", map[string]any{"path": nil})
	assert.False(t, isErr)
	assert.Equal(t, "ran", out)
}

func TestRegistry_Execute_ToolError(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "bad", err: errors.New("disk full")})

	out, isErr := r.Execute(context.Background(), "bad", map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "disk full")
}

func TestRegistry_Execute_SoftErrorPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "soft", result: "Error: File not found: /x"})

	out, isErr := r.Execute(context.Background(), "soft", map[string]any{})
	assert.True(t, isErr)
	assert.Equal(t, "Error: File not found: /x", out)
}

func TestRegistry_Execute_PanicContained(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "panicky", panics: true})

	out, isErr := r.Execute(context.Background(), "panicky", map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "panicked")
	assert.Contains(t, out, "boom")

	// Registry still usable afterwards.
	r.Register(&fakeTool{name: "ok", result: "fine"})
	out, isErr = r.Execute(context.Background(), "ok", map[string]any{})
	require.False(t, isErr)
	assert.Equal(t, "fine", out)
}

func TestMissingParams_MultipleFields(t *testing.T) {
	tool := &EditFileTool{}
	missing := MissingParams(tool, map[string]any{"path": "/x"})
	assert.Equal(t, []string{"old_text", "new_text"}, missing)

	assert.Empty(t, MissingParams(tool, map[string]any{
		"path": "/x", "old_text": "a", "new_text": "b",
	}))
}
