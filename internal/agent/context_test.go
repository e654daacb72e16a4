package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPrompt_Identity(t *testing.T) {
	c := NewContextBuilder(t.TempDir())
	prompt := c.BuildSystemPrompt(nil)

	assert.Contains(t, prompt, "# tern")
	assert.Contains(t, prompt, "## Current Time")
	assert.Contains(t, prompt, "## Workspace")
}

func TestBuildSystemPrompt_BootstrapFiles(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "SOUL.md"), []byte("Be kind."), 0644))

	c := NewContextBuilder(ws)
	prompt := c.BuildSystemPrompt(nil)
	assert.Contains(t, prompt, "## SOUL.md")
	assert.Contains(t, prompt, "Be kind.")
}

func TestBuildSystemPrompt_Memory(t *testing.T) {
	ws := t.TempDir()
	c := NewContextBuilder(ws)
	require.NoError(t, c.Memory.WriteLongTerm("User prefers short answers."))

	prompt := c.BuildSystemPrompt(nil)
	assert.Contains(t, prompt, "# Memory")
	assert.Contains(t, prompt, "User prefers short answers.")
}

func TestBuildSystemPrompt_ExtraPrompt(t *testing.T) {
	c := NewContextBuilder(t.TempDir())
	c.ExtraPrompt = "You speak like a pirate."
	prompt := c.BuildSystemPrompt(nil)
	assert.Contains(t, prompt, "## Persona")
	assert.Contains(t, prompt, "pirate")
}

func TestBuildMessages_Layout(t *testing.T) {
	c := NewContextBuilder(t.TempDir())

	history := []map[string]any{
		{"role": "user", "content": "earlier question"},
		{"role": "assistant", "content": "earlier answer"},
	}
	msgs := c.BuildMessages(history, "new question", "telegram", "42", nil)

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0]["role"])
	assert.Contains(t, msgs[0]["content"].(string), "Channel: telegram")
	assert.Contains(t, msgs[0]["content"].(string), "Chat ID: 42")
	assert.Equal(t, "earlier question", msgs[1]["content"])
	assert.Equal(t, "new question", msgs[3]["content"])
}

func TestAddToolResultAndAssistantMessage(t *testing.T) {
	c := NewContextBuilder(t.TempDir())

	msgs := []map[string]any{}
	msgs = c.AddAssistantMessage(msgs, "thinking", []map[string]any{
		{"id": "c1", "type": "function"},
	}, "internal reasoning")
	msgs = c.AddToolResult(msgs, "c1", "exec", "output text")

	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[0]["role"])
	assert.NotNil(t, msgs[0]["tool_calls"])
	assert.Equal(t, "internal reasoning", msgs[0]["reasoning_content"])

	assert.Equal(t, "tool", msgs[1]["role"])
	assert.Equal(t, "c1", msgs[1]["tool_call_id"])
	assert.Equal(t, "output text", msgs[1]["content"])
}
