package contextguard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetModelLimit(t *testing.T) {
	assert.Equal(t, 200_000, GetModelLimit("anthropic/claude-sonnet-4-5"))
	assert.Equal(t, 128_000, GetModelLimit("gpt-4o"))
	assert.Equal(t, 128_000, GetModelLimit("gemini-2.0-flash")) // prefix match
	assert.Equal(t, 64_000, GetModelLimit("totally-unknown"))
}

func TestEstimateTokens(t *testing.T) {
	msgs := []map[string]any{
		{"role": "user", "content": strings.Repeat("a", 100)},
		{"role": "assistant", "content": strings.Repeat("b", 100)},
	}
	assert.Equal(t, 100, EstimateTokens(msgs))

	// Tool call arguments count too.
	msgs = append(msgs, map[string]any{
		"role": "assistant",
		"tool_calls": []any{
			map[string]any{"function": map[string]any{"arguments": strings.Repeat("c", 200)}},
		},
	})
	assert.Equal(t, 200, EstimateTokens(msgs))
}

func TestGuard_PreCheck(t *testing.T) {
	g := NewGuard(DefaultConfig())

	small := []map[string]any{{"role": "user", "content": "hi"}}
	assert.Equal(t, ActionPass, g.PreCheck(small, "gpt-4o").Action)

	// ~75% of a 64k window
	warn := []map[string]any{{"role": "user", "content": strings.Repeat("x", 96_000)}}
	assert.Equal(t, ActionWarn, g.PreCheck(warn, "unknown-model").Action)

	// ~85%
	trim := []map[string]any{{"role": "user", "content": strings.Repeat("x", 109_000)}}
	assert.Equal(t, ActionTrim, g.PreCheck(trim, "unknown-model").Action)

	// >95%
	reset := []map[string]any{{"role": "user", "content": strings.Repeat("x", 125_000)}}
	res := g.PreCheck(reset, "unknown-model")
	assert.Equal(t, ActionReset, res.Action)
	assert.True(t, res.ShouldNotifyUser())
	assert.Contains(t, res.NotificationMessage(), "reset")

	assert.Equal(t, 4, g.Stats()["totalChecks"])
}

func TestGuard_TrimHistory(t *testing.T) {
	g := NewGuard(DefaultConfig())

	msgs := []map[string]any{
		{"role": "system", "content": "prompt"},
	}
	for i := 0; i < 20; i++ {
		msgs = append(msgs, map[string]any{"role": "user", "content": strings.Repeat("x", 10_000)})
	}

	trimmed := g.TrimHistory(msgs, "unknown-model", 4)
	assert.Less(t, len(trimmed), len(msgs))
	// System prompt survives.
	assert.Equal(t, "system", trimmed[0]["role"])
	// Estimate now under the trim threshold.
	assert.LessOrEqual(t, EstimateTokens(trimmed), int(float64(GetModelLimit("unknown-model"))*0.80))
}

func TestGuard_TrimHistory_KeepsRecent(t *testing.T) {
	g := NewGuard(DefaultConfig())
	msgs := []map[string]any{
		{"role": "system", "content": "prompt"},
		{"role": "user", "content": strings.Repeat("x", 200_000)},
	}
	// Only system + one recent message: nothing droppable, no infinite loop.
	trimmed := g.TrimHistory(msgs, "unknown-model", 4)
	assert.Len(t, trimmed, 2)
}
