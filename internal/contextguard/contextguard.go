// Package contextguard monitors prompt size before each model call and
// trims history when long conversations approach the context window.
package contextguard

import (
	"fmt"
	"log"
	"strings"
)

// Action describes the pre-check result.
type Action string

const (
	ActionPass  Action = "pass"  // Token usage OK
	ActionWarn  Action = "warn"  // Approaching limit
	ActionTrim  Action = "trim"  // History should be trimmed
	ActionReset Action = "reset" // Session should be force-reset
)

// PreCheckResult holds the result of a token pre-check.
type PreCheckResult struct {
	Action        Action
	TokenEstimate int
	TokenLimit    int
	Ratio         float64
}

// ShouldNotifyUser returns true if the user should be informed (on reset).
func (r PreCheckResult) ShouldNotifyUser() bool {
	return r.Action == ActionReset
}

// NotificationMessage returns a user-visible message for resets.
func (r PreCheckResult) NotificationMessage() string {
	if r.Action != ActionReset {
		return ""
	}
	return fmt.Sprintf("Conversation exceeded the model's context limit (%.0f%%); the session was reset. Earlier history is preserved on disk.",
		r.Ratio*100)
}

// ModelTokenLimits maps model names to their context window sizes.
var ModelTokenLimits = map[string]int{
	"deepseek/deepseek-chat":     64_000,
	"deepseek/deepseek-reasoner": 64_000,
	"gpt-4o":                     128_000,
	"gpt-4o-mini":                128_000,
	"openai/gpt-4o":              128_000,
	"anthropic/claude-sonnet-4-5": 200_000,
	"anthropic/claude-opus-4":     200_000,
	"claude-sonnet-4-5":           200_000,
	"gemini":                      128_000,
	"_default":                    64_000,
}

// GetModelLimit returns the token limit for a model, by exact then prefix match.
func GetModelLimit(model string) int {
	if limit, ok := ModelTokenLimits[model]; ok {
		return limit
	}
	for k, v := range ModelTokenLimits {
		if k != "_default" && strings.HasPrefix(model, k) {
			return v
		}
	}
	return ModelTokenLimits["_default"]
}

// EstimateTokens estimates the token count for a list of messages.
// Rough heuristic: total chars / 2, which overestimates for English and
// holds up for CJK-heavy text. Erring high is the safe direction.
func EstimateTokens(messages []map[string]any) int {
	total := 0
	for _, msg := range messages {
		if content, ok := msg["content"].(string); ok {
			total += len(content)
		}
		if tc, ok := msg["tool_calls"].([]any); ok {
			for _, call := range tc {
				if callMap, ok := call.(map[string]any); ok {
					if fn, ok := callMap["function"].(map[string]any); ok {
						if args, ok := fn["arguments"].(string); ok {
							total += len(args)
						}
					}
				}
			}
		}
	}
	return total / 2
}

// Config holds guard thresholds as ratios of the model limit.
type Config struct {
	WarnRatio     float64 // log warning
	TrimRatio     float64 // trim oldest history
	CriticalRatio float64 // force reset
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WarnRatio:     0.70,
		TrimRatio:     0.80,
		CriticalRatio: 0.95,
	}
}

// Guard monitors token usage across model calls.
type Guard struct {
	cfg Config

	TotalChecks  int
	WarningCount int
	TrimCount    int
	ResetCount   int
}

// NewGuard creates a new context guard.
func NewGuard(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// PreCheck estimates prompt size and decides what to do before the LLM call.
func (g *Guard) PreCheck(messages []map[string]any, model string) PreCheckResult {
	g.TotalChecks++

	tokenEstimate := EstimateTokens(messages)
	tokenLimit := GetModelLimit(model)
	ratio := float64(tokenEstimate) / float64(tokenLimit)

	result := PreCheckResult{
		TokenEstimate: tokenEstimate,
		TokenLimit:    tokenLimit,
		Ratio:         ratio,
	}

	switch {
	case ratio >= g.cfg.CriticalRatio:
		result.Action = ActionReset
		g.ResetCount++
		log.Printf("[ContextGuard] CRITICAL %.0f%% (%d/%d), forcing reset",
			ratio*100, tokenEstimate, tokenLimit)

	case ratio >= g.cfg.TrimRatio:
		result.Action = ActionTrim
		g.TrimCount++
		log.Printf("[ContextGuard] TRIM %.0f%% (%d/%d)",
			ratio*100, tokenEstimate, tokenLimit)

	case ratio >= g.cfg.WarnRatio:
		result.Action = ActionWarn
		g.WarningCount++
		log.Printf("[ContextGuard] WARN %.0f%% (%d/%d)",
			ratio*100, tokenEstimate, tokenLimit)

	default:
		result.Action = ActionPass
	}

	return result
}

// TrimHistory drops the oldest non-system messages until the estimate fits
// under the trim threshold. The system prompt and the last keepRecent
// messages are never dropped.
func (g *Guard) TrimHistory(messages []map[string]any, model string, keepRecent int) []map[string]any {
	if keepRecent < 1 {
		keepRecent = 4
	}
	limit := int(float64(GetModelLimit(model)) * g.cfg.TrimRatio)

	for EstimateTokens(messages) > limit {
		dropped := false
		for i, msg := range messages {
			if role, _ := msg["role"].(string); role == "system" {
				continue
			}
			if len(messages)-i <= keepRecent {
				break
			}
			messages = append(messages[:i], messages[i+1:]...)
			dropped = true
			break
		}
		if !dropped {
			break
		}
	}
	return messages
}

// Stats returns guard statistics.
func (g *Guard) Stats() map[string]any {
	return map[string]any{
		"totalChecks":  g.TotalChecks,
		"warningCount": g.WarningCount,
		"trimCount":    g.TrimCount,
		"resetCount":   g.ResetCount,
	}
}
