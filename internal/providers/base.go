// Package providers defines the LLM provider interface, the provider
// registry, and response/stream types shared by all backends.
package providers

import "context"

// ToolCallRequest is a structured function invocation requested by the model.
// Consumed once by the agent loop, never persisted beyond the turn.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// LLMResponse is the standardized response from any LLM backend.
type LLMResponse struct {
	Content          *string           `json:"content"`
	ToolCalls        []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason     string            `json:"finish_reason"`
	Usage            map[string]int    `json:"usage,omitempty"`
	ReasoningContent *string           `json:"reasoning_content,omitempty"`
}

// HasToolCalls returns true if the response contains tool calls.
func (r *LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// ChatRequest holds all parameters for a chat completion call.
// Messages use the OpenAI wire shape (role/content plus tool_calls and
// tool_call_id entries) so tool exchanges round-trip unmodified.
type ChatRequest struct {
	Messages    []map[string]any `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	Model       string           `json:"model,omitempty"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
}

// StreamEvent is one incremental event from a streaming chat call.
// The stream channel is closed after a StreamCompleted or StreamError.
type StreamEvent interface {
	streamEvent()
}

// StreamTextDelta is an incremental fragment of assistant text.
type StreamTextDelta struct {
	Text string
}

// StreamReasoningDelta is an incremental fragment of reasoning text.
type StreamReasoningDelta struct {
	Text string
}

// StreamToolCallDelta is incremental tool-call metadata.
type StreamToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	ArgsDelta string
}

// StreamCompleted carries the fully-assembled response and ends the stream.
type StreamCompleted struct {
	Response *LLMResponse
}

// StreamError ends the stream on a transport or backend failure.
type StreamError struct {
	Err error
}

func (StreamTextDelta) streamEvent()      {}
func (StreamReasoningDelta) streamEvent() {}
func (StreamToolCallDelta) streamEvent()  {}
func (StreamCompleted) streamEvent()      {}
func (StreamError) streamEvent()          {}

// LLMProvider is the only boundary a new model backend must implement.
type LLMProvider interface {
	// Chat sends a chat completion request and waits for the full response.
	Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error)

	// ChatStream sends a chat completion request and yields incremental
	// events. The returned channel is closed when the stream ends.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)

	// DefaultModel returns the default model identifier.
	DefaultModel() string
}
