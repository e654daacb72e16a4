// OpenAI-compatible LLM provider over standard HTTP. Works with any
// chat-completions endpoint: OpenRouter, direct OpenAI, DeepSeek, Moonshot,
// local vLLM, etc. Streaming uses server-sent events.
package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider is an OpenAI-compatible LLM backend.
type Provider struct {
	APIKey       string
	APIBase      string
	Model        string // default model
	ExtraHeaders map[string]string
	HTTPClient   *http.Client

	gateway *ProviderSpec // detected gateway, if any
}

// NewProvider creates a Provider with the given config, detecting a gateway
// from the explicit provider name, the API key prefix, or the base URL.
func NewProvider(apiKey, apiBase, defaultModel, providerName string) *Provider {
	if defaultModel == "" {
		defaultModel = "anthropic/claude-sonnet-4-5"
	}
	p := &Provider{
		APIKey:     apiKey,
		APIBase:    apiBase,
		Model:      defaultModel,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
	p.gateway = FindGateway(providerName, apiKey, apiBase)
	return p
}

// DefaultModel satisfies the LLMProvider interface.
func (p *Provider) DefaultModel() string { return p.Model }

// Chat sends a chat completion request and waits for the full response.
// Transport and backend failures are returned as errors; the caller decides
// how to surface them. No retries happen here.
func (p *Provider) Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error) {
	resp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return parseResponse(respBody)
}

// ChatStream sends a chat completion request with streaming enabled and
// yields incremental events. The channel is closed after StreamCompleted
// or StreamError.
func (p *Provider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	resp, err := p.send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat completion HTTP %d: %s", resp.StatusCode, string(body))
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		p.readStream(ctx, resp.Body, events)
	}()
	return events, nil
}

// send builds and issues the HTTP request shared by Chat and ChatStream.
func (p *Provider) send(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	model := req.Model
	if model == "" {
		model = p.Model
	}
	model = p.resolveModel(model)

	maxTokens := req.MaxTokens
	if maxTokens < 1 {
		maxTokens = 4096
	}
	temp := req.Temperature
	p.applyModelOverrides(model, &temp)

	body := map[string]any{
		"model":       model,
		"messages":    req.Messages,
		"max_tokens":  maxTokens,
		"temperature": temp,
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
		body["tool_choice"] = "auto"
	}
	if stream {
		body["stream"] = true
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	apiBase := p.APIBase
	apiKey := p.APIKey

	// Auto-resolve: with no explicit API base, look up the spec by model name
	// and use its DefaultAPIBase + EnvKey. Enables config-driven multi-provider.
	if apiBase == "" {
		if spec := FindByModel(model); spec != nil {
			if spec.DefaultAPIBase != "" {
				apiBase = spec.DefaultAPIBase
			}
			if apiKey == "" && spec.EnvKey != "" {
				apiKey = os.Getenv(spec.EnvKey)
			}
		}
	}
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	endpoint := strings.TrimRight(apiBase, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range p.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

func (p *Provider) resolveModel(model string) string {
	if p.gateway != nil {
		prefix := p.gateway.RoutePrefix
		if p.gateway.StripModelPrefix {
			parts := strings.SplitN(model, "/", 2)
			model = parts[len(parts)-1]
		}
		if prefix != "" && !strings.HasPrefix(model, prefix+"/") {
			model = prefix + "/" + model
		}
		return model
	}

	// Calling a provider's own API directly: strip the "provider/" prefix
	// from model names like "deepseek/deepseek-chat".
	spec := FindByModel(model)
	if spec != nil && spec.DefaultAPIBase != "" {
		if idx := strings.Index(model, "/"); idx >= 0 {
			model = model[idx+1:]
		}
	}
	return model
}

func (p *Provider) applyModelOverrides(model string, temperature *float64) {
	lower := strings.ToLower(model)
	spec := FindByModel(model)
	if spec == nil {
		return
	}
	for _, ov := range spec.ModelOverrides {
		if strings.Contains(lower, ov.Pattern) {
			if t, ok := ov.Overrides["temperature"].(float64); ok {
				*temperature = t
			}
			return
		}
	}
}

// openAIResponse mirrors the OpenAI chat completion response structure.
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content          *string `json:"content"`
			ReasoningContent *string `json:"reasoning_content"`
			ToolCalls        []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *openAIUsage) toMap() map[string]int {
	if u == nil {
		return map[string]int{}
	}
	return map[string]int{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}

func parseResponse(body []byte) (*LLMResponse, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	msg := choice.Message

	var toolCalls []ToolCallRequest
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		toolCalls = append(toolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	finishReason := choice.FinishReason
	if finishReason == "" {
		finishReason = "stop"
	}

	return &LLMResponse{
		Content:          msg.Content,
		ToolCalls:        toolCalls,
		FinishReason:     finishReason,
		Usage:            resp.Usage.toMap(),
		ReasoningContent: msg.ReasoningContent,
	}, nil
}

// openAIChunk mirrors one SSE chunk of a streaming chat completion.
type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

// partialToolCall accumulates streamed tool-call fragments by index.
type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

// readStream parses the SSE body, forwarding deltas and assembling the final
// response from the accumulated fragments.
func (p *Provider) readStream(ctx context.Context, body io.Reader, events chan<- StreamEvent) {
	var content, reasoning strings.Builder
	partials := map[int]*partialToolCall{}
	maxIndex := -1
	finishReason := ""
	usage := map[string]int{}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			events <- StreamError{Err: ctx.Err()}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk openAIChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed keep-alive chunks
		}
		if chunk.Usage != nil {
			usage = chunk.Usage.toMap()
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}

		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			events <- StreamTextDelta{Text: choice.Delta.Content}
		}
		if choice.Delta.ReasoningContent != "" {
			reasoning.WriteString(choice.Delta.ReasoningContent)
			events <- StreamReasoningDelta{Text: choice.Delta.ReasoningContent}
		}
		for _, tc := range choice.Delta.ToolCalls {
			part, ok := partials[tc.Index]
			if !ok {
				part = &partialToolCall{}
				partials[tc.Index] = part
			}
			if tc.Index > maxIndex {
				maxIndex = tc.Index
			}
			if tc.ID != "" {
				part.id = tc.ID
			}
			if tc.Function.Name != "" {
				part.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				part.args.WriteString(tc.Function.Arguments)
			}
			events <- StreamToolCallDelta{
				Index:     tc.Index,
				ID:        part.id,
				Name:      part.name,
				ArgsDelta: tc.Function.Arguments,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		events <- StreamError{Err: fmt.Errorf("read stream: %w", err)}
		return
	}

	var toolCalls []ToolCallRequest
	for i := 0; i <= maxIndex; i++ {
		part, ok := partials[i]
		if !ok {
			continue
		}
		var args map[string]any
		if part.args.Len() > 0 {
			json.Unmarshal([]byte(part.args.String()), &args)
		}
		toolCalls = append(toolCalls, ToolCallRequest{
			ID:        part.id,
			Name:      part.name,
			Arguments: args,
		})
	}

	if finishReason == "" {
		finishReason = "stop"
	}
	resp := &LLMResponse{
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
		Usage:        usage,
	}
	if content.Len() > 0 {
		s := content.String()
		resp.Content = &s
	}
	if reasoning.Len() > 0 {
		s := reasoning.String()
		resp.ReasoningContent = &s
	}
	events <- StreamCompleted{Response: resp}
}
