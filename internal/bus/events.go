// Package bus provides the async message bus for decoupled channel-agent communication.
package bus

import "time"

// InboundMessage is received from a chat channel.
type InboundMessage struct {
	Channel   string         `json:"channel"`
	SenderID  string         `json:"sender_id"`
	ChatID    string         `json:"chat_id"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Media     []string       `json:"media,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewInboundMessage creates an inbound message stamped with the current time.
func NewInboundMessage(channel, senderID, chatID, content string) InboundMessage {
	return InboundMessage{
		Channel:   channel,
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// SessionKey returns the stable key grouping all turns of one conversation.
// The same (channel, chat_id) pair always maps to the same key.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// WithMedia returns a copy with an additional media reference.
func (m InboundMessage) WithMedia(url string) InboundMessage {
	media := make([]string, 0, len(m.Media)+1)
	media = append(media, m.Media...)
	m.Media = append(media, url)
	return m
}

// WithMetadata returns a copy with an additional metadata entry.
func (m InboundMessage) WithMetadata(key string, value any) InboundMessage {
	meta := make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = value
	m.Metadata = meta
	return m
}

// OutboundMessage is sent to a chat channel. Produced only by the agent loop
// (directly or via the message tool); never mutated after handoff to the bus.
type OutboundMessage struct {
	Channel   string         `json:"channel"`
	ChatID    string         `json:"chat_id"`
	Content   string         `json:"content"`
	ReplyTo   string         `json:"reply_to,omitempty"`
	Media     []string       `json:"media,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AgentEvent is a one-shot progress notification emitted during an agent turn.
// Exactly one terminal event (FinalResponse or ErrorEvent) closes a turn's
// stream; all other events are interim.
type AgentEvent interface {
	agentEvent()
}

// IterationStarted marks the beginning of one model-call iteration.
type IterationStarted struct {
	Index         int
	MaxIterations int
}

// AssistantDelta carries an incremental fragment of assistant text.
type AssistantDelta struct {
	Text string
}

// ReasoningDelta carries an incremental fragment of reasoning text.
type ReasoningDelta struct {
	Text string
}

// ToolCallDelta carries partial tool-call argument text as it streams in.
type ToolCallDelta struct {
	Name      string
	ArgsDelta string
}

// ToolCallStarted marks dispatch of one tool invocation. Every Started is
// eventually paired with exactly one ToolCallFinished carrying the same CallID.
type ToolCallStarted struct {
	Name        string
	ArgsPreview string
	CallID      string
}

// ToolCallFinished carries the result of one tool invocation.
type ToolCallFinished struct {
	Name    string
	Result  string
	IsError bool
	CallID  string
}

// FinalResponse is the terminal event of a successful turn.
type FinalResponse struct {
	Content string
}

// ErrorEvent is the terminal event of a failed or aborted turn.
type ErrorEvent struct {
	Message string
}

func (IterationStarted) agentEvent() {}
func (AssistantDelta) agentEvent()   {}
func (ReasoningDelta) agentEvent()   {}
func (ToolCallDelta) agentEvent()    {}
func (ToolCallStarted) agentEvent()  {}
func (ToolCallFinished) agentEvent() {}
func (FinalResponse) agentEvent()    {}
func (ErrorEvent) agentEvent()       {}

// IsTerminal reports whether e closes a turn's event stream.
func IsTerminal(e AgentEvent) bool {
	switch e.(type) {
	case FinalResponse, ErrorEvent:
		return true
	}
	return false
}

// EventSink receives AgentEvents from a turn in progress. A nil sink is
// allowed and discards events. Sinks must not block.
type EventSink func(AgentEvent)
