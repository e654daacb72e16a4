// Package channels defines the Channel interface for chat surface integrations.
package channels

import (
	"context"
	"log"
	"strings"

	"github.com/ternlabs/tern/internal/bus"
)

// Channel is the interface that all chat surface integrations must implement.
type Channel interface {
	// Name returns the channel identifier (e.g., "cli").
	Name() string

	// Start connects to the surface and begins listening. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error

	// Send delivers an outbound message through this channel.
	Send(msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is active.
	IsRunning() bool
}

// BaseChannel provides shared logic for all channel implementations.
type BaseChannel struct {
	ChannelName string
	Bus         *bus.MessageBus
	AllowFrom   []string
	Running     bool
}

// IsAllowed checks if a sender is permitted to interact with the agent.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range b.AllowFrom {
		if allowed == senderID {
			return true
		}
	}
	// Support pipe-separated sender IDs
	if strings.Contains(senderID, "|") {
		for _, part := range strings.Split(senderID, "|") {
			if part == "" {
				continue
			}
			for _, allowed := range b.AllowFrom {
				if allowed == part {
					return true
				}
			}
		}
	}
	return false
}

// HandleMessage enforces the allow-list, then publishes the message inbound.
// Denied senders are dropped before anything reaches the agent.
func (b *BaseChannel) HandleMessage(senderID, chatID, content string, media []string, metadata map[string]any) {
	if !b.IsAllowed(senderID) {
		log.Printf("[Channels] %s: dropped message from unauthorized sender %s", b.ChannelName, senderID)
		return
	}
	msg := bus.NewInboundMessage(b.ChannelName, senderID, chatID, content)
	msg.Media = media
	msg.Metadata = metadata
	if err := b.Bus.PublishInbound(msg); err != nil {
		log.Printf("[Channels] %s: inbound publish failed: %v", b.ChannelName, err)
	}
}
