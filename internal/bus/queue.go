package bus

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrClosed is returned by publishes after Stop. The message is dropped;
// callers must not retry.
var ErrClosed = errors.New("bus: closed")

// ErrClaimed is returned when a queue's receiving end has already been taken.
var ErrClaimed = errors.New("bus: receiver already claimed")

// stopPollInterval bounds how long the consumer loops keep running after Stop.
const stopPollInterval = 100 * time.Millisecond

// MessageBus routes messages between chat channels and the agent core through
// two independent unbounded queues. Publishing never blocks and fails only
// after Stop. Outbound messages are fanned out to subscribers registered per
// channel id.
type MessageBus struct {
	mu       sync.Mutex
	inbound  []InboundMessage
	outbound []OutboundMessage

	inboundNotify  chan struct{}
	outboundNotify chan struct{}

	subscribers     map[string][]func(OutboundMessage)
	closed          bool
	inboundClaimed  bool
	outboundClaimed bool
}

// NewMessageBus creates a message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inboundNotify:  make(chan struct{}, 1),
		outboundNotify: make(chan struct{}, 1),
		subscribers:    make(map[string][]func(OutboundMessage)),
	}
}

// PublishInbound sends a message from a channel to the agent. Never blocks;
// fails only after Stop, and the message is then dropped. The closed check
// and the enqueue happen under one lock so nothing lands after Stop returns.
func (b *MessageBus) PublishInbound(msg InboundMessage) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.inbound = append(b.inbound, msg)
	b.mu.Unlock()
	wake(b.inboundNotify)
	return nil
}

// PublishOutbound sends a response from the agent to channels. Never blocks;
// fails only after Stop, and the message is then dropped.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.outbound = append(b.outbound, msg)
	b.mu.Unlock()
	wake(b.outboundNotify)
	return nil
}

// ClaimInbound hands over the inbound queue's receiving end. Only one
// consumer may ever own it; a second claim fails. The channel closes once the
// bus is stopped and the queue has drained.
func (b *MessageBus) ClaimInbound() (<-chan InboundMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inboundClaimed {
		return nil, ErrClaimed
	}
	b.inboundClaimed = true
	ch := make(chan InboundMessage)
	go b.pumpInbound(ch)
	return ch, nil
}

// pumpInbound moves queued messages to the claimed channel. A slow consumer
// back-pressures the pump, never the publishers.
func (b *MessageBus) pumpInbound(ch chan<- InboundMessage) {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		b.mu.Lock()
		if len(b.inbound) > 0 {
			msg := b.inbound[0]
			b.inbound = b.inbound[1:]
			b.mu.Unlock()
			ch <- msg
			continue
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			close(ch)
			return
		}
		select {
		case <-b.inboundNotify:
		case <-ticker.C:
		}
	}
}

// Subscribe registers a callback for outbound messages on a specific channel.
// Multiple subscribers per channel each receive every message independently.
func (b *MessageBus) Subscribe(channel string, callback func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], callback)
}

// DispatchOutbound drains the outbound queue and fans each message out to the
// subscribers matching its channel id exactly. Each callback runs in its own
// goroutine so one slow subscriber cannot block another. Messages with no
// subscriber are dropped with a warning. Runs until ctx is cancelled or the
// bus is stopped; only one dispatcher may run.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	b.mu.Lock()
	if b.outboundClaimed {
		b.mu.Unlock()
		return ErrClaimed
	}
	b.outboundClaimed = true
	b.mu.Unlock()

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		b.mu.Lock()
		if len(b.outbound) > 0 {
			msg := b.outbound[0]
			b.outbound = b.outbound[1:]
			b.mu.Unlock()
			b.dispatch(msg)
			continue
		}
		closed := b.closed
		b.mu.Unlock()

		if closed || ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-b.outboundNotify:
		case <-ticker.C:
		}
	}
}

func (b *MessageBus) dispatch(msg OutboundMessage) {
	b.mu.Lock()
	subs := make([]func(OutboundMessage), len(b.subscribers[msg.Channel]))
	copy(subs, b.subscribers[msg.Channel])
	b.mu.Unlock()

	if len(subs) == 0 {
		log.Printf("[Bus] no subscribers for channel %q, dropping message", msg.Channel)
		return
	}
	for _, cb := range subs {
		go cb(msg)
	}
}

// Stop closes the bus. Idempotent; once Stop returns no further message can
// be enqueued, and the consumer loops exit within their poll interval after
// draining what was already queued.
func (b *MessageBus) Stop() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.outbound)
}

// wake nudges a waiting consumer without ever blocking the publisher.
func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
