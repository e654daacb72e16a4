package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageBus(t *testing.T) {
	b := NewMessageBus()
	assert.NotNil(t, b)
	assert.Equal(t, 0, b.InboundSize())
	assert.Equal(t, 0, b.OutboundSize())
}

func TestMessageBus_PublishClaimInbound(t *testing.T) {
	b := NewMessageBus()
	require.NoError(t, b.PublishInbound(InboundMessage{Channel: "telegram", Content: "hello"}))
	assert.Equal(t, 1, b.InboundSize())

	rx, err := b.ClaimInbound()
	require.NoError(t, err)

	received := <-rx
	assert.Equal(t, "hello", received.Content)
	assert.Equal(t, "telegram", received.Channel)
}

func TestMessageBus_ClaimInboundOnlyOnce(t *testing.T) {
	b := NewMessageBus()
	_, err := b.ClaimInbound()
	require.NoError(t, err)

	_, err = b.ClaimInbound()
	assert.ErrorIs(t, err, ErrClaimed)
}

func TestMessageBus_SubscribeAndDispatch(t *testing.T) {
	b := NewMessageBus()

	var received []OutboundMessage
	var mu sync.Mutex

	b.Subscribe("telegram", func(msg OutboundMessage) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	require.NoError(t, b.PublishOutbound(OutboundMessage{Channel: "telegram", Content: "reply"}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "reply", received[0].Content)
}

func TestMessageBus_DispatchFanOut(t *testing.T) {
	b := NewMessageBus()

	var mu sync.Mutex
	counts := map[string]int{}
	for _, name := range []string{"a", "b"} {
		name := name
		b.Subscribe("telegram", func(OutboundMessage) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(OutboundMessage{Channel: "telegram", Content: "x"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, counts["a"])
	assert.Equal(t, 1, counts["b"])
}

func TestMessageBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewMessageBus()

	slowDone := make(chan struct{})
	fastDone := make(chan struct{})

	b.Subscribe("telegram", func(OutboundMessage) {
		time.Sleep(300 * time.Millisecond)
		close(slowDone)
	})
	b.Subscribe("telegram", func(OutboundMessage) {
		close(fastDone)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(OutboundMessage{Channel: "telegram", Content: "x"})

	select {
	case <-fastDone:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("fast subscriber blocked by slow one")
	}
	<-slowDone
}

func TestMessageBus_SubscribeDoesNotReceiveOtherChannels(t *testing.T) {
	b := NewMessageBus()

	var received []OutboundMessage
	var mu sync.Mutex
	b.Subscribe("telegram", func(msg OutboundMessage) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	// No wildcard, no fallback: a discord message never reaches telegram.
	b.PublishOutbound(OutboundMessage{Channel: "discord", Content: "wrong"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, received)
}

func TestMessageBus_OnlyOneDispatcher(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		b.DispatchOutbound(ctx)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	err := b.DispatchOutbound(ctx)
	assert.ErrorIs(t, err, ErrClaimed)
}

func TestMessageBus_PublishNeverBlocksWithoutConsumer(t *testing.T) {
	b := NewMessageBus()

	// No dispatcher, no claim: every publish must still return immediately.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			assert.NoError(t, b.PublishOutbound(OutboundMessage{Channel: "cli", Content: "x"}))
			assert.NoError(t, b.PublishInbound(InboundMessage{Channel: "cli", Content: "x"}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no consumer draining")
	}
	assert.Equal(t, 500, b.OutboundSize())
	assert.Equal(t, 500, b.InboundSize())
}

func TestMessageBus_QueuedMessagesSurviveUntilClaim(t *testing.T) {
	b := NewMessageBus()
	for i := 0; i < 150; i++ {
		require.NoError(t, b.PublishInbound(InboundMessage{Channel: "cli", Content: "m"}))
	}

	rx, err := b.ClaimInbound()
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		select {
		case <-rx:
		case <-time.After(time.Second):
			t.Fatalf("message %d never delivered", i)
		}
	}
}

func TestMessageBus_NothingEnqueuedAfterStopReturns(t *testing.T) {
	b := NewMessageBus()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if b.PublishInbound(InboundMessage{Channel: "cli"}) != nil {
					return
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	b.Stop()
	size := b.InboundSize()
	wg.Wait()
	assert.Equal(t, size, b.InboundSize())
}

func TestMessageBus_StopIsIdempotentAndFailsPublishes(t *testing.T) {
	b := NewMessageBus()
	b.Stop()
	b.Stop()

	assert.ErrorIs(t, b.PublishInbound(InboundMessage{Channel: "cli"}), ErrClosed)
	assert.ErrorIs(t, b.PublishOutbound(OutboundMessage{Channel: "cli"}), ErrClosed)
}

func TestMessageBus_DispatchExitsAfterStop(t *testing.T) {
	b := NewMessageBus()
	done := make(chan struct{})
	go func() {
		b.DispatchOutbound(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	b.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("dispatch loop did not exit after Stop")
	}
}
