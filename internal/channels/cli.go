package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ternlabs/tern/internal/bus"
)

// CLIChannel is a terminal chat surface: it reads lines from Input and
// writes agent replies to Output. Chat ID is always "direct".
type CLIChannel struct {
	BaseChannel
	Input  io.Reader
	Output io.Writer

	SenderID string
	cancelFn context.CancelFunc
	mu       sync.Mutex
}

// NewCLIChannel creates a CLIChannel bound to stdin/stdout.
func NewCLIChannel(msgBus *bus.MessageBus) *CLIChannel {
	return &CLIChannel{
		BaseChannel: BaseChannel{
			ChannelName: "cli",
			Bus:         msgBus,
		},
		Input:    os.Stdin,
		Output:   os.Stdout,
		SenderID: "user",
	}
}

func (c *CLIChannel) Name() string    { return "cli" }
func (c *CLIChannel) IsRunning() bool { return c.Running }

// Start reads input lines and publishes them as inbound messages.
// Returns when the input closes or ctx is cancelled.
func (c *CLIChannel) Start(ctx context.Context) error {
	c.Running = true
	ctx, c.cancelFn = context.WithCancel(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.Input)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.Running = false
			return nil
		case line, ok := <-lines:
			if !ok {
				c.Running = false
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			c.HandleMessage(c.SenderID, "direct", line, nil, nil)
		}
	}
}

// Stop stops the CLI channel.
func (c *CLIChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Running = false
	if c.cancelFn != nil {
		c.cancelFn()
	}
	return nil
}

// Send prints an agent reply to the output.
func (c *CLIChannel) Send(msg bus.OutboundMessage) error {
	_, err := fmt.Fprintf(c.Output, "%s\n", msg.Content)
	return err
}
