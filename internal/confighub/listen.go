package confighub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsFrame is the push-event envelope the hub sends.
type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const maxReconnectDelay = 60 * time.Second

// Listen connects to the hub's WebSocket and applies config_update pushes.
// It reconnects with exponential backoff until ctx is cancelled. Blocks.
func (h *ConfigHub) Listen(ctx context.Context, wsURL string) {
	if wsURL == "" {
		return
	}

	header := http.Header{}
	if h.apiKey != "" {
		header.Set("Authorization", "Bearer "+h.apiKey)
	}
	if h.instanceID != "" {
		header.Set("X-Instance-ID", h.instanceID)
	}

	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
		if err != nil {
			log.Printf("[ConfigHub] WS dial failed: %v (retry in %s)", err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		log.Printf("[ConfigHub] WS connected: %s", wsURL)
		delay = time.Second
		h.readLoop(ctx, conn)
		conn.Close()
	}
}

// readLoop consumes frames until the connection drops or ctx is cancelled.
func (h *ConfigHub) readLoop(ctx context.Context, conn *websocket.Conn) {
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
		}
	}()

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				log.Printf("[ConfigHub] WS read error: %v (reconnecting)", err)
			}
			return
		}

		switch frame.Type {
		case "config_update":
			if err := h.HandleConfigUpdate(frame.Data); err != nil {
				log.Printf("[ConfigHub] Bad config_update: %v", err)
			}
		case "ping":
			if err := conn.WriteJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}
