// Package push fans validated realtime events out to connected browser tabs.
// Tabs attach and detach freely; the upstream channel never notices.
package push

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/events"
)

// sendBufferSize bounds each tab's outbound queue. A tab that cannot drain
// it is dropped rather than allowed to stall the hub.
const sendBufferSize = 64

// client represents one connected browser tab.
type client struct {
	userID string
	send   chan []byte
}

// Hub maintains the set of connected tabs grouped by user and forwards each
// user's events to that user's tabs only.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
}

// NewHub builds the hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]map[*client]struct{}),
	}
}

// RegisterHandlers subscribes the hub to the event bus.
func (h *Hub) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventNotificationReceived, h.forward)
	dispatcher.Subscribe(events.EventMessageReceived, h.forward)
	dispatcher.Subscribe(events.EventRealtimeStateChanged, h.forward)
}

func (h *Hub) forward(_ context.Context, event events.Event) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[event.UserID] {
		select {
		case c.send <- encoded:
		default:
			// Tab is not draining; drop it.
			close(c.send)
			delete(h.clients[event.UserID], c)
			h.logger.Warn("push client dropped, send buffer full",
				zap.String("user_id", event.UserID))
		}
	}
	return nil
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tabs, ok := h.clients[c.userID]; ok {
		if _, present := tabs[c]; present {
			delete(tabs, c)
			close(c.send)
		}
		if len(tabs) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// Serve runs one tab's connection until it closes. Invoked from the /ws
// route for an already authorized session.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	c := &client{userID: userID, send: make(chan []byte, sendBufferSize)}
	h.add(c)
	defer h.remove(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for message := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, nil)
	}()

	// Reads are drained only to detect disconnect; tabs have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	<-done
}
