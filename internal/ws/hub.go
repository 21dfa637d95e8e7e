package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// NotificationSaver persists pushed events as stored notifications.
type NotificationSaver interface {
	CreateNotification(ctx context.Context, operatorID uuid.UUID, event string, data interface{}) error
}

// Hub manages all WebSocket clients, keyed by operator.
type Hub struct {
	mu                sync.RWMutex
	clients           map[uuid.UUID]map[*Client]struct{}
	register          chan *Client
	unregister        chan *Client
	broadcast         chan message
	notificationSaver NotificationSaver
	ctx               context.Context
}

type message struct {
	operatorID uuid.UUID
	payload    []byte
}

// NewHub creates a hub bound to the given lifetime context.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		ctx:        ctx,
	}
}

// SetNotificationSaver wires the persistence side of event pushes.
func (h *Hub) SetNotificationSaver(saver NotificationSaver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notificationSaver = saver
}

// Run drives the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.operatorID, msg.payload)
		}
	}
}

// Register adds a client.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToOperator sends an event to one operator's connections and
// persists it as a notification. The wire contract is {"type", "data"}.
func (h *Hub) BroadcastToOperator(operatorID uuid.UUID, event string, data any) error {
	payload := map[string]any{
		"type": event,
		"data": data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ws: could not marshal message: %w", err)
	}

	h.mu.RLock()
	saver := h.notificationSaver
	ctx := h.ctx
	h.mu.RUnlock()

	if saver != nil {
		// Persist asynchronously so a slow insert never delays the push.
		go func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Printf("ws: notification save panic recovered: %v\nstack trace:\n%s\n", r, debug.Stack())
				}
			}()
			if err := saver.CreateNotification(ctx, operatorID, event, data); err != nil {
				fmt.Printf("ws: could not save notification: %v\n", err)
			}
		}()
	}

	h.broadcast <- message{operatorID: operatorID, payload: raw}
	return nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.operatorID]; !ok {
		h.clients[client.operatorID] = make(map[*Client]struct{})
	}
	h.clients[client.operatorID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.operatorID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.operatorID)
		}
	}
}

func (h *Hub) send(operatorID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[operatorID] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop the connection off the hot path.
			go func(c *Client) {
				defer func() {
					if r := recover(); r != nil {
						fmt.Printf("ws: client close panic recovered: %v\nstack trace:\n%s\n", r, debug.Stack())
					}
				}()
				c.Close()
			}(client)
		}
	}
}
