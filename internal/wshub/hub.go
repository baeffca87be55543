package wshub

import (
	"context"
	"log"
	"sync"

	"github.com/coder/websocket"

	"ticrelay/internal/events"
)

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub manages WebSocket connections and their room subscriptions. It is the
// delivery layer only: which connections belong to which game is decided by
// the relay, which drives the hub through Subscribe/Unsubscribe.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client from the hub and from every room it was
// subscribed to, then closes its Send channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	close(c.Send)
}

// Subscribe adds a registered connection to a room's broadcast scope.
// Unknown connections are ignored.
func (h *Hub) Subscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[connID] = c
}

// Unsubscribe removes a connection from a room's broadcast scope.
func (h *Hub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast sends an event to every subscriber of a room. A room with no
// subscribers is a no-op. Non-blocking: drops if a client's channel is full.
func (h *Hub) Broadcast(roomID, event string, data any) {
	h.send(roomID, "", event, data)
}

// BroadcastExcept sends an event to every subscriber of a room except the
// sender.
func (h *Hub) BroadcastExcept(roomID, senderID, event string, data any) {
	h.send(roomID, senderID, event, data)
}

// Emit sends an event to a single connection.
func (h *Hub) Emit(connID, event string, data any) {
	msg, err := events.Marshal(event, data)
	if err != nil {
		log.Printf("[WSHub] Marshal error: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if c, ok := h.clients[connID]; ok {
		select {
		case c.Send <- msg:
		default:
			// Drop message if channel full
		}
	}
}

func (h *Hub) send(roomID, skipID, event string, data any) {
	msg, err := events.Marshal(event, data)
	if err != nil {
		log.Printf("[WSHub] Marshal error: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.rooms[roomID] {
		if id == skipID {
			continue
		}
		select {
		case c.Send <- msg:
		default:
			// Drop message if channel full
		}
	}
}
