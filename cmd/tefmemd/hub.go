package main

import (
	"sync"

	"github.com/gorilla/websocket"
)

// event is one message on the /ws/events stream
type event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// eventHub fans session status and progress out to every connected
// WebSocket client. Slow or dead clients are dropped rather than allowed
// to stall a serial operation.
type eventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*websocket.Conn]bool)}
}

// Add registers a client connection
func (h *eventHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

// Remove unregisters and closes a client connection
func (h *eventHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all clients, dropping any that error
func (h *eventHub) Broadcast(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(ev); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// CloseAll drops every client; used at shutdown
func (h *eventHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
