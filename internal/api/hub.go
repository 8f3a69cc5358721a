package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// sendBuffer is the per-client outbound queue. A client that falls this far
// behind is disconnected rather than allowed to stall the hub.
const sendBuffer = 64

// Hub fans simulation events out to websocket clients. It satisfies the
// engine's Broadcaster interface.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// envelope is the wire format for every broadcast frame.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	SentAt  string `json:"sent_at"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Publish queues an event for every connected client. Slow clients are
// dropped instead of blocking the caller.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(envelope{
		Type:    eventType,
		Payload: payload,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("broadcast marshal failed", "type", eventType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("dropping slow websocket client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades the request and streams broadcast frames until the
// client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("websocket client connected", "clients", h.ClientCount())

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		slog.Info("websocket client disconnected", "clients", h.ClientCount())
	}()

	// Reader goroutine: we send, clients only listen, but reading surfaces
	// close frames and pings.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-readClosed:
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
