package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// envelope is the websocket wire format.
type envelope struct {
	Type string    `json:"type"`
	Ts   time.Time `json:"ts"`
	Data any       `json:"data,omitempty"`
}

func marshalEnvelope(typ string, data any) ([]byte, error) {
	return json.Marshal(envelope{Type: typ, Ts: time.Now().UTC(), Data: data})
}

// hub fans frames out to websocket clients. A client whose queue is full is
// dropped rather than slowing the others.
type hub struct {
	log *slog.Logger

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	// done is closed when run returns.
	done chan struct{}

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub(log *slog.Logger) *hub {
	return &hub{
		log:        log,
		broadcast:  make(chan []byte, 128),
		register:   make(chan *wsClient, 16),
		unregister: make(chan *wsClient, 16),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]struct{}),
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Info("ws client too slow, disconnecting", "remote_addr", c.remoteAddr)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *hub) drop(c *wsClient) {
	delete(h.clients, c)
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// add registers c. It reports false once the hub has stopped.
func (h *hub) add(c *wsClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// remove unregisters c, or does nothing once the hub has stopped.
func (h *hub) remove(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// publish queues a frame without blocking.
func (h *hub) publish(typ string, data any) {
	msg, err := marshalEnvelope(typ, data)
	if err != nil {
		h.log.Warn("ws marshal failed", "type", typ, "err", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("ws broadcast queue full, dropping frame", "type", typ)
	}
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type wsClient struct {
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

func (c *wsClient) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Info("ws write failed", "remote_addr", c.remoteAddr, "err", err)
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands every text frame to onText and unregisters on error.
func (c *wsClient) readPump(h *hub, onText func(string)) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			h.remove(c)
			return
		}
		if typ == websocket.TextMessage && onText != nil {
			onText(string(data))
		}
	}
}
