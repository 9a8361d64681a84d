// Package browserrefresh implements the browser-hosted refresh channel: a
// WebSocket hub that fans out delta and diagnostics payloads to connected
// browsers without letting a slow client block the others.
package browserrefresh

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/c360studio/hotreload/internal/wire"
)

// RefreshChannel is the capability the browser-refresh applier variant
// depends on. internal/applier's browser variant is written against this
// interface so it does not depend on gorilla/websocket directly.
type RefreshChannel interface {
	SendUpdate(payload wire.UpdatePayload) error
	SendDiagnostics(msg wire.DiagnosticsMessage) error
}

type client struct {
	id     string
	conn   *websocket.Conn
	notify chan []byte
}

// Hub is a reference RefreshChannel implementation built on gorilla/websocket.
// Browsers connect over the handler returned by Handler; a single manager
// goroutine owns client registration and broadcast so no lock is needed
// around the client set.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub constructs a Hub. Call Run in its own goroutine to start the
// manager loop before accepting connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
	}
}

// Run drives the hub's manager loop until ctx is cancelled, closing every
// connected client on exit. It is safe to call exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.notify)
				_ = c.conn.Close()
			}
			h.drain()
			return

		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.notify)
				_ = c.conn.Close()
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.notify <- msg:
				default:
					// Client isn't keeping up; drop rather than stall the hub.
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) drain() {
	for {
		select {
		case c := <-h.register:
			_ = c.conn.Close()
		case c := <-h.unregister:
			_ = c.conn.Close()
		case <-h.broadcast:
		default:
			return
		}
	}
}

// SendUpdate implements RefreshChannel. Delivery is best-effort: there is
// no ack on the browser channel, success is reported optimistically.
func (h *Hub) SendUpdate(payload wire.UpdatePayload) error {
	payload.Type = wire.DeltaPayloadType
	encoded, err := wire.Encode(payload)
	if err != nil {
		return err
	}
	h.broadcast <- encoded
	return nil
}

// SendDiagnostics implements RefreshChannel.
func (h *Hub) SendDiagnostics(msg wire.DiagnosticsMessage) error {
	encoded, err := wire.EncodeDiagnostics(msg)
	if err != nil {
		return err
	}
	h.broadcast <- encoded
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler returns an http.HandlerFunc that upgrades requests to WebSocket
// connections and registers them with the hub. Mount it at /hotreload/ws;
// serving the rest of the browser-dev HTTP surface is the embedder's
// responsibility.
func Handler(ctx context.Context, h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := &client{id: r.RemoteAddr, conn: conn, notify: make(chan []byte, 4)}

		select {
		case h.register <- c:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}

		defer func() {
			select {
			case h.unregister <- c:
			case <-ctx.Done():
			default:
			}
		}()

		go func() {
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					select {
					case h.unregister <- c:
					case <-ctx.Done():
					default:
					}
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-c.notify:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
