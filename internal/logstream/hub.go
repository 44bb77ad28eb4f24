// Package logstream fans build and test-run log lines out to WebSocket
// clients grouped by channel name.
package logstream

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewChannelName returns a fresh channel name for callers that do not supply
// their own.
func NewChannelName() string {
	return "logs-" + uuid.NewString()
}

// room holds the connections subscribed to one channel. Its mutex also
// serialises writes, since a websocket.Conn allows one writer at a time.
type room struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// Hub tracks rooms keyed by channel name. Empty rooms are removed.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]*room
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{rooms: make(map[string]*room), logger: logger}
}

func (h *Hub) join(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[channel]
	if !ok {
		r = &room{clients: make(map[*websocket.Conn]struct{})}
		h.rooms[channel] = r
	}
	r.mu.Lock()
	r.clients[conn] = struct{}{}
	r.mu.Unlock()
}

func (h *Hub) leave(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[channel]
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.clients, conn)
	empty := len(r.clients) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, channel)
		h.logger.Debug("logstream: room removed", slog.String("channel", channel))
	}
}

func (h *Hub) room(channel string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[channel]
}

// ServeWS upgrades the request and subscribes the connection to channel
// until the peer disconnects. Messages sent by the peer are relayed to the
// other subscribers.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("logstream: upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	h.join(channel, conn)
	defer h.leave(channel, conn)
	h.logger.Info("logstream: client connected", slog.String("channel", channel))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("logstream: client gone", slog.String("channel", channel), slog.String("error", err.Error()))
			return
		}
		h.broadcast(channel, msg, conn)
	}
}

// Publish sends line to every subscriber of channel and returns how many
// received it.
func (h *Hub) Publish(channel string, line []byte) int {
	return h.broadcast(channel, line, nil)
}

func (h *Hub) broadcast(channel string, msg []byte, sender *websocket.Conn) int {
	r := h.room(channel)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := 0
	for conn := range r.clients {
		if conn == sender {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("logstream: write failed", slog.String("channel", channel), slog.String("error", err.Error()))
			conn.Close()
			delete(r.clients, conn)
			continue
		}
		sent++
	}
	return sent
}

// Subscribers returns the number of connections on channel.
func (h *Hub) Subscribers(channel string) int {
	r := h.room(channel)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Channels lists the channels with at least one subscriber.
func (h *Hub) Channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Disconnect closes every connection on channel. Their ServeWS loops then
// return and the room is removed.
func (h *Hub) Disconnect(channel string) {
	r := h.room(channel)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.clients {
		conn.Close()
	}
}

// Close disconnects every channel.
func (h *Hub) Close() {
	for _, name := range h.Channels() {
		h.Disconnect(name)
	}
}
