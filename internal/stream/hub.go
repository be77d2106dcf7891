// Package stream pushes scoreboard views to WebSocket clients.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/engine"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/http/requestutil"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
)

const (
	defaultSendBuffer = 16
	writeDeadline     = 5 * time.Second
	pongWait          = 60 * time.Second
	pingInterval      = 25 * time.Second
	messageTypeView   = "view"
)

// ViewSource supplies the view sent to a client on connect.
type ViewSource interface {
	View() engine.View
}

// Config tunes a Hub.
type Config struct {
	Source         ViewSource
	SendBuffer     int
	AllowedOrigins []string
	PingInterval   time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Recorder
}

type message struct {
	Type string      `json:"type"`
	View engine.View `json:"view"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Hub fans published views out to connected clients. Each client has a
// buffered send channel; a full channel drops the message for that client.
type Hub struct {
	source       ViewSource
	sendBuffer   int
	pingInterval time.Duration
	logger       *slog.Logger
	metrics      *metrics.Recorder
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewHub(cfg Config) *Hub {
	h := &Hub{
		source:       cfg.Source,
		sendBuffer:   cfg.SendBuffer,
		pingInterval: cfg.PingInterval,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		clients:      make(map[*client]struct{}),
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.pingInterval <= 0 {
		h.pingInterval = pingInterval
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: requestutil.OriginChecker(cfg.AllowedOrigins)}
	return h
}

// Publish enqueues v for every client without blocking.
func (h *Hub) Publish(v engine.View) {
	data, err := encode(v)
	if err != nil {
		logging.Error(h.logger, "stream encode failed", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logging.Warn(h.logger, "stream dropping message for slow client", slog.String(logging.FieldClientID, c.id))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}

	logger := logging.FromContext(r.Context(), h.logger)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(logger, "stream upgrade failed", slog.Any("err", err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if h.source != nil {
		if data, err := encode(h.source.View()); err == nil {
			c.send <- data
		}
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.RecordStreamClient(1)
	logging.Info(logger, "stream client connected", slog.String(logging.FieldClientID, c.id))

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeDeadline))
		_ = conn.Close()
	}
	h.wg.Wait()
}

// writePump owns the client lifecycle: on exit it unregisters the client
// and closes the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		h.removeClient(c)
		_ = c.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logging.Debug(h.logger, "stream write failed", slog.String(logging.FieldClientID, c.id), slog.Any("err", err))
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains control frames; clients are not expected to send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		close(c.done)
		h.wg.Done()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.metrics.RecordStreamClient(-1)
		logging.Info(h.logger, "stream client disconnected", slog.String(logging.FieldClientID, c.id))
	}
}

func encode(v engine.View) ([]byte, error) {
	return json.Marshal(message{Type: messageTypeView, View: v})
}
