package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/agentexec/logging"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Event names written by the Hub.
const (
	EventConnected = "connected"
	EventToken     = "token"
)

// ConnectedMessage is sent once after the upgrade. Clients pass ClientID back
// as the socket client id of prediction requests.
type ConnectedMessage struct {
	Event    string `json:"event"`
	ClientID string `json:"clientId"`
}

// TokenMessage carries one chunk to the client.
type TokenMessage struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Seq       int    `json:"seq"`
	Data      string `json:"data"`
}

// HubOptions configures a Hub.
type HubOptions struct {
	Logger       logging.Logger
	WriteTimeout time.Duration
	// CheckOrigin is passed to the websocket upgrader. Nil allows all origins.
	CheckOrigin func(r *http.Request) bool
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteJSON(v)
}

// Hub is a websocket Channel. Each connection gets a nanoid client id; Send
// writes to the connection whose id equals Target.ChannelID.
type Hub struct {
	upgrader websocket.Upgrader
	logger   logging.Logger
	timeout  time.Duration

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a Hub ready to be mounted as an http.Handler.
func NewHub(optFns ...func(o *HubOptions)) *Hub {
	opts := HubOptions{
		Logger:       logging.NoOpLogger{},
		WriteTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logging.OrNoOp(opts.Logger),
		timeout:  opts.WriteTimeout,
		clients:  make(map[string]*client),
	}
}

// ServeHTTP upgrades the connection, registers the client and keeps reading
// until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("stream.upgrade.failed", "error", err)
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		h.logger.Error("stream.client_id.failed", "error", err)
		_ = conn.Close()
		return
	}
	c := &client{id: id, conn: conn}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	h.logger.Info("stream.client.connected", "client_id", id, "ip", r.RemoteAddr)

	if err := c.writeJSON(ConnectedMessage{Event: EventConnected, ClientID: id}, h.timeout); err != nil {
		h.logger.Error("stream.client.handshake_failed", "client_id", id, "error", err)
		h.remove(id)
		return
	}

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c.id)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("stream.client.read_error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.logger.Info("stream.client.disconnected", "client_id", id)
	}
}

// Send implements Channel.
func (h *Hub) Send(ctx context.Context, target Target, chunk Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	c, ok := h.clients[target.ChannelID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, target.ChannelID)
	}

	msg := TokenMessage{
		Event:     EventToken,
		SessionID: target.SessionID,
		Seq:       chunk.Seq,
		Data:      chunk.Text,
	}
	if err := c.writeJSON(msg, h.timeout); err != nil {
		return fmt.Errorf("write to client %s: %w", c.id, err)
	}
	return nil
}

// Clients returns the ids of connected clients.
func (h *Hub) Clients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Close disconnects every client.
func (h *Hub) Close() {
	for _, id := range h.Clients() {
		h.remove(id)
	}
}
