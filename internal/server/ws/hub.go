// Package ws pushes setup, wallet, ticket and order events to WebSocket
// clients. Each message is a JSON text frame {"type":topic,"payload":...}.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Topics published by the application.
const (
	TopicStatus = "status"
	TopicWallet = "wallet"
	TopicTicket = "ticket"
	TopicOrders = "orders"
	TopicPrompt = "wallet_required"
)

// Config configures the hub.
type Config struct {
	// AllowedOrigins restricts the handshake Origin. Empty or "*" allows all.
	AllowedOrigins []string
	// BusChannels are signal bus channels relayed to clients under the
	// channel name as topic.
	BusChannels []string
}

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// subscribeMsg narrows the topics a client receives.
// {"subscribe":["ticket"]} or {"unsubscribe":["orders"]}
type subscribeMsg struct {
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]bool // nil means every topic
}

// Hub fans published events out to connected clients and replays the latest
// event of each topic to newly connected ones.
type Hub struct {
	cfg      Config
	bus      domain.SignalBus
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  map[string][]byte
	closed  bool

	done chan struct{}
}

// NewHub creates a hub. bus may be nil.
func NewHub(cfg Config, bus domain.SignalBus, logger *slog.Logger) *Hub {
	h := &Hub{
		cfg:     cfg,
		bus:     bus,
		logger:  logger.With(slog.String("component", "ws")),
		clients: make(map[*client]struct{}),
		latest:  make(map[string][]byte),
		done:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Publish sends payload to every client subscribed to topic.
func (h *Hub) Publish(topic string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("ws: marshal payload", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}
	h.publishRaw(topic, raw)
}

func (h *Hub) publishRaw(topic string, raw json.RawMessage) {
	frame, err := json.Marshal(message{Type: topic, Payload: raw})
	if err != nil {
		h.logger.Error("ws: marshal frame", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest[topic] = frame
	for c := range h.clients {
		if !c.isSubscribed(topic) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("ws: dropping message for slow client", slog.String("topic", topic))
		}
	}
}

// Run relays the configured bus channels until ctx is cancelled, then closes
// every client.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range h.cfg.BusChannels {
			go h.relay(ctx, ch)
		}
	}

	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	close(h.done)
	return nil
}

func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				return
			}
			if !json.Valid(data) {
				h.logger.Warn("ws: dropping non-JSON bus message", slog.String("channel", channel))
				continue
			}
			h.publishRaw(channel, data)
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	for _, frame := range h.latest {
		c.send <- frame
	}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ws: client connected", slog.Int("total_clients", total))

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client disconnected", slog.Int("total_clients", total))
}

func (c *client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs == nil || c.subs[topic]
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(msg.Subscribe) > 0 {
		if c.subs == nil {
			c.subs = make(map[string]bool)
		}
		for _, t := range msg.Subscribe {
			c.subs[t] = true
		}
	}
	if len(msg.Unsubscribe) > 0 && c.subs == nil {
		c.subs = map[string]bool{
			TopicStatus: true, TopicWallet: true, TopicTicket: true,
			TopicOrders: true, TopicPrompt: true,
		}
	}
	for _, t := range msg.Unsubscribe {
		delete(c.subs, t)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if json.Unmarshal(data, &sub) == nil && (len(sub.Subscribe) > 0 || len(sub.Unsubscribe) > 0) {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
