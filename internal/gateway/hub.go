// Package gateway streams execution events to WebSocket clients. Each
// connected client may subscribe to one execution at a time; the hub fans
// bus envelopes out to matching clients and drops the ones that cannot keep
// up rather than stalling the rest.
package gateway

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/algolens/algolens/internal/bus"
	"github.com/algolens/algolens/internal/registry"
)

// sendBufferSize is the per-client outbound buffer. A client that falls this
// far behind the stream is disconnected.
const sendBufferSize = 256

// Hub owns the WebSocket client registry and fans bus events out to
// subscribed clients.
type Hub struct {
	registry *registry.Registry
	bus      *bus.Bus
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client

	upgrader websocket.Upgrader
}

// NewHub creates a Hub. Call Start to begin fanning out bus events.
func NewHub(reg *registry.Registry, eventBus *bus.Bus, logger *slog.Logger) *Hub {
	return &Hub{
		registry: reg,
		bus:      eventBus,
		logger:   logger.With("component", "gateway"),
		clients:  make(map[string]*client),
		upgrader: websocket.Upgrader{
			// Cross-origin policy is enforced by the HTTP layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start subscribes to the bus channels and begins forwarding envelopes to
// clients. Forwarding stops when the bus closes.
func (h *Hub) Start() {
	lifecycle, _ := h.bus.Subscribe(bus.ChannelLifecycle)
	steps, _ := h.bus.Subscribe(bus.ChannelSteps)
	go h.forward(lifecycle)
	go h.forward(steps)
}

// Shutdown disconnects every connected client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// ServeWS upgrades the request and runs the connection until the client
// disconnects. The X-User-Id header, when present, pre-binds the user
// identity; browser clients bind it with an authenticate message instead.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan serverMessage, sendBufferSize),
		userID: r.Header.Get("X-User-Id"),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	clientsGauge.Inc()
	h.logger.Info("client connected", "client_id", c.id, "remote", r.RemoteAddr)

	go c.writeLoop()
	c.reply(serverMessage{Type: MsgConnected, ClientID: c.id})
	c.readLoop()
}

func (h *Hub) forward(ch <-chan bus.Envelope) {
	for env := range ch {
		h.broadcast(env)
	}
}

// broadcast delivers an envelope to every client subscribed to its
// execution. Sends happen under the read lock into buffered channels; a full
// buffer marks the client slow and it is dropped once the lock is released.
func (h *Hub) broadcast(env bus.Envelope) {
	msg := serverMessage{
		Type:        env.Type,
		ExecutionID: env.ExecutionID,
		Data:        env.Payload,
		Timestamp:   env.Timestamp,
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		if !c.subscribedTo(env.ExecutionID) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		droppedTotal.Inc()
		h.logger.Warn("dropping slow client", "client_id", c.id)
		h.unregister(c)
	}
}

// unregister removes a client and tears its connection down. Deregistration
// takes the write lock before the send channel closes, so in-flight
// broadcasts can never send on a closed channel. Safe to call twice.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	close(c.send)
	c.conn.Close()
	clientsGauge.Dec()
	h.logger.Info("client disconnected", "client_id", c.id)
}
