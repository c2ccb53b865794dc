// Package network streams event-log entries to websocket clients and answers
// clock snapshot requests.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greenvale/farmsim/server/internal/engine"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/config"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

// Message types on the wire.
const (
	MessageEvent     = "EVENT"
	MessageSnapshot  = "SNAPSHOT"
	MessageSubscribe = "SUBSCRIBE"
	MessageError     = "ERROR"
)

// Envelope is every message the hub writes to a client.
type Envelope struct {
	Type     string            `json:"type"`
	Event    *events.GameEvent `json:"event,omitempty"`
	Snapshot *engine.Snapshot  `json:"clock,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// SnapshotSource answers SNAPSHOT requests. *engine.Clock satisfies it.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

type outbound struct {
	eventType events.EventType
	data      []byte
}

type direct struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	reply      chan direct
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	clock        SnapshotSource
	logger       *logger.Logger
	metrics      *metrics.Collector
	sendBuffer   atomic.Int64
	maxClients   int
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewHub initializes a new WebSocket Hub.
func NewHub(cfg *config.Config, clock SnapshotSource, log *logger.Logger, m *metrics.Collector) *Hub {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := &Hub{
		broadcast:    make(chan outbound),
		reply:        make(chan direct),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		clients:      make(map[*Client]bool),
		clock:        clock,
		logger:       log,
		metrics:      m,
		maxClients:   cfg.MaxClientsPerGame,
		pollInterval: cfg.EventPollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	h.sendBuffer.Store(int64(cfg.ClientSendBuffer))
	return h
}

// SetSendBuffer resizes the send queue of clients that connect from now on.
func (h *Hub) SetSendBuffer(n int) {
	if n > 0 {
		h.sendBuffer.Store(int64(n))
	}
}

// SendBuffer is the send queue size given to new clients.
func (h *Hub) SendBuffer() int {
	return int(h.sendBuffer.Load())
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected", logger.Int("clients", n))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case msg := <-h.reply:
			h.mu.Lock()
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.data)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.wants(msg.eventType) {
					h.deliver(client, msg.data)
				}
			}
			h.mu.Unlock()
		}
	}
}

// deliver drops a client whose send buffer is full. Callers hold mu.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
		h.metrics.RecordWSMessage(false)
	default:
		h.metrics.RecordWSError()
		h.logger.Warn("Dropping slow WebSocket client")
		h.drop(client)
	}
}

// drop closes the client's send channel. Callers hold mu.
func (h *Hub) drop(client *Client) {
	close(client.send)
	delete(h.clients, client)
	h.metrics.RecordWSConnection(-1)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches a new client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.maxClients > 0 && h.ClientCount() >= h.maxClients {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.RecordWSError()
		h.logger.Warn("WebSocket upgrade failed", logger.Err(err))
		return
	}
	client := NewClient(h, conn)
	if !client.Register() {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

// BroadcastEvent serializes a GameEvent and sends it to every subscribed client.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	payload, err := json.Marshal(Envelope{Type: MessageEvent, Event: &event})
	if err != nil {
		h.logger.Error("Failed to serialize GameEvent for WebSocket broadcast", logger.Err(err))
		return
	}
	select {
	case h.broadcast <- outbound{eventType: event.Type, data: payload}:
	case <-h.done:
	}
}

func (h *Hub) sendTo(c *Client, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to serialize reply", logger.Err(err))
		return
	}
	select {
	case h.reply <- direct{client: c, data: payload}:
	case <-h.done:
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes
// events appended from now on to the Hub, so the hub runs independently of
// the clock driver.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go h.pollEvents(ctx, eventLog, eventLog.Len())
}

func (h *Hub) pollEvents(ctx context.Context, eventLog *events.EventLog, offset int) {
	interval := h.pollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh := eventLog.Since(offset)
			for _, event := range fresh {
				h.BroadcastEvent(event)
			}
			offset += len(fresh)
		}
	}
}
