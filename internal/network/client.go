package network

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Request is an incoming message from a client.
type Request struct {
	Type   string             `json:"type"`
	Events []events.EventType `json:"events,omitempty"`
}

// Client is one websocket connection. An empty filter receives every event.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	filterMu sync.RWMutex
	filter   map[events.EventType]bool
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	size := hub.SendBuffer()
	if size <= 0 {
		size = 64
	}
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, size),
	}
}

// Register adds the client to the hub. It reports false once the hub has stopped.
func (c *Client) Register() bool {
	select {
	case c.hub.register <- c:
		return true
	case <-c.hub.done:
		return false
	}
}

func (c *Client) wants(t events.EventType) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return len(c.filter) == 0 || c.filter[t]
}

func (c *Client) subscribe(types []events.EventType) {
	filter := make(map[events.EventType]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}
	c.filterMu.Lock()
	c.filter = filter
	c.filterMu.Unlock()
}

// ReadPump pumps requests from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warn("WebSocket read failed", logger.Err(err))
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.hub.sendTo(c, Envelope{Type: MessageError, Error: "malformed request"})
			continue
		}
		c.handleRequest(req)
	}
}

func (c *Client) handleRequest(req Request) {
	switch req.Type {
	case MessageSnapshot:
		if c.hub.clock == nil {
			c.hub.sendTo(c, Envelope{Type: MessageError, Error: "no clock attached"})
			return
		}
		snap := c.hub.clock.Snapshot()
		c.hub.sendTo(c, Envelope{Type: MessageSnapshot, Snapshot: &snap})
	case MessageSubscribe:
		c.subscribe(req.Events)
	default:
		c.hub.sendTo(c, Envelope{Type: MessageError, Error: "unknown request type: " + req.Type})
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Queued messages are batched into one frame, separated by newlines.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
