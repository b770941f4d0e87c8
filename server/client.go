package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/version"
)

// WebSocket timeouts, following the gorilla chat example
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control messages
	maxMessageSize = 4096

	// Per-client outbound queue
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 2048,
	// CORS is enforced by the HTTP middleware; browsers on any allowed
	// origin may stream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket subscriber
type Client struct {
	id        string
	server    *Server
	conn      *websocket.Conn
	send      chan interface{}
	closeOnce sync.Once
}

// inboundMessage is what dashboards send over the socket
type inboundMessage struct {
	Type string `json:"type"`
}

// HandleWebSocket upgrades the connection and streams job and activity
// updates until either side closes
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		send:   make(chan interface{}, sendBufferSize),
	}

	// Written before writePump starts so there is a single writer
	info := version.Get()
	hello := envelope{
		"type":      "hello",
		"client_id": client.id,
		"version":   info.Version,
		"commit":    info.Short(),
		"timestamp": timestamp(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		s.logger.Debugw("Failed to greet client", "client_id", client.id, logger.FieldError, err)
		conn.Close()
		return
	}

	select {
	case s.hub.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains control messages and detects disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.hub.unregister <- c:
		case <-c.server.ctx.Done():
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("WebSocket read error", "client_id", c.id, logger.FieldError, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.logger.Debugw("Ignoring malformed message", "client_id", c.id, logger.FieldError, err)
			continue
		}
		c.route(msg)
	}
}

func (c *Client) route(msg inboundMessage) {
	switch msg.Type {
	case "ping":
		c.sendJSON(envelope{"type": "pong", "timestamp": timestamp()})
	case "status":
		summary := jobs.Summarize(c.server.manager.List(), c.server.started, time.Now())
		c.sendJSON(envelope{"type": "status", "status": summary, "timestamp": timestamp()})
	default:
		c.server.logger.Debugw("Unknown message type", "client_id", c.id, "type", msg.Type)
	}
}

// writePump is the only writer after the greeting
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debugw("WebSocket write error", "client_id", c.id, logger.FieldError, err)
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

// sendJSON queues msg for this client alone, dropping it if the client is
// behind or already unregistered
func (c *Client) sendJSON(msg interface{}) {
	c.server.hub.mu.RLock()
	defer c.server.hub.mu.RUnlock()
	if !c.server.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.server.logger.Debugw("Client queue full, dropping message", "client_id", c.id)
	}
}

// close ends writePump. Callers hold the hub write lock.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}
