package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SimplyPrint/jcstorage-demo/internal/core"
	"github.com/SimplyPrint/jcstorage-demo/internal/data"
	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts clients without an Origin header and pages served from
// the loopback interface.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// WSMessage is the envelope of every message on the event stream.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Session   string          `json:"session,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// WSHub fans events out to the connected clients.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// WSClient is one event stream subscriber.
type WSClient struct {
	hub  *WSHub
	srv  *Server
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues data for the write pump. It reports false when the queue is
// full or the client has been disconnected.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// disconnect ends the send queue once; the write pump then closes the connection.
func (c *WSClient) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// Run dispatches registrations and broadcasts until Stop is called.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logging.Debug(logging.CatEvents, "Client connected", map[string]any{"clients": h.ClientCount()})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.disconnect()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.trySend(message) {
					// slow consumer
					client.disconnect()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.disconnect()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for every client. It never blocks; when the queue
// is full the event is dropped.
func (h *WSHub) Publish(eventType, session string, payload any) {
	msg, err := newMessage(eventType, "", session, payload)
	if err != nil {
		logging.Error(logging.CatEvents, "Failed to encode event", map[string]any{"type": eventType, "error": err.Error()})
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn(logging.CatEvents, "Event queue full, dropping event", map[string]any{"type": eventType})
	}
}

func newMessage(msgType, id, session string, payload any) ([]byte, error) {
	msg := WSMessage{Type: msgType, ID: id, Session: session, Timestamp: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return json.Marshal(msg)
}

func (c *WSClient) readPump() {
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
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn(logging.CatEvents, "Client connection error", map[string]any{"error": err.Error()})
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *WSClient) session() string {
	if c.srv == nil {
		return ""
	}
	return c.srv.session
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := newMessage(msgType, id, c.session(), payload)
	if err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	data, _ := json.Marshal(WSMessage{
		Type:      "error",
		ID:        id,
		Session:   c.session(),
		Timestamp: time.Now().UTC(),
		Error:     message,
	})
	c.trySend(data)
}

func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "health":
		c.handleHealth(msg.ID)
	case "version":
		c.handleVersion(msg.ID)
	case "list_readers":
		c.handleListReaders(msg.ID)
	case "supported_readers":
		c.handleSupportedReaders(msg.ID)
	case "history":
		c.handleHistory(msg.ID)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) handleHealth(id string) {
	clients := 0
	if c.hub != nil {
		clients = c.hub.ClientCount()
	}
	c.sendResponse(id, "health", map[string]any{"status": "ok", "clients": clients})
}

func (c *WSClient) handleVersion(id string) {
	c.sendResponse(id, "version", versionInfo())
}

func (c *WSClient) handleListReaders(id string) {
	c.sendResponse(id, "readers", core.ListReaders())
}

func (c *WSClient) handleSupportedReaders(id string) {
	readers, err := data.GetSupportedReaders()
	if err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.sendResponse(id, "supported_readers", readers)
}

func (c *WSClient) handleHistory(id string) {
	if c.srv == nil || c.srv.history == nil {
		c.sendError(id, "card journal disabled")
		return
	}
	all, err := c.srv.history.All()
	if err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.sendResponse(id, "history", all)
}
