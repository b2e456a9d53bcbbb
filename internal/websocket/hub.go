package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"opsdesk/internal/access"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sessions are authenticated by token, not by origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope pushed to every session.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Subject access.Subject
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        log.Named("ws"),
	}
}

// Run starts the core dispatch loop for WebSocket events
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", zap.String("email", client.Subject.Email))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("client disconnected", zap.String("email", client.Subject.Email))
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every session.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues a {type, data} message for every session. It never blocks:
// when the queue is full the event is dropped and sessions catch up on their
// next refetch.
func (h *Hub) Broadcast(topic string, payload interface{}) {
	b, err := json.Marshal(Message{Type: topic, Data: payload})
	if err != nil {
		h.log.Error("marshal broadcast", zap.String("type", topic), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.log.Warn("broadcast queue full, dropping event", zap.String("type", topic))
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		_ = c.Conn.Close()
	}()
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients only listen; reads keep the connection alive.
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug("read error", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs handles websocket requests from the peer
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	// Browsers cannot set headers on a websocket handshake, so the token
	// travels in the query string.
	tokenString := c.Query("token")
	if tokenString == "" {
		hub.log.Debug("connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	subject, err := access.ParseToken(secret, tokenString)
	if err != nil {
		hub.log.Debug("connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if subject.Role == "" {
		hub.log.Debug("connection rejected: no role", zap.String("email", subject.Email))
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256), Subject: subject}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
