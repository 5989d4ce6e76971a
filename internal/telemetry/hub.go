package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// MaxConnectionsPerIP bounds concurrent console WebSocket subscribers
// from a single source.
const MaxConnectionsPerIP = 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("telemetry: websocket connection rejected from origin %q", origin)
		return false
	},
}

type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// Hub broadcasts channel/mixer snapshots to every connected console
// client (spec §6, adapted from this codebase's WebSocketHub).
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*wsClient

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn

	perIP map[string]int
}

// NewHub creates a Hub. Call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		perIP:      make(map[string]int),
	}
}

// Run services the hub's channels until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			h.perIP[client.ip]++
			count := len(h.clients)
			h.mu.Unlock()
			SetConsoleConnections(count)
			log.Printf("telemetry: client connected from %s (%d total)", client.ip, count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				h.perIP[client.ip]--
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			SetConsoleConnections(count)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					go func(c *websocket.Conn) { h.unregister <- c }(conn)
				}
			}
			h.mu.RUnlock()

		case <-stop:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast JSON-encodes event/data and fans it out to every client.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{"event": event, "data": data}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
		log.Printf("telemetry: broadcast channel full, dropping %s snapshot", event)
	}
}

// ServeWS upgrades r to a WebSocket connection and registers it with the
// hub, enforcing MaxConnectionsPerIP.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)

	h.mu.RLock()
	current := h.perIP[ip]
	h.mu.RUnlock()
	if current >= MaxConnectionsPerIP {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("telemetry: websocket upgrade failed: %v", err)
		return
	}
	h.register <- &wsClient{conn: conn, ip: ip}
}
