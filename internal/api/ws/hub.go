package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // kiosk frontends are served from another origin
	},
}

// Client is one connected kiosk or dashboard socket.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	kioskID string // optional filter
}

type outbound struct {
	kioskID string
	payload []byte
}

// Hub fans punch results out to connected kiosk screens and dashboards.
// A client connected with ?kiosk_id= receives only that kiosk's punches;
// dashboards connect without a filter and see everything.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "kiosk", client.kioskID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			observability.WSConnections.Dec()
			slog.Debug("ws client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.kioskID != "" && client.kioskID != msg.kioskID {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Client buffer full, disconnect
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastPunch delivers a worker punch result to interested clients.
func (h *Hub) BroadcastPunch(result models.PunchResult) {
	msgType := "punch_rejected"
	if result.Accepted {
		msgType = "punch_accepted"
	}

	frame := dto.WSPunch{
		Type:    msgType,
		KioskID: result.KioskID,
		Data: dto.PunchResponse{
			EventID:      result.EventID,
			EmployeeID:   result.EmployeeID,
			EmployeeName: result.EmployeeName,
			Timestamp:    result.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Kind:         string(result.Kind),
			Verification: string(result.Verification),
			Confidence:   result.Confidence,
			Accepted:     result.Accepted,
			Message:      result.Message,
		},
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		slog.Error("marshal ws punch", "error", err)
		return
	}
	h.broadcast <- outbound{kioskID: result.KioskID, payload: payload}
}

// HandleWS handles WebSocket upgrade requests.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 64),
		kioskID: c.Query("kiosk_id"),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		// Clients don't send anything; the loop detects disconnects.
	}
}
