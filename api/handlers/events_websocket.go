package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	clientBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

type eventClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// EventHub pushes progress events to every connected WebSocket client. It is
// registered with the notifier as a sink.
type EventHub struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	clients map[*eventClient]struct{}
}

// NewEventHub creates an empty hub
func NewEventHub(logger *zap.Logger) *EventHub {
	return &EventHub{
		logger:  logger,
		clients: make(map[*eventClient]struct{}),
	}
}

func (h *EventHub) Name() string { return "websocket" }

// Handle queues the event for every client. Clients whose buffer is full
// miss the event.
func (h *EventHub) Handle(event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("event dropped for %d slow clients", dropped)
	}
	return nil
}

// Clients returns the number of connected clients
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS handles GET /api/ws
func (h *EventHub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	client := &eventClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	h.register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client", client.id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	go h.writePump(client)
	h.readPump(client)

	h.unregister(client)
	h.logger.Info("WebSocket client disconnected", zap.String("client", client.id))
}

// Close disconnects every client
func (h *EventHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*eventClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		close(client.send)
	}
}

func (h *EventHub) register(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *EventHub) unregister(client *eventClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		close(client.send)
	}
}

// readPump drains client messages so pongs are processed, until the
// connection fails
func (h *EventHub) readPump(client *eventClient) {
	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writePump(client *eventClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Failed to send event", zap.String("client", client.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
