package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/common"
	"github.com/shopwise/dealagent/internal/interfaces"
)

// WebSocketHandler pushes engine events to display clients: task
// progress, terminal results and directory refreshes.
type WebSocketHandler struct {
	logger           arbor.ILogger
	upgrader         websocket.Upgrader
	clients          map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	serverInstanceID string // Clients use this to detect a server restart
}

type wsMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewWebSocketHandler creates the handler and subscribes it to the event
// bus
func NewWebSocketHandler(eventService interfaces.EventService, config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local development
			},
		},
		clients:          make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventTaskProgress,
		interfaces.EventTaskCompleted,
		interfaces.EventTaskFailed,
		interfaces.EventDirectoryRefreshed,
	} {
		et := eventType
		_ = eventService.Subscribe(et, func(ctx context.Context, event interfaces.Event) error {
			h.broadcast(wsMessage{Type: string(et), Payload: event.Payload})
			return nil
		})
	}

	return h
}

// HandleWebSocket upgrades the connection and registers the client
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")

	// Announce the server instance so clients can detect restarts
	h.send(conn, wsMessage{Type: "connected", Payload: map[string]string{
		"server_instance_id": h.serverInstanceID,
	}})

	// Reader loop exists only to detect disconnect
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) broadcast(msg wsMessage) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, msg)
	}
}

// send serializes writes per connection; gorilla connections do not
// support concurrent writers.
func (h *WebSocketHandler) send(conn *websocket.Conn, msg wsMessage) {
	h.mu.RLock()
	writeMu, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	writeMu.Lock()
	err := conn.WriteJSON(msg)
	writeMu.Unlock()

	if err != nil {
		h.removeClient(conn)
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
}
