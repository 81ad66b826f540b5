package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// StatusEvent is the wire format of one broadcast status transition
type StatusEvent struct {
	Type        string    `json:"type"`
	ServiceID   uint      `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	At          time.Time `json:"at"`
}

const statusFeedWriteWait = 10 * time.Second

// StatusFeedHandler pushes service status transitions to subscribed
// WebSocket clients (status pages, dashboards). A slow or dead client is
// dropped rather than allowed to block the broadcast.
type StatusFeedHandler struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
}

// NewStatusFeedHandler creates a new status feed handler
func NewStatusFeedHandler() *StatusFeedHandler {
	return &StatusFeedHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Feed carries public status page data only
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// SetupRoutes configures WebSocket routes
func (h *StatusFeedHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/status", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and keeps it registered until
// the client goes away.
func (h *StatusFeedHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	log.Printf("Status feed client connected from %s", r.RemoteAddr)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		log.Printf("Status feed client disconnected")
	}()

	// Clients only listen; the read loop exists to detect disconnects
	// and answer control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Status feed read error: %v", err)
			}
			return
		}
	}
}

// Broadcast sends one transition to every connected client. Intended to
// be registered as the status propagator's transition observer.
func (h *StatusFeedHandler) Broadcast(service *database.Service, status database.ServiceStatus, message string) {
	event := StatusEvent{
		Type:        "status_transition",
		ServiceID:   service.ID,
		ServiceName: service.Name,
		Status:      string(status),
		Message:     message,
		At:          time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.SetWriteDeadline(time.Now().Add(statusFeedWriteWait)); err != nil {
			h.drop(conn)
			continue
		}
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("Failed to broadcast status event: %v", err)
			h.drop(conn)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *StatusFeedHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// drop removes and closes a failed connection; caller holds the lock
func (h *StatusFeedHandler) drop(conn *websocket.Conn) {
	delete(h.clients, conn)
	conn.Close()
}
