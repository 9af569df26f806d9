package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/model"
)

const (
	clientBuffer = 16
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeatureEvent is the message pushed to websocket clients for each new record.
type FeatureEvent struct {
	Type    string              `json:"type"`
	Record  model.FeatureRecord `json:"record"`
	Vector  model.FeatureVector `json:"vector"`
	Version int                 `json:"vectorVersion"`
}

// Hub fans feature records out to connected websocket clients. A client that
// cannot keep up loses messages rather than slowing the others down.
type Hub struct {
	log logrus.FieldLogger

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		log:     log.WithField("component", "ws"),
		clients: make(map[chan []byte]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends rec to every connected client.
func (h *Hub) Broadcast(rec model.FeatureRecord, vector model.FeatureVector) {
	msg, err := json.Marshal(FeatureEvent{Type: "feature", Record: rec, Vector: vector, Version: model.FeatureVectorVersion})
	if err != nil {
		h.log.WithError(err).Error("Error marshaling feature event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for send := range h.clients {
		select {
		case send <- msg:
		default:
			h.log.Debug("Dropping feature event for a slow client")
		}
	}
}

// ServeWS upgrades the request and streams feature events until the client
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[send] = struct{}{}
	h.mu.Unlock()

	closed := make(chan struct{})
	defer func() {
		h.mu.Lock()
		delete(h.clients, send)
		h.mu.Unlock()
		conn.Close()
	}()

	go h.readPump(conn, closed)
	h.writePump(conn, send, closed)
}

// readPump discards client messages and reports when the connection closes.
func (h *Hub) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, send <-chan []byte, closed <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
