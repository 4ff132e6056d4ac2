// Package gateway bridges the engine to the game server. One WebSocket
// connection carries game events in and directives out; a small HTTP API
// exposes session state to operators.
package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The bridge connects server-to-server, not from a browser
		return true
	},
}

// Hub owns the bridge connection to the game server. A new connection
// replaces any previous one; directives pushed while disconnected fail.
type Hub struct {
	authToken string
	logger    zerolog.Logger

	dispatch func(Event)

	mu     sync.RWMutex
	bridge *bridgeConn
}

type bridgeConn struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Events read from the bridge are passed to the
// handler installed with SetHandler.
func NewHub(authToken string, logger zerolog.Logger) *Hub {
	return &Hub{
		authToken: authToken,
		logger:    logger.With().Str("component", "gateway").Logger(),
	}
}

// SetHandler installs the event handler. Must be called before ServeWS
// accepts connections.
func (h *Hub) SetHandler(fn func(Event)) {
	h.dispatch = fn
}

// ServeWS upgrades the bridge connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" {
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.authToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	b := &bridgeConn{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.mu.Lock()
	old := h.bridge
	h.bridge = b
	h.mu.Unlock()

	if old != nil {
		h.logger.Info().Msg("Replacing existing bridge connection")
		old.close()
	}

	metrics.GatewayConnections.Inc()
	h.logger.Info().Str("remote", r.RemoteAddr).Msg("Game server connected")

	go b.writePump()
	go b.readPump()
}

// Connected reports whether a game server bridge is attached.
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bridge != nil
}

// Push sends a directive to the game server.
func (h *Hub) Push(d arena.Directive) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal directive: %w", err)
	}

	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()
	if b == nil {
		return fmt.Errorf("no bridge connection")
	}

	select {
	case b.send <- data:
		metrics.GatewayDirectives.WithLabelValues(d.Type).Inc()
		return nil
	default:
		return fmt.Errorf("bridge send queue full")
	}
}

// Close shuts down the bridge connection if one is attached.
func (h *Hub) Close() {
	h.mu.Lock()
	b := h.bridge
	h.bridge = nil
	h.mu.Unlock()
	if b != nil {
		b.close()
	}
}

func (h *Hub) detach(b *bridgeConn) {
	h.mu.Lock()
	if h.bridge == b {
		h.bridge = nil
	}
	h.mu.Unlock()
	metrics.GatewayConnections.Dec()
	h.logger.Info().Msg("Game server disconnected")
}

func (b *bridgeConn) close() {
	_ = b.conn.Close()
}

// readPump pumps events from the WebSocket connection to the dispatcher
func (b *bridgeConn) readPump() {
	defer func() {
		b.hub.detach(b)
		_ = b.conn.Close()
	}()

	b.conn.SetReadLimit(maxMessageSize)
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				b.hub.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			b.hub.logger.Warn().Err(err).Msg("Malformed event dropped")
			continue
		}

		metrics.GatewayEvents.WithLabelValues(ev.Type).Inc()
		if b.hub.dispatch != nil {
			b.hub.dispatch(ev)
		}
	}
}

// writePump pumps directives from the hub to the WebSocket connection
func (b *bridgeConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = b.conn.Close()
	}()

	for {
		select {
		case message, ok := <-b.send:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = b.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := b.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
