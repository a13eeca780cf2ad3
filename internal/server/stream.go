package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// StreamHandler pushes every published [playback.PlayerState] to websocket clients as JSON text
// frames, starting with the current state. Clients only send control frames.
type StreamHandler struct {
	player   Player
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(player Player, logger *log.Logger) *StreamHandler {
	return &StreamHandler{
		player: player,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]struct{}{},
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *StreamHandler) Routes() []string {
	return []string{"/api/player/stream"}
}

// ServeHTTP upgrades the connection and streams state until either side closes.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.track(conn, true)
	defer h.track(conn, false)

	sub := h.player.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go h.readLoop(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	h.logger.Debug("stream client connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-done:
			return
		case state, ok := <-sub.States():
			if !ok {
				h.close(conn, websocket.CloseGoingAway, "player closed")
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(state); err != nil {
				h.logger.Debug("stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes control frames so pongs and close frames are processed.
func (h *StreamHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream client closed unexpectedly", "error", err)
			}
			return
		}
	}
}

// CloseAll sends a close frame to every connected client.
func (h *StreamHandler) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.close(c, websocket.CloseGoingAway, "server shutting down")
		c.Close()
	}
}

func (h *StreamHandler) close(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (h *StreamHandler) track(conn *websocket.Conn, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if add {
		h.conns[conn] = struct{}{}
		return
	}
	delete(h.conns, conn)
	conn.Close()
}
