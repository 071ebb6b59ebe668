package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"algojudge/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	authWait   = 10 * time.Second

	sendBuffer     = 64
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin frontends connect directly; the auth frame scopes
		// what a session can receive.
		return true
	},
}

type session struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	// done stops the write pump; the send channel itself is never
	// closed so concurrent broadcasts cannot hit a closed channel.
	done chan struct{}
}

// authFrame is the first message a client must send after connecting.
type authFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Handle upgrades the connection, waits for the auth frame, and runs the
// session pumps until disconnect.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.L().Warn("ws upgrade failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(authWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}

	var auth authFrame
	if err := json.Unmarshal(raw, &auth); err != nil || auth.Type != "auth" || auth.UserID == "" {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "auth frame required"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	s := &session{
		hub:    h,
		conn:   conn,
		userID: auth.UserID,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	h.add(s)

	go s.writePump()
	go s.readPump()
}

// readPump discards inbound frames and keeps the read deadline fresh via
// pongs. Its exit is the session's disconnect signal.
func (s *session) readPump() {
	defer func() {
		s.hub.remove(s)
		close(s.done)
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.L().Debug("ws read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
