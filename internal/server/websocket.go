package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// The live channel accepts any origin: cross-origin policy is handled by
// the deployment's edge, not this core.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a gorilla connection to the presence.Conn interface.
// Gorilla allows only one concurrent writer, so writes are serialized
// with a mutex; broadcast passes from different goroutines would
// otherwise interleave frames.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteText(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// closePolicyViolation sends the distinct policy-violation close signal
// (1008) used for rejected tokens, then drops the transport
func (c *wsConn) closePolicyViolation(reason string) {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	_ = c.conn.Close()
}

// handleWebSocket is the live-channel handshake and read loop. The token
// travels as a query parameter; a token that fails the lookup gets the
// policy-violation close and never joins the roster. Once joined, every
// text frame the participant sends is relayed verbatim to all live
// connections, itself included. Any read error (peer disconnect,
// protocol error, network drop) tears the connection down and announces
// the new roster — the client owes no further handshake.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws_upgrade_failed", "err", err)
		return
	}
	conn := &wsConn{conn: raw}

	identity, err := s.auth.Resolve(r.URL.Query().Get("token"))
	if err != nil {
		s.log.Warn("ws_rejected", "err", err)
		conn.closePolicyViolation("invalid token")
		return
	}

	s.hub.Join(conn, identity)
	defer func() {
		s.hub.Leave(conn)
		_ = conn.Close()
	}()

	for {
		mt, payload, err := raw.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.TextMessage {
			s.hub.Relay(payload)
		}
	}
}
