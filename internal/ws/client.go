package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Outbound buffer per session; a session that falls this far behind is
	// dropped rather than blocking fan-out.
	sendBufferSize = 64
)

// Session is one live authenticated connection belonging to a user.
type Session struct {
	id     uuid.UUID
	userID uuid.UUID
	hub    *Hub
	conn   *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewSession(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Session {
	return &Session{
		id:     uuid.New(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// offer enqueues data without blocking; false means the buffer is full or
// the session is closed. The lock orders offers against closeSend, so a
// sender still holding a hub snapshot that includes an unregistered
// session gets false instead of a send on a closed channel.
func (s *Session) offer(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *Session) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// ReadPump pumps frames from the connection and treats every inbound frame
// and pong as a heartbeat. It owns all reads on the connection.
func (s *Session) ReadPump() {
	defer func() {
		s.hub.Unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.hub.presence.Touch(context.Background(), s.userID)
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.logger.Debug().Err(err).Str("user_id", s.userID.String()).Msg("session closed")
			}
			break
		}
		s.hub.presence.Touch(context.Background(), s.userID)
	}
}

// WritePump pumps queued payloads to the connection. It owns all writes on
// the connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
