package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 64 * 1024
)

// Session is one websocket connection of an authenticated user.
type Session struct {
	hub     *Hub
	conn    *websocket.Conn
	info    ConnInfo
	ctx     context.Context
	send    chan []byte
	done    chan struct{}
	limiter ratelimit.Limiter

	// topics is guarded by hub.mu.
	topics map[string]struct{}

	closeOnce sync.Once
}

func newSession(ctx context.Context, hub *Hub, conn *websocket.Conn, info ConnInfo, buffer, perSecond int) *Session {
	limiter := ratelimit.NewUnlimited()
	if perSecond > 0 {
		limiter = ratelimit.New(perSecond)
	}
	return &Session{
		hub:     hub,
		conn:    conn,
		info:    info,
		ctx:     ctx,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		limiter: limiter,
		topics:  make(map[string]struct{}),
	}
}

// UserID returns the authenticated user of the session.
func (s *Session) UserID() int {
	return s.info.UserID
}

func (s *Session) enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Send queues an event for this session only.
func (s *Session) Send(event models.Event) {
	s.hub.deliver([]*Session{s}, event)
}

// Close unregisters the session and closes the connection. It is safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.Unregister(s)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()
	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				jww.DEBUG.Printf("ws write conn=%s: %v", s.info.ConnID, err)
				s.info.publishLifecycle(s.ctx, "ws_error", err.Error())
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump feeds inbound frames to handle until the connection fails. It
// returns the close reason.
func (s *Session) readPump(handle func(s *Session, raw []byte)) string {
	s.conn.SetReadLimit(maxInboundSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.info.publishLifecycle(s.ctx, "ws_error", err.Error())
			}
			return err.Error()
		}
		s.limiter.Take()
		observability.IncWSEvent("in", "frame")
		handle(s, raw)
	}
}
