package api

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"multichat/app/service/broadcast"
	"multichat/app/util/metrics"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const writeWait = 10 * time.Second

var ErrRateLimited = errors.New("too many messages, slow down")

// socket serialises writes to one websocket connection.
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *socket) close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (s *Server) serveSocket(c *websocket.Conn) {
	conn := &socket{conn: c}
	roomID := c.Params("room")

	r, err := s.registry.Get(roomID)
	if err != nil {
		_ = s.hub.Send(conn, broadcast.NewError(err.Error()))
		conn.close(websocket.ClosePolicyViolation, "room not found")
		return
	}

	c.SetReadLimit(s.cfg.Server.ReadLimit)
	limiter := rate.NewLimiter(rate.Limit(s.cfg.Server.InboundRate), s.cfg.Server.InboundBurst)

	s.hub.Subscribe(r.ID, conn)
	metrics.Connections.Inc()
	defer func() {
		s.hub.Unsubscribe(r.ID, conn)
		metrics.Connections.Dec()
	}()

	slog.Debug("Websocket connected",
		"room_id", r.ID,
		"ip", c.IP(),
	)

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Websocket read failed",
					"room_id", r.ID,
					"error", err,
				)
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		if !limiter.Allow() {
			_ = s.hub.Send(conn, broadcast.NewError(ErrRateLimited.Error()))
			continue
		}

		s.engine.Handle(r, conn, data)
	}
}
