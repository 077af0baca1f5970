package projection

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
	maxMessageSize  = 512
)

// HandleStream handles GET /v1/telemetry/stream. The client receives a
// snapshot right away and then one every stream interval. Messages from
// the client are ignored. Pings go out every nine tenths of the pong wait
// so idle clients stay connected.
func (s *Service) HandleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	slog.Info("Telemetry stream opened", "remote", remote)
	defer slog.Info("Telemetry stream closed", "remote", remote)

	closed := make(chan struct{})
	go readPump(conn, s.pongWait, closed)

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()
	pinger := time.NewTicker((s.pongWait * 9) / 10)
	defer pinger.Stop()

	if err := s.push(conn); err != nil {
		return
	}
	for {
		select {
		case <-ticker.C:
			if err := s.push(conn); err != nil {
				slog.Debug("Telemetry stream write failed", "remote", remote, "error", err)
				return
			}
		case <-pinger.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Debug("Telemetry stream ping failed", "remote", remote, "error", err)
				return
			}
		case <-closed:
			return
		case <-s.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (s *Service) push(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(s.Telemetry())
}

// readPump drains control frames so pings and close frames are handled.
func readPump(conn *websocket.Conn, pongWait time.Duration, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Telemetry stream read error", "error", err)
			}
			return
		}
	}
}
