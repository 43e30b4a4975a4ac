package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zeusync/ardice/internal/core/observability/log"
)

const (
	defaultTable = "default"
	pingInterval = 30 * time.Second
	maxFrameSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// AR clients are native apps, not browser pages.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket joins the table named by the "table" query parameter.
func (s *Server) handleWebSocket(c *gin.Context) {
	tableID := c.Query("table")
	if tableID == "" {
		tableID = defaultTable
	}

	// Fail before the upgrade so the client gets a plain HTTP error.
	p, err := s.attach(tableID, "websocket")
	if err != nil {
		s.abort(c, 0, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.detach(p)
		s.logger.Warn("WebSocket upgrade failed", log.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameSize)

	go s.writeWebSocket(conn, p)

	defer s.detach(p)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Debug("WebSocket read failed", log.Error(err))
			}
			return
		}
		p.handle(c.Request.Context(), data)
	}
}

func (s *Server) writeWebSocket(conn *websocket.Conn, p *peer) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	timeout := s.cfg.Server.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	for {
		select {
		case <-p.done:
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case env := <-p.out:
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := conn.WriteJSON(env); err != nil {
				p.logger.Debug("WebSocket write failed", log.Error(err))
				p.close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		}
	}
}
