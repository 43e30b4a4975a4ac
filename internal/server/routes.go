package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/protocol"
	"github.com/zeusync/ardice/internal/table"
)

func (s *Server) routes() *gin.Engine {
	if s.cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.health)
	router.GET("/ws", s.handleWebSocket)

	v1 := router.Group("/api/v1")
	{
		tables := v1.Group("/tables/:id")
		tables.GET("", s.getTable)
		tables.POST("/roll", s.submitSimple(func() table.Event { return table.RollRequested{} }))
		tables.POST("/clear", s.submitSimple(func() table.Event { return table.ClearRequested{} }))
		tables.POST("/events", s.postEvent)
	}

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			log.String("method", c.Request.Method),
			log.String("path", c.FullPath()),
			log.Int("status", c.Writer.Status()),
			log.Duration("took", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tables": s.tables.Len(),
		"peers":  s.PeerCount(),
	})
}

func (s *Server) getTable(c *gin.Context) {
	t, ok := s.tables.Get(c.Param("id"))
	if !ok {
		s.abort(c, 0, ErrTableNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.submitTimeout())
	defer cancel()

	snap, err := t.Snapshot(ctx)
	if err != nil {
		s.abort(c, 0, err)
		return
	}
	c.JSON(http.StatusOK, protocol.SnapshotPayloadOf(t.ID(), snap))
}

// submitSimple serves the payload-less shortcuts. They only act on tables that
// already exist.
func (s *Server) submitSimple(event func() table.Event) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.tables.Get(c.Param("id"))
		if !ok {
			s.abort(c, 0, ErrTableNotFound)
			return
		}
		s.submit(c, t, 0, event())
	}
}

// postEvent accepts any inbound envelope, creating the table if needed.
func (s *Server) postEvent(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		s.abort(c, 0, err)
		return
	}
	env, err := protocol.Decode(data)
	if err != nil {
		s.abort(c, 0, err)
		return
	}
	ev, err := env.Event()
	if err != nil {
		s.abort(c, env.Seq, err)
		return
	}
	t, err := s.tables.GetOrCreate(c.Param("id"))
	if err != nil {
		s.abort(c, env.Seq, err)
		return
	}
	s.submit(c, t, env.Seq, ev)
}

func (s *Server) submit(c *gin.Context, t *table.Table, seq uint64, ev table.Event) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.submitTimeout())
	defer cancel()

	cmds, err := t.Submit(ctx, seq, ev)
	if err != nil {
		s.abort(c, seq, err)
		return
	}
	frames, err := protocol.EncodeBatch(table.Batch{Table: t.ID(), Seq: seq, Commands: cmds})
	if err != nil {
		s.abort(c, seq, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frames": frames})
}

func (s *Server) abort(c *gin.Context, seq uint64, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", log.String("path", c.FullPath()), log.Error(err))
	}
	env := protocol.EncodeError(seq, err)
	switch {
	case errors.Is(err, ErrTableNotFound):
		env = errorFrame(seq, "table_not_found", err)
	case errors.Is(err, ErrMaxTablesReached):
		env = errorFrame(seq, "max_tables", err)
	}
	c.AbortWithStatusJSON(status, env)
}

func errorFrame(seq uint64, code string, err error) protocol.Envelope {
	env, mErr := protocol.New(protocol.TypeError, seq, protocol.ErrorPayload{Code: code, Message: err.Error()})
	if mErr != nil {
		return protocol.EncodeError(seq, err)
	}
	return env
}

func statusOf(err error) int {
	switch protocol.ErrorCode(err) {
	case "invalid_frame", "unknown_type", "invalid_placement":
		return http.StatusBadRequest
	case "session_paused", "registry_full":
		return http.StatusConflict
	case "table_closed":
		return http.StatusGone
	}
	switch {
	case errors.Is(err, ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMaxTablesReached):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
