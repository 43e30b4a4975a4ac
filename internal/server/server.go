// Package server exposes tables over HTTP, websocket and QUIC.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/ardice/internal/config"
	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/table"
)

// Server hosts the table registry and every transport that feeds it.
type Server struct {
	cfg    config.Config
	logger log.Log
	tables *Registry

	engine       *gin.Engine
	httpServer   *http.Server
	listener     net.Listener
	quicListener *quic.Listener

	// Peer management
	peers     sync.Map // map[string]*peer
	peerCount int64    // atomic

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(cfg config.Config, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With(log.String("component", "server")),
	}
	s.tables = NewRegistry(cfg.Server.MaxTables, table.Config{
		RollDuration:      cfg.Table.RollDuration,
		RollOnPlace:       cfg.Table.RollOnPlace,
		DefaultHalfHeight: cfg.Table.DefaultHalfHeight,
		MaxObjects:        cfg.Table.MaxObjects,
		RollSeed:          cfg.Table.RollSeed,
	}, logger)
	s.engine = s.routes()

	s.logger.Info("Server created",
		log.String("listen_addr", cfg.Server.ListenAddr),
		log.String("quic_addr", cfg.Server.QUICAddr),
		log.Int("max_tables", cfg.Server.MaxTables))

	return s
}

// Handler returns the HTTP handler, for mounting in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Tables() *Registry {
	return s.tables
}

// Start binds every configured listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Server.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return err
	}
	s.listener = listener

	if s.cfg.Server.QUICAddr != "" {
		tlsConfig, err := generateTLSConfig()
		if err != nil {
			_ = listener.Close()
			atomic.StoreInt32(&s.running, 0)
			return err
		}
		ql, err := quic.ListenAddr(s.cfg.Server.QUICAddr, tlsConfig, &quic.Config{
			MaxIdleTimeout:  time.Minute,
			KeepAlivePeriod: 15 * time.Second,
		})
		if err != nil {
			_ = listener.Close()
			atomic.StoreInt32(&s.running, 0)
			s.logger.Error("Failed to start QUIC listener", log.Error(err))
			return err
		}
		s.quicListener = ql
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.group = g

	g.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.quicListener != nil {
		g.Go(func() error { return s.acceptQUIC(gctx) })
	}
	if idle := s.cfg.Server.TableIdleTimeout; idle > 0 {
		g.Go(func() error { return s.sweepTables(gctx, idle) })
	}

	fields := []log.Field{log.String("addr", listener.Addr().String())}
	if s.quicListener != nil {
		fields = append(fields, log.String("quic_addr", s.quicListener.Addr().String()))
	}
	s.logger.Info("Server started", fields...)

	return nil
}

// Stop shuts every listener down, disconnects peers and closes all tables.
// A stopped server cannot be started again.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)

	s.logger.Info("Stopping server")

	s.cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = err
		s.logger.Warn("HTTP shutdown incomplete", log.Error(err))
	}
	if s.quicListener != nil {
		_ = s.quicListener.Close()
	}

	s.peers.Range(func(_, value any) bool {
		if p, ok := value.(*peer); ok {
			p.close()
		}
		return true
	})

	s.tables.CloseAll()

	if err := s.group.Wait(); err != nil {
		s.logger.Error("Server worker failed", log.Error(err))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	s.logger.Info("Server stopped")
	return shutdownErr
}

// Addr returns the bound HTTP address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// QUICAddr returns the bound QUIC address, or nil when QUIC is disabled.
func (s *Server) QUICAddr() net.Addr {
	if s.quicListener == nil {
		return nil
	}
	return s.quicListener.Addr()
}

func (s *Server) PeerCount() int64 {
	return atomic.LoadInt64(&s.peerCount)
}

// attach opens a peer on the named table and registers it.
func (s *Server) attach(tableID, transport string) (*peer, error) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil, ErrServerClosed
	}
	p := newPeer(tableID, transport, s.cfg.Server.OutboundBuffer, s.submitTimeout(), s.logger)
	t, sub, err := s.tables.Subscribe(tableID, p.onBatch)
	if err != nil {
		return nil, err
	}
	p.joined(t, sub)

	s.peers.Store(p.id, p)
	total := atomic.AddInt64(&s.peerCount, 1)
	p.logger.Info("Peer connected", log.Int64("total_peers", total))
	return p, nil
}

func (s *Server) detach(p *peer) {
	p.close()
	if _, loaded := s.peers.LoadAndDelete(p.id); loaded {
		total := atomic.AddInt64(&s.peerCount, -1)
		p.logger.Info("Peer disconnected", log.Int64("total_peers", total))
	}
}

func (s *Server) submitTimeout() time.Duration {
	if s.cfg.Table.SubmitTimeout > 0 {
		return s.cfg.Table.SubmitTimeout
	}
	return 5 * time.Second
}

func (s *Server) sweepTables(ctx context.Context, idle time.Duration) error {
	interval := s.cfg.Server.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tables.Sweep(idle)
		}
	}
}
