package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/protocol"
)

// QUIC peers speak newline-delimited JSON envelopes on a bidirectional
// stream. The first line must be a join frame naming the table.

const (
	quicNoError       quic.ApplicationErrorCode = 0
	quicProtocolError quic.ApplicationErrorCode = 1
	quicStreamClosed  quic.StreamErrorCode      = 0

	joinTimeout = 10 * time.Second
)

func (s *Server) acceptQUIC(ctx context.Context) error {
	s.logger.Debug("QUIC acceptor started")
	defer s.logger.Debug("QUIC acceptor stopped")

	for {
		conn, err := s.quicListener.Accept(ctx)
		if err != nil {
			if errors.Is(err, quic.ErrServerClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Error("Failed to accept QUIC connection", log.Error(err))
			continue
		}

		s.logger.Debug("QUIC connection accepted", log.String("remote_addr", conn.RemoteAddr().String()))
		s.group.Go(func() error {
			s.serveQUIC(ctx, conn)
			return nil
		})
	}
}

// serveQUIC runs one peer per stream the client opens.
func (s *Server) serveQUIC(ctx context.Context, conn *quic.Conn) {
	defer func() { _ = conn.CloseWithError(quicNoError, "") }()
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.serveQUICStream(ctx, conn, stream)
	}
}

func (s *Server) serveQUICStream(ctx context.Context, conn *quic.Conn, stream *quic.Stream) {
	defer func() { _ = stream.Close() }()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)

	_ = stream.SetReadDeadline(time.Now().Add(joinTimeout))
	if !scanner.Scan() {
		return
	}
	_ = stream.SetReadDeadline(time.Time{})

	tableID, err := joinLine(scanner.Bytes())
	if err != nil {
		_ = json.NewEncoder(stream).Encode(protocol.EncodeError(0, err))
		_ = conn.CloseWithError(quicProtocolError, "join required")
		return
	}

	p, err := s.attach(tableID, "quic")
	if err != nil {
		_ = json.NewEncoder(stream).Encode(protocol.EncodeError(0, err))
		return
	}
	defer s.detach(p)

	go s.writeQUIC(stream, p)

	for scanner.Scan() {
		p.handle(ctx, scanner.Bytes())
	}
	if err = scanner.Err(); err != nil {
		p.logger.Debug("QUIC read failed", log.Error(err))
	}
}

func (s *Server) writeQUIC(stream *quic.Stream, p *peer) {
	enc := json.NewEncoder(stream)
	timeout := s.cfg.Server.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	for {
		select {
		case <-p.done:
			stream.CancelRead(quicStreamClosed)
			return
		case env := <-p.out:
			_ = stream.SetWriteDeadline(time.Now().Add(timeout))
			if err := enc.Encode(env); err != nil {
				p.logger.Debug("QUIC write failed", log.Error(err))
				p.close()
				return
			}
		}
	}
}

func joinLine(line []byte) (string, error) {
	env, err := protocol.Decode(line)
	if err != nil {
		return "", err
	}
	return env.Join()
}
