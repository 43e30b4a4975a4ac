// Package client is a Go SDK for AR dice tables. It plays the role of the
// device: it reports surfaces, places and rolls dice, and receives the render
// commands every participant of the table gets.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/core/spatial"
	"github.com/zeusync/ardice/internal/protocol"
	"github.com/zeusync/ardice/internal/table"
)

// ALPN must match the server's QUIC application protocol.
const ALPN = "ardice"

type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportQUIC      Transport = "quic"
)

// Config holds configuration for the client
type Config struct {
	// Addr is a base URL such as http://127.0.0.1:8080 for websocket, or
	// host:port for QUIC.
	Addr      string
	Table     string
	Transport Transport

	DialTimeout time.Duration
	FrameBuffer int

	// TLSConfig is used for QUIC. Nil trusts any certificate, which suits the
	// server's self-signed one.
	TLSConfig *tls.Config

	Logger log.Log
}

func DefaultClientConfig() Config {
	return Config{
		Addr:        "http://127.0.0.1:8080",
		Table:       "default",
		Transport:   TransportWebSocket,
		DialTimeout: 10 * time.Second,
		FrameBuffer: 256,
	}
}

// Client is one connection to a table.
type Client struct {
	conn   frameConn
	frames chan protocol.Envelope
	seq    atomic.Uint64

	writeMu sync.Mutex
	closed  int32 // atomic bool
	done    chan struct{}
	readErr error

	config Config
	logger log.Log
}

// Dial connects to the table named in cfg and starts receiving frames.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Addr == "" || cfg.Table == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "addr and table are required")
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportWebSocket
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	var (
		conn frameConn
		err  error
	)
	switch cfg.Transport {
	case TransportWebSocket:
		conn, err = dialWebSocket(dialCtx, cfg.Addr, cfg.Table)
	case TransportQUIC:
		tlsConfig := cfg.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{
				InsecureSkipVerify: true, // self-signed server certificate
				NextProtos:         []string{ALPN},
				MinVersion:         tls.VersionTLS13,
			}
		}
		conn, err = dialQUIC(dialCtx, cfg.Addr, cfg.Table, tlsConfig)
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:   conn,
		frames: make(chan protocol.Envelope, cfg.FrameBuffer),
		done:   make(chan struct{}),
		config: cfg,
		logger: cfg.Logger.With(
			log.String("component", "client"),
			log.String("table", cfg.Table),
			log.String("transport", string(cfg.Transport))),
	}
	go c.readLoop()

	c.logger.Debug("Connected", log.String("addr", cfg.Addr))
	return c, nil
}

// Send writes one frame and returns the seq it was given. Frames the server
// sends in response carry the same seq.
func (c *Client) Send(typ string, payload any) (uint64, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return 0, ErrClientClosed
	}
	seq := c.seq.Add(1)
	env, err := protocol.New(typ, seq, payload)
	if err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err = c.conn.write(env); err != nil {
		return 0, errors.Wrapf(err, "send %s", typ)
	}
	return seq, nil
}

// Frames delivers every frame received, in order. It is closed when the
// connection ends.
func (c *Client) Frames() <-chan protocol.Envelope {
	return c.frames
}

// Next waits for the next frame. Error frames are returned as ErrServerError
// alongside the frame itself.
func (c *Client) Next(ctx context.Context) (protocol.Envelope, error) {
	select {
	case env, ok := <-c.frames:
		if !ok {
			if c.readErr != nil {
				return protocol.Envelope{}, c.readErr
			}
			return protocol.Envelope{}, ErrClientClosed
		}
		if env.Type == protocol.TypeError {
			var p protocol.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			return env, errors.Wrapf(ErrServerError, "%s: %s", p.Code, p.Message)
		}
		return env, nil
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (c *Client) DetectSurface(anchorID string, center spatial.Vec2, extent spatial.Extent) (uint64, error) {
	return c.Send(string(table.EventSurfaceDetected), protocol.SurfacePayload{AnchorID: anchorID, Center: center, Extent: extent})
}

func (c *Client) UpdateSurface(anchorID string, center spatial.Vec2, extent spatial.Extent) (uint64, error) {
	return c.Send(string(table.EventSurfaceUpdated), protocol.SurfacePayload{AnchorID: anchorID, Center: center, Extent: extent})
}

func (c *Client) RemoveSurface(anchorID string) (uint64, error) {
	return c.Send(string(table.EventSurfaceRemoved), protocol.AnchorPayload{AnchorID: anchorID})
}

// Place reports a tap that hit a plane at hit. anchorID may be empty.
func (c *Client) Place(anchorID string, hit protocol.Vec3) (uint64, error) {
	return c.Send(string(table.EventPlaceRequested), protocol.PlacePayload{AnchorID: anchorID, Hit: hit})
}

// PlaceWithHalfHeight is Place for a model whose half-height differs from the
// table default.
func (c *Client) PlaceWithHalfHeight(anchorID string, hit protocol.Vec3, halfHeight float64) (uint64, error) {
	return c.Send(string(table.EventPlaceRequested), protocol.PlacePayload{AnchorID: anchorID, Hit: hit, HalfHeight: &halfHeight})
}

// Roll rolls one die, or every die when objectID is empty.
func (c *Client) Roll(objectID string) (uint64, error) {
	return c.Send(string(table.EventRollRequested), protocol.RollPayload{ObjectID: objectID})
}

func (c *Client) Clear() (uint64, error) {
	return c.Send(string(table.EventClearRequested), nil)
}

func (c *Client) Pause() (uint64, error) {
	return c.Send(string(table.EventPauseRequested), nil)
}

func (c *Client) Resume() (uint64, error) {
	return c.Send(string(table.EventResumeRequested), nil)
}

func (c *Client) RequestSnapshot() (uint64, error) {
	return c.Send(protocol.TypeSnapshotRequest, nil)
}

// Close disconnects. Frames already received stay readable from Frames.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	close(c.done)

	c.writeMu.Lock()
	err := c.conn.close()
	c.writeMu.Unlock()

	c.logger.Debug("Client closed")
	return err
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		env, err := c.conn.read()
		if err != nil {
			if atomic.LoadInt32(&c.closed) == 0 {
				c.readErr = err
				c.logger.Debug("Read failed", log.Error(err))
			}
			return
		}
		select {
		case c.frames <- env:
		case <-c.done:
			return
		}
	}
}
