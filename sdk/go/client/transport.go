package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/ardice/internal/protocol"
)

// frameConn carries envelopes in both directions. write is only ever called
// under the client's write lock.
type frameConn interface {
	write(env protocol.Envelope) error
	read() (protocol.Envelope, error)
	close() error
}

type wsConn struct {
	conn *websocket.Conn
}

func dialWebSocket(ctx context.Context, baseURL, table string) (*wsConn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"table": {table}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", u.String())
	}
	return &wsConn{conn: conn}, nil
}

func (w *wsConn) write(env protocol.Envelope) error {
	return w.conn.WriteJSON(env)
}

func (w *wsConn) read() (protocol.Envelope, error) {
	var env protocol.Envelope
	err := w.conn.ReadJSON(&env)
	return env, err
}

func (w *wsConn) close() error {
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}

type quicConn struct {
	conn    *quic.Conn
	stream  *quic.Stream
	enc     *json.Encoder
	scanner *bufio.Scanner
	once    sync.Once
}

func dialQUIC(ctx context.Context, addr, table string, tlsConfig *tls.Config) (*quicConn, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, errors.Wrap(err, "open stream")
	}

	q := &quicConn{
		conn:    conn,
		stream:  stream,
		enc:     json.NewEncoder(stream),
		scanner: bufio.NewScanner(stream),
	}
	q.scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	join, err := protocol.New(protocol.TypeJoin, 0, protocol.JoinPayload{Table: table})
	if err != nil {
		_ = q.close()
		return nil, err
	}
	if err = q.write(join); err != nil {
		_ = q.close()
		return nil, errors.Wrap(err, "join")
	}
	return q, nil
}

func (q *quicConn) write(env protocol.Envelope) error {
	return q.enc.Encode(env)
}

func (q *quicConn) read() (protocol.Envelope, error) {
	if !q.scanner.Scan() {
		if err := q.scanner.Err(); err != nil {
			return protocol.Envelope{}, err
		}
		return protocol.Envelope{}, ErrClientClosed
	}
	var env protocol.Envelope
	if err := json.Unmarshal(q.scanner.Bytes(), &env); err != nil {
		return protocol.Envelope{}, errors.Wrap(err, "decode frame")
	}
	return env, nil
}

func (q *quicConn) close() error {
	var err error
	q.once.Do(func() {
		_ = q.stream.Close()
		err = q.conn.CloseWithError(0, "")
	})
	return err
}
