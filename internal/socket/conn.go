// Package socket carries wire frames over a WebSocket connection.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matheus3301/gigchat/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	defaultPong    = 60 * time.Second
	maxMessageSize = 8 << 20
)

// ErrClosed is returned by operations on a connection that was closed locally.
var ErrClosed = errors.New("socket closed")

// ParseError reports an unreadable text message. The link stays usable.
type ParseError struct {
	Raw []byte
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Conn is a bidirectional frame stream. ReadFrame must be called from a single
// goroutine; WriteFrame and Ping are safe for concurrent use.
type Conn interface {
	ReadFrame() (wire.Frame, error)
	WriteFrame(wire.Frame) error
	Ping() error
	Close() error
}

// Dialer opens connections to a realtime endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	Header   http.Header
	PongWait time.Duration
}

// Dial connects to endpoint (ws:// or wss://).
func (d WebSocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return NewConn(ws, d.PongWait), nil
}

type wsConn struct {
	ws       *websocket.Conn
	pongWait time.Duration

	wmu       sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an established websocket. The read deadline is extended on
// every frame, ping and pong; a silent peer times out after pongWait.
func NewConn(ws *websocket.Conn, pongWait time.Duration) Conn {
	if pongWait <= 0 {
		pongWait = defaultPong
	}
	c := &wsConn{ws: ws, pongWait: pongWait, closed: make(chan struct{})}
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		c.wmu.Lock()
		defer c.wmu.Unlock()
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
	return c
}

func (c *wsConn) ReadFrame() (wire.Frame, error) {
	for {
		typ, msg, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return wire.Frame{}, ErrClosed
			default:
			}
			return wire.Frame{}, err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		if typ != websocket.TextMessage {
			continue
		}
		f, err := wire.ParseFrame(msg)
		if err != nil {
			return wire.Frame{}, &ParseError{Raw: msg, Err: err}
		}
		return f, nil
	}
}

func (c *wsConn) WriteFrame(f wire.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// Close sends a normal close frame and tears down the socket. Safe to call
// more than once.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}
