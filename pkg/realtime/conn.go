package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultWriteWait  = 10 * time.Second
	DefaultPingPeriod = 30 * time.Second
	DefaultSendBuffer = 128

	// CloseUnauthorized is sent when a connection presents no valid credential.
	CloseUnauthorized = 4401
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("connection send buffer exceeded")
)

// Conn is one live client connection as seen by the hub and the gateway.
// Implementations must be safe for concurrent use.
type Conn interface {
	ID() string
	// Send enqueues payload for delivery without blocking.
	Send(payload []byte) error
	Close(code int, reason string)
}

// WSOptions tunes a WSConn. Zero values fall back to the defaults.
type WSOptions struct {
	SendBuffer int
	WriteWait  time.Duration
	PingPeriod time.Duration
}

// WSConn wraps a gorilla websocket. Writes go through a buffered queue drained
// by a single goroutine; a client that lets the queue fill up is disconnected.
type WSConn struct {
	id   string
	ws   *websocket.Conn
	opts WSOptions

	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewWSConn(ws *websocket.Conn, opts WSOptions) *WSConn {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = DefaultWriteWait
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = DefaultPingPeriod
	}
	return &WSConn{
		id:     uuid.NewString(),
		ws:     ws,
		opts:   opts,
		send:   make(chan []byte, opts.SendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *WSConn) ID() string { return c.id }

// Start launches the write loop. It must be called exactly once.
func (c *WSConn) Start() {
	go c.writeLoop()
}

func (c *WSConn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferFull
	}
}

// Close sends a close frame with code and reason and tears the socket down.
// Codes that may not appear on the wire skip the frame. Only the first call
// has any effect.
func (c *WSConn) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)

		if sendableCloseCode(code) {
			deadline := time.Now().Add(c.opts.WriteWait)
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		}
		_ = c.ws.Close()
	})
}

// abort drops the socket without a close frame, after a failed write.
func (c *WSConn) abort() {
	c.Close(websocket.CloseAbnormalClosure, "")
}

// sendableCloseCode reports whether code may be carried by a close frame.
// 1005, 1006 and 1015 are reserved for local reporting (RFC 6455 7.4.1).
func sendableCloseCode(code int) bool {
	switch code {
	case websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return false
	}
	return code >= websocket.CloseNormalClosure && code < 5000
}

// Done is closed once the connection is closed.
func (c *WSConn) Done() <-chan struct{} {
	return c.closed
}

// ReadMessage blocks for the next inbound data frame. Pongs extend the read
// deadline so a silent peer times out after two ping periods.
func (c *WSConn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// KeepAlive installs the pong handler and initial read deadline.
func (c *WSConn) KeepAlive() {
	wait := 2 * c.opts.PingPeriod
	_ = c.ws.SetReadDeadline(time.Now().Add(wait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wait))
	})
}

func (c *WSConn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.abort()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.abort()
				return
			}
		}
	}
}

func (c *WSConn) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
