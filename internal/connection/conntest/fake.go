// Package conntest provides in-memory fakes for the connection package.
package conntest

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/1ureka/matchlink/internal/connection"
)

// ErrClosed is returned by a FakeConn after Close.
var ErrClosed = errors.New("conntest: connection closed")

// FakeConn is a scriptable socket. Frames pushed with Push are returned by
// ReadMessage; Drop ends the read loop with a close frame.
type FakeConn struct {
	in     chan []byte
	closeC chan int

	mu     sync.Mutex
	writes [][]byte
	closed bool
	done   chan struct{}
}

// NewFakeConn creates an open FakeConn.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		in:     make(chan []byte, 64),
		closeC: make(chan int, 1),
		done:   make(chan struct{}),
	}
}

// Push queues an inbound text frame.
func (c *FakeConn) Push(data string) {
	c.in <- []byte(data)
}

// Drop makes the peer close the socket with code.
func (c *FakeConn) Drop(code int) {
	select {
	case c.closeC <- code:
	default:
	}
}

// ReadMessage implements connection.Conn.
func (c *FakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case code := <-c.closeC:
		return 0, nil, &websocket.CloseError{Code: code}
	case <-c.done:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

// WriteMessage implements connection.Conn. Only text frames are recorded.
func (c *FakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if messageType == websocket.TextMessage {
		c.writes = append(c.writes, append([]byte(nil), data...))
	}
	return nil
}

// Close implements connection.Conn.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Writes returns the text frames written so far.
func (c *FakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

// FakeDialer hands out FakeConns. When Gate is set, Dial blocks until a
// value is received on it, keeping the manager in Connecting.
type FakeDialer struct {
	Gate chan struct{}
	Err  error

	mu    sync.Mutex
	conns []*FakeConn
	dials int
}

// Dial implements connection.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, url string) (connection.Conn, error) {
	d.mu.Lock()
	d.dials++
	gate, err := d.Gate, d.Err
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	c := NewFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// Dials returns the number of Dial calls.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Last returns the most recent connection, or nil.
func (d *FakeDialer) Last() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
