// Package channeltest provides an in-memory server side for the realtime
// channel, for use in tests.
package channeltest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/tablesync/go/internal/realtime/channel"
)

// Request is a frame the client emitted.
type Request struct {
	Event   string
	ID      string
	Payload map[string]any
}

// Dialer hands out Conns and records every dial attempt.
type Dialer struct {
	mu       sync.Mutex
	tokens   []string
	conns    []*Conn
	failures int
	dialed   chan *Conn
}

func NewDialer() *Dialer {
	return &Dialer{dialed: make(chan *Conn, 64)}
}

// FailNext makes the next n dials fail.
func (d *Dialer) FailNext(n int) {
	d.mu.Lock()
	d.failures = n
	d.mu.Unlock()
}

func (d *Dialer) Dial(_ context.Context, token string, handler channel.Handler) (channel.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tokens = append(d.tokens, token)
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	c := &Conn{
		id:       fmt.Sprintf("conn-%d", len(d.conns)+1),
		handler:  handler,
		requests: make(chan Request, 64),
	}
	d.conns = append(d.conns, c)
	d.dialed <- c
	return c, nil
}

// Tokens returns the token of every dial attempt.
func (d *Dialer) Tokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

// Attempts returns how many dials were attempted.
func (d *Dialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

// Latest returns the most recent successful connection.
func (d *Dialer) Latest() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// NextConn waits for the next successful dial.
func (d *Dialer) NextConn(timeout time.Duration) (*Conn, error) {
	select {
	case c := <-d.dialed:
		return c, nil
	case <-time.After(timeout):
		return nil, errors.New("no connection dialed")
	}
}

// Conn is the client side of an in-memory channel. Tests drive the server
// side through Ack, Push and Drop.
type Conn struct {
	id       string
	handler  channel.Handler
	requests chan Request

	mu     sync.Mutex
	closed bool
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Emit(_ context.Context, event, id string, payload any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return channel.ErrClosed
	}

	// Round-trip through JSON like the real channel does.
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	c.requests <- Request{Event: event, ID: id, Payload: decoded}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Closed reports whether the client closed the connection.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Requests exposes emitted requests in order.
func (c *Conn) Requests() <-chan Request { return c.requests }

// NextRequest waits for the next emitted request.
func (c *Conn) NextRequest(timeout time.Duration) (Request, error) {
	select {
	case r := <-c.requests:
		return r, nil
	case <-time.After(timeout):
		return Request{}, errors.New("no request emitted")
	}
}

// Pending returns how many emitted requests have not been read yet.
func (c *Conn) Pending() int { return len(c.requests) }

// Ack answers the request id with payload.
func (c *Conn) Ack(id string, payload any) {
	c.handler.HandleAck(id, mustJSON(payload))
}

// Push sends an unsolicited event.
func (c *Conn) Push(event string, payload any) {
	c.handler.HandlePush(event, mustJSON(payload))
}

// Drop simulates the server side going away.
func (c *Conn) Drop(err error) {
	if err == nil {
		err = errors.New("connection reset by peer")
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.handler.HandleClose(err)
}

func mustJSON(v any) json.RawMessage {
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	if s, ok := v.(string); ok {
		return json.RawMessage(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
