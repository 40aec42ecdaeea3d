// Package wstest provides an in-memory websocket.WebSocketConn for tests.
package wstest

import (
	"context"
	"errors"
	"net/http"
	"sync"

	gwebsocket "github.com/gorilla/websocket"

	"github.com/go-gotop/bnconnector/websocket"
)

var ErrClosed = errors.New("wstest: connection closed")

// Message is one frame written by the client.
type Message struct {
	Type int
	Data []byte
}

type frame struct {
	typ    int
	data   []byte
	code   int
	reason string
}

// FakeConn plays the server side of a socket. Frames pushed with Push, PushPing and
// ServerClose are returned by ReadMessage in order.
type FakeConn struct {
	mu          sync.Mutex
	endpoint    string
	header      http.Header
	dialed      bool
	written     []Message
	pingHandler func(string) error
	pongHandler func(string) error

	// DialErr fails Dial when set.
	DialErr error
	// DialHook runs at the start of Dial; a non-nil result fails it.
	DialHook func(ctx context.Context) error
	// OnWrite is called after every data frame the client writes, outside the lock.
	OnWrite func(c *FakeConn, messageType int, data []byte)

	incoming  chan frame
	closed    chan struct{}
	closeOnce sync.Once
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		incoming: make(chan frame, 64),
		closed:   make(chan struct{}),
	}
}

func (c *FakeConn) Dial(ctx context.Context, endpoint string, requestHeader http.Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.DialHook != nil {
		if err := c.DialHook(ctx); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = endpoint
	c.header = requestHeader
	if c.DialErr != nil {
		return c.DialErr
	}
	c.dialed = true
	return nil
}

func (c *FakeConn) ReadMessage() (int, []byte, error) {
	for {
		select {
		case <-c.closed:
			return 0, nil, ErrClosed
		case f := <-c.incoming:
			switch f.typ {
			case websocket.PingMessage:
				if h := c.handler(true); h != nil {
					h(string(f.data))
				}
			case websocket.PongMessage:
				if h := c.handler(false); h != nil {
					h(string(f.data))
				}
			case websocket.CloseMessage:
				c.Close()
				return 0, nil, &gwebsocket.CloseError{Code: f.code, Text: f.reason}
			default:
				return f.typ, f.data, nil
			}
		}
	}
}

func (c *FakeConn) handler(ping bool) func(string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ping {
		return c.pingHandler
	}
	return c.pongHandler
}

func (c *FakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, Message{Type: messageType, Data: append([]byte(nil), data...)})
	onWrite := c.OnWrite
	c.mu.Unlock()
	if onWrite != nil && (messageType == websocket.TextMessage || messageType == websocket.BinaryMessage) {
		onWrite(c, messageType, data)
	}
	return nil
}

func (c *FakeConn) SetPingHandler(h func(appData string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingHandler = h
}

func (c *FakeConn) SetPongHandler(h func(appData string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pongHandler = h
}

func (c *FakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Push queues a text frame from the server.
func (c *FakeConn) Push(data []byte) {
	c.incoming <- frame{typ: websocket.TextMessage, data: data}
}

func (c *FakeConn) PushPing(appData string) {
	c.incoming <- frame{typ: websocket.PingMessage, data: []byte(appData)}
}

func (c *FakeConn) PushPong(appData string) {
	c.incoming <- frame{typ: websocket.PongMessage, data: []byte(appData)}
}

// ServerClose makes the next read fail with a close error carrying code.
func (c *FakeConn) ServerClose(code int, reason string) {
	c.incoming <- frame{typ: websocket.CloseMessage, code: code, reason: reason}
}

func (c *FakeConn) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

func (c *FakeConn) Header() http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header
}

func (c *FakeConn) Dialed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialed
}

func (c *FakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Written returns a copy of every frame written so far.
func (c *FakeConn) Written() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.written))
	copy(out, c.written)
	return out
}

// WrittenText returns the data frames as strings.
func (c *FakeConn) WrittenText() []string {
	var out []string
	for _, m := range c.Written() {
		if m.Type == websocket.TextMessage {
			out = append(out, string(m.Data))
		}
	}
	return out
}

// Dialer hands out FakeConns and remembers them in creation order.
type Dialer struct {
	mu    sync.Mutex
	conns []*FakeConn
	// Setup runs on each new conn before it is returned.
	Setup func(index int, c *FakeConn)
}

// NewConn satisfies websocket.NewConnFunc.
func (d *Dialer) NewConn() websocket.WebSocketConn {
	c := NewFakeConn()
	d.mu.Lock()
	idx := len(d.conns)
	d.conns = append(d.conns, c)
	setup := d.Setup
	d.mu.Unlock()
	if setup != nil {
		setup(idx, c)
	}
	return c
}

func (d *Dialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakeConn, len(d.conns))
	copy(out, d.conns)
	return out
}

// Conn returns the i-th conn handed out, or nil.
func (d *Dialer) Conn(i int) *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *Dialer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}
