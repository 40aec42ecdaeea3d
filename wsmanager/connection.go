package wsmanager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gotop/bnconnector/websocket"
)

// ReadyState 连接状态
type ReadyState int32

const (
	StateDisconnected ReadyState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Connection is one slot of a pool. The socket inside is replaced on reconnect and renewal,
// the Connection itself lives as long as the manager.
type Connection struct {
	id string

	mu                   sync.Mutex
	ws                   websocket.WebSocketConn
	url                  string
	state                ReadyState
	closeInitiated       bool
	reconnectionPending  bool
	renewalPending       bool
	pending              map[string]chan Result
	pendingSubscriptions []string
	renewTimer           *time.Timer
	reconnectTimer       *time.Timer
	connectedAt          time.Time

	messageCount uint64
}

func NewConnection(id string) *Connection {
	return &Connection{
		id:      id,
		pending: make(map[string]chan Result),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Socket current socket, nil before the first dial
func (c *Connection) Socket() websocket.WebSocketConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

// URL the socket was dialed with
func (c *Connection) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Open installs a freshly dialed socket and returns the one it replaces.
func (c *Connection) Open(ws websocket.WebSocketConn, url string) websocket.WebSocketConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.ws
	c.ws = ws
	c.url = url
	c.state = StateOpen
	c.reconnectionPending = false
	c.renewalPending = false
	c.connectedAt = time.Now()
	atomic.StoreUint64(&c.messageCount, 0)
	return old
}

func (c *Connection) State() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) SetState(s ReadyState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// IsReady open, not closing and not waiting for a reconnect
func (c *Connection) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil && c.state == StateOpen && !c.closeInitiated && !c.reconnectionPending
}

func (c *Connection) CloseInitiated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeInitiated
}

func (c *Connection) SetCloseInitiated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeInitiated = v
}

func (c *Connection) ReconnectionPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectionPending
}

func (c *Connection) SetReconnectionPending(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectionPending = v
}

func (c *Connection) RenewalPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renewalPending
}

func (c *Connection) SetRenewalPending(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renewalPending = v
}

// AddPending registers id and returns the channel its result will be delivered on.
func (c *Connection) AddPending(id string) (<-chan Result, error) {
	if id == "" {
		return nil, ErrMissingRequestID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; ok {
		return nil, ErrDuplicateRequestID
	}
	ch := make(chan Result, 1)
	c.pending[id] = ch
	return ch, nil
}

// ResolvePending delivers res to the request waiting on id. It reports false for unknown ids.
func (c *Connection) ResolvePending(id string, res Result) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	return true
}

func (c *Connection) RemovePending(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Connection) HasPending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

func (c *Connection) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// RejectAll fails every pending request with err.
func (c *Connection) RejectAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan Result)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- Result{Err: err}
	}
}

// AddPendingSubscriptions queues streams until the socket opens.
func (c *Connection) AddPendingSubscriptions(streams ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingSubscriptions = append(c.pendingSubscriptions, streams...)
}

// TakePendingSubscriptions returns the queued streams and empties the queue.
func (c *Connection) TakePendingSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	streams := c.pendingSubscriptions
	c.pendingSubscriptions = nil
	return streams
}

func (c *Connection) PendingSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pendingSubscriptions...)
}

// Write sends one frame on the current socket.
func (c *Connection) Write(messageType int, data []byte) error {
	ws := c.Socket()
	if ws == nil {
		return ErrNotConnected
	}
	return ws.WriteMessage(messageType, data)
}

func (c *Connection) Ping() error {
	return c.Write(websocket.PingMessage, nil)
}

// SetRenewTimer replaces the renewal timer, stopping the previous one.
func (c *Connection) SetRenewTimer(t *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.renewTimer != nil {
		c.renewTimer.Stop()
	}
	c.renewTimer = t
}

// SetReconnectTimer replaces the reconnect timer, stopping the previous one.
func (c *Connection) SetReconnectTimer(t *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = t
}

func (c *Connection) StopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.renewTimer != nil {
		c.renewTimer.Stop()
		c.renewTimer = nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// IncMessages counts one received message.
func (c *Connection) IncMessages() {
	atomic.AddUint64(&c.messageCount, 1)
}

func (c *Connection) MessageCount() uint64 {
	return atomic.LoadUint64(&c.messageCount)
}

// ConnectionDuration time since the current socket opened
func (c *Connection) ConnectionDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectedAt.IsZero() {
		return 0
	}
	return time.Since(c.connectedAt)
}

// MessageRate 返回当前连接每秒收到的消息数
func (c *Connection) MessageRate() float64 {
	elapsed := c.ConnectionDuration().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(c.MessageCount()) / elapsed
}
