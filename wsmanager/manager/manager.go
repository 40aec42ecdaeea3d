package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	gwebsocket "github.com/gorilla/websocket"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/utils"
	"github.com/go-gotop/bnconnector/websocket"
	"github.com/go-gotop/bnconnector/websocket/gorilla"
	"github.com/go-gotop/bnconnector/wsmanager"
)

var _ wsmanager.WebsocketManager = (*Manager)(nil)

const pendingPollInterval = 100 * time.Millisecond

// Manager 管理固定数量的 websocket 连接：轮询发送、断线重连、连接续期和优雅关闭
type Manager struct {
	opts  *options
	log   *log.Helper
	conns []*wsmanager.Connection
	queue *reconnectQueue

	mux sync.Mutex
	rr  int
	url string
}

func NewManager(opts ...Option) *Manager {
	o := &options{
		logger:          log.NewHelper(log.DefaultLogger),
		mode:            exchange.ModeSingle,
		poolSize:        1,
		reconnectDelay:  5 * time.Second,
		maxConnDuration: 23 * time.Hour,
		closeTimeout:    30 * time.Second,
		queueThrottle:   time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.newConn == nil {
		cfg := &websocket.WebsocketConfig{
			EnableCompression: o.compression,
			ProxyURL:          o.proxyURL,
		}
		o.newConn = func() websocket.WebSocketConn {
			return gorilla.NewGorillaWebSocketConn(cfg)
		}
	}

	size := 1
	if o.mode == exchange.ModePool && o.poolSize > 1 {
		size = o.poolSize
	}
	m := &Manager{
		opts:  o,
		log:   o.logger,
		conns: make([]*wsmanager.Connection, size),
	}
	for i := range m.conns {
		m.conns[i] = wsmanager.NewConnection(utils.RandomString())
	}
	m.queue = newReconnectQueue(o.queueThrottle, m.runJob)
	return m
}

// Connections 返回连接池中的全部连接
func (m *Manager) Connections() []*wsmanager.Connection {
	out := make([]*wsmanager.Connection, len(m.conns))
	copy(out, m.conns)
	return out
}

func (m *Manager) GetConnection(allowUnestablished bool) (*wsmanager.Connection, error) {
	avail := make([]*wsmanager.Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		if allowUnestablished || conn.IsReady() {
			avail = append(avail, conn)
		}
	}
	if len(avail) == 0 {
		return nil, wsmanager.ErrNoAvailableConnection
	}

	m.mux.Lock()
	defer m.mux.Unlock()
	conn := avail[m.rr%len(avail)]
	m.rr = (m.rr + 1) % len(avail)
	return conn, nil
}

func (m *Manager) IsConnected(conn *wsmanager.Connection) bool {
	if conn != nil {
		return conn.IsReady()
	}
	for _, c := range m.conns {
		if c.IsReady() {
			return true
		}
	}
	return false
}

// ConnectPool dials every connection concurrently and returns once all of them are open,
// or with the first error.
func (m *Manager) ConnectPool(ctx context.Context, url string) error {
	m.mux.Lock()
	m.url = url
	m.mux.Unlock()

	errCh := make(chan error, len(m.conns))
	for _, conn := range m.conns {
		conn.SetCloseInitiated(false)
		conn.StopTimers()
		go func(conn *wsmanager.Connection) {
			err := m.initConnect(ctx, url, conn, false)
			// 失败的连接也要重连，否则其余连接可用时它永远不会恢复
			if err != nil && !conn.CloseInitiated() {
				conn.SetState(wsmanager.StateClosed)
				m.log.Warnf("Connection %s failed to open. Reconnecting in %s", conn.ID(), m.opts.reconnectDelay)
				m.scheduleReconnect(conn)
			}
			errCh <- err
		}(conn)
	}
	for range m.conns {
		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) initConnect(ctx context.Context, url string, conn *wsmanager.Connection, renewal bool) error {
	if !renewal {
		conn.SetState(wsmanager.StateConnecting)
	}
	m.log.Infof("Establishing Websocket connection with id %s to: %s", conn.ID(), url)
	ws := m.opts.newConn()
	if err := ws.Dial(ctx, url, m.opts.header.Clone()); err != nil {
		if !renewal {
			conn.SetState(wsmanager.StateDisconnected)
		}
		m.log.Errorf("Websocket connection %s to %s failed: %v", conn.ID(), url, err)
		m.emit(&wsmanager.Event{Type: wsmanager.EventError, Connection: conn, URL: url, Err: err})
		return err
	}
	if conn.CloseInitiated() {
		ws.Close()
		return wsmanager.ErrNotConnected
	}

	ws.SetPingHandler(func(appData string) error {
		m.log.Debugf("Received PING from server on connection %s", conn.ID())
		m.emit(&wsmanager.Event{Type: wsmanager.EventPing, Connection: conn, Data: []byte(appData)})
		err := ws.WriteMessage(websocket.PongMessage, []byte(appData))
		if err != nil && !errors.Is(err, gwebsocket.ErrCloseSent) {
			return err
		}
		return nil
	})
	ws.SetPongHandler(func(appData string) error {
		m.log.Debugf("Received PONG from server on connection %s", conn.ID())
		m.emit(&wsmanager.Event{Type: wsmanager.EventPong, Connection: conn, Data: []byte(appData)})
		return nil
	})

	old := conn.Open(ws, url)
	go m.readLoop(conn, ws)
	if old != nil {
		if renewal {
			go m.closeSocketGracefully(conn, old)
		} else {
			old.Close()
		}
	}
	m.scheduleRenewal(conn)

	if renewal {
		m.log.Infof("Websocket connection with id %s renewed", conn.ID())
	} else {
		m.log.Infof("Connected to the Websocket Server with id %s: %s", conn.ID(), url)
	}
	m.emit(&wsmanager.Event{Type: wsmanager.EventOpen, Connection: conn, URL: url})
	if m.opts.onOpen != nil {
		m.opts.onOpen(conn)
	}
	return nil
}

func (m *Manager) readLoop(conn *wsmanager.Connection, ws websocket.WebSocketConn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.handleClose(conn, ws, err)
			return
		}
		conn.IncMessages()
		m.emit(&wsmanager.Event{Type: wsmanager.EventMessage, Connection: conn, Data: data})
		if m.opts.onMessage != nil {
			m.opts.onMessage(data, conn)
		}
	}
}

func (m *Manager) handleClose(conn *wsmanager.Connection, ws websocket.WebSocketConn, err error) {
	// 续期后旧连接的关闭不影响当前连接
	if conn.Socket() != ws {
		return
	}

	code, reason := gwebsocket.CloseAbnormalClosure, err.Error()
	var ce *gwebsocket.CloseError
	if errors.As(err, &ce) {
		code, reason = ce.Code, ce.Text
	} else if !conn.CloseInitiated() {
		m.emit(&wsmanager.Event{Type: wsmanager.EventError, Connection: conn, Err: err})
	}

	if conn.CloseInitiated() {
		conn.SetState(wsmanager.StateDisconnected)
		m.emit(&wsmanager.Event{Type: wsmanager.EventClose, Connection: conn, Code: code, Reason: reason})
		return
	}

	conn.SetState(wsmanager.StateClosed)
	m.emit(&wsmanager.Event{Type: wsmanager.EventClose, Connection: conn, Code: code, Reason: reason})
	m.log.Warnf("Connection %s closed unexpectedly (code %d). Reconnecting in %s", conn.ID(), code, m.opts.reconnectDelay)
	m.scheduleReconnect(conn)
}

func (m *Manager) scheduleReconnect(conn *wsmanager.Connection) {
	conn.SetReconnectionPending(true)
	conn.SetReconnectTimer(time.AfterFunc(m.opts.reconnectDelay, func() {
		if conn.CloseInitiated() {
			return
		}
		m.queue.enqueue(job{conn: conn})
	}))
}

func (m *Manager) scheduleRenewal(conn *wsmanager.Connection) {
	if m.opts.maxConnDuration <= 0 {
		return
	}
	conn.SetRenewTimer(time.AfterFunc(m.opts.maxConnDuration, func() {
		if conn.CloseInitiated() {
			return
		}
		conn.SetRenewalPending(true)
		m.queue.enqueue(job{conn: conn, renewal: true})
	}))
}

func (m *Manager) runJob(j job) {
	conn := j.conn
	if conn.CloseInitiated() {
		return
	}
	url := m.reconnectURL(conn)
	if j.renewal {
		m.log.Infof("Renewing Websocket connection with id %s", conn.ID())
		if err := m.initConnect(context.Background(), url, conn, true); err != nil {
			conn.SetRenewalPending(false)
			m.scheduleRenewal(conn)
		}
		return
	}

	// ConnectPool may have opened it again meanwhile
	if conn.State() == wsmanager.StateOpen && conn.Socket() != nil {
		return
	}
	m.log.Infof("Reconnecting connection with id %s to the server.", conn.ID())
	if err := m.initConnect(context.Background(), url, conn, false); err != nil {
		conn.SetState(wsmanager.StateClosed)
		m.scheduleReconnect(conn)
	}
}

func (m *Manager) reconnectURL(conn *wsmanager.Connection) string {
	if m.opts.reconnectURL != nil {
		if url := m.opts.reconnectURL(conn); url != "" {
			return url
		}
	}
	if url := conn.URL(); url != "" {
		return url
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.url
}

// Send writes payload on opts.Connection, or on the next ready connection. In promise
// based mode it waits for the result registered under opts.ID.
func (m *Manager) Send(ctx context.Context, payload []byte, opts wsmanager.SendOptions) (*wsmanager.Response, error) {
	conn := opts.Connection
	if conn == nil {
		var err error
		if conn, err = m.GetConnection(false); err != nil {
			return nil, err
		}
	}
	if !conn.IsReady() {
		m.log.Warn(wsmanager.ErrSendNotReady.Error())
		return nil, wsmanager.ErrSendNotReady
	}

	if !opts.PromiseBased {
		return nil, conn.Write(websocket.TextMessage, payload)
	}

	ch, err := conn.AddPending(opts.ID)
	if err != nil {
		return nil, err
	}
	if err := conn.Write(websocket.TextMessage, payload); err != nil {
		conn.RemovePending(opts.ID)
		return nil, err
	}

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		t := time.NewTimer(opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case res := <-ch:
		return res.Response, res.Err
	case <-timeout:
		conn.RemovePending(opts.ID)
		return nil, fmt.Errorf("%w for id: %s", wsmanager.ErrRequestTimeout, opts.ID)
	case <-ctx.Done():
		conn.RemovePending(opts.ID)
		return nil, ctx.Err()
	}
}

// Disconnect closes every connection; pending requests get ErrNotConnected once the
// grace period is over.
func (m *Manager) Disconnect() error {
	if !m.IsConnected(nil) {
		m.log.Warn("No connection to close.")
	}
	for _, conn := range m.conns {
		conn.SetCloseInitiated(true)
		conn.StopTimers()
	}
	var wg sync.WaitGroup
	for _, conn := range m.conns {
		wg.Add(1)
		go func(conn *wsmanager.Connection) {
			defer wg.Done()
			m.closeConnectionGracefully(conn)
		}(conn)
	}
	wg.Wait()
	m.log.Info("Disconnected with Binance Websocket Server")
	return nil
}

func (m *Manager) closeConnectionGracefully(conn *wsmanager.Connection) {
	ws := conn.Socket()
	if ws == nil || conn.State() == wsmanager.StateDisconnected {
		conn.RejectAll(wsmanager.ErrNotConnected)
		return
	}
	conn.SetState(wsmanager.StateClosing)
	m.waitForPending(conn)
	conn.RejectAll(wsmanager.ErrNotConnected)
	m.closeSocket(ws)
	conn.SetState(wsmanager.StateDisconnected)
}

// closeSocketGracefully drains a socket replaced by renewal.
func (m *Manager) closeSocketGracefully(conn *wsmanager.Connection, ws websocket.WebSocketConn) {
	m.waitForPending(conn)
	m.closeSocket(ws)
	m.log.Debugf("Old socket of connection %s closed", conn.ID())
}

func (m *Manager) waitForPending(conn *wsmanager.Connection) {
	if conn.PendingCount() == 0 {
		return
	}
	m.log.Debug("Waiting for pending requests to complete before disconnecting.")
	deadline := time.NewTimer(m.opts.closeTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pendingPollInterval)
	defer ticker.Stop()
	for conn.PendingCount() > 0 {
		select {
		case <-deadline.C:
			m.log.Warnf("Force-closing connection after %d seconds.", int(m.opts.closeTimeout/time.Second))
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) closeSocket(ws websocket.WebSocketConn) {
	m.log.Info("Closing Websocket connection.")
	_ = ws.WriteMessage(websocket.CloseMessage, gwebsocket.FormatCloseMessage(gwebsocket.CloseNormalClosure, ""))
	_ = ws.Close()
}

// PingServer sends a ping frame on every ready connection.
func (m *Manager) PingServer() {
	var ready []*wsmanager.Connection
	for _, conn := range m.conns {
		if conn.IsReady() {
			ready = append(ready, conn)
		}
	}
	if len(ready) == 0 {
		m.log.Warn("Ping only can be sent when connection is ready.")
		return
	}
	m.log.Info("Sending PING to all connected Websocket servers.")
	for _, conn := range ready {
		if err := conn.Ping(); err != nil {
			m.log.Errorf("Ping on connection %s failed: %v", conn.ID(), err)
		}
	}
}

func (m *Manager) emit(ev *wsmanager.Event) {
	for _, l := range m.opts.listeners {
		l(ev)
	}
}
