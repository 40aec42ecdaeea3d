package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/websocket"
	"github.com/go-gotop/bnconnector/websocket/wstest"
	"github.com/go-gotop/bnconnector/wsmanager"
)

const testURL = "wss://ws-api.testnet.binance.vision/ws-api/v3"

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(managerTestSuite))
}

type managerTestSuite struct {
	suite.Suite
	dialer *wstest.Dialer

	mu     sync.Mutex
	events []*wsmanager.Event
}

func (s *managerTestSuite) SetupTest() {
	s.dialer = &wstest.Dialer{}
	s.events = nil
}

func (s *managerTestSuite) listener(ev *wsmanager.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *managerTestSuite) eventsOf(t wsmanager.EventType) []*wsmanager.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*wsmanager.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *managerTestSuite) newManager(opts ...Option) *Manager {
	opts = append([]Option{
		WithDialer(s.dialer.NewConn),
		WithEventListener(s.listener),
		WithReconnectDelay(10 * time.Millisecond),
		WithQueueThrottle(time.Millisecond),
		WithCloseTimeout(200 * time.Millisecond),
	}, opts...)
	return NewManager(opts...)
}

func (s *managerTestSuite) connectedPool(size int, opts ...Option) *Manager {
	opts = append([]Option{WithMode(exchange.ModePool), WithPoolSize(size)}, opts...)
	m := s.newManager(opts...)
	s.Require().NoError(m.ConnectPool(context.Background(), testURL))
	return m
}

func hasFrame(c *wstest.FakeConn, messageType int) bool {
	for _, msg := range c.Written() {
		if msg.Type == messageType {
			return true
		}
	}
	return false
}

func (s *managerTestSuite) TestPoolSize() {
	s.Len(s.newManager().Connections(), 1)
	s.Len(s.newManager(WithPoolSize(4)).Connections(), 1)
	s.Len(s.newManager(WithMode(exchange.ModePool), WithPoolSize(4)).Connections(), 4)
}

func (s *managerTestSuite) TestConnectPool() {
	m := s.connectedPool(3)
	defer m.Disconnect()

	s.Equal(3, s.dialer.Len())
	for _, c := range s.dialer.Conns() {
		s.Equal(testURL, c.Endpoint())
	}
	for _, conn := range m.Connections() {
		s.True(m.IsConnected(conn))
		s.Len(conn.ID(), 32)
	}
	s.True(m.IsConnected(nil))
	s.Len(s.eventsOf(wsmanager.EventOpen), 3)
}

func (s *managerTestSuite) TestConnectPoolError() {
	s.dialer.Setup = func(i int, c *wstest.FakeConn) {
		if i == 1 {
			c.DialErr = errors.New("handshake failed")
		}
	}
	m := s.newManager(WithMode(exchange.ModePool), WithPoolSize(3))
	err := m.ConnectPool(context.Background(), testURL)
	s.EqualError(err, "handshake failed")
	s.NotEmpty(s.eventsOf(wsmanager.EventError))
	m.Disconnect()
}

func (s *managerTestSuite) TestConnectPoolFailedSlotReconnects() {
	s.dialer.Setup = func(i int, c *wstest.FakeConn) {
		if i == 1 {
			c.DialErr = errors.New("handshake failed")
		}
	}
	m := s.newManager(WithMode(exchange.ModePool), WithPoolSize(2))
	defer m.Disconnect()
	s.EqualError(m.ConnectPool(context.Background(), testURL), "handshake failed")

	s.Eventually(func() bool {
		for _, conn := range m.Connections() {
			if !conn.IsReady() {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
	s.Equal(3, s.dialer.Len())
	s.Equal(testURL, s.dialer.Conn(2).Endpoint())
}

func (s *managerTestSuite) TestConnectPoolFailureNotRetriedAfterDisconnect() {
	s.dialer.Setup = func(i int, c *wstest.FakeConn) {
		c.DialErr = errors.New("refused")
	}
	m := s.newManager(WithReconnectDelay(30 * time.Millisecond))
	s.Error(m.ConnectPool(context.Background(), testURL))
	m.Disconnect()

	time.Sleep(80 * time.Millisecond)
	s.Equal(1, s.dialer.Len())
}

func (s *managerTestSuite) TestGetConnectionRoundRobin() {
	m := s.connectedPool(3)
	defer m.Disconnect()

	conns := m.Connections()
	var got []*wsmanager.Connection
	for i := 0; i < 6; i++ {
		c, err := m.GetConnection(false)
		s.Require().NoError(err)
		got = append(got, c)
	}
	s.Equal([]*wsmanager.Connection{conns[0], conns[1], conns[2], conns[0], conns[1], conns[2]}, got)
}

func (s *managerTestSuite) TestGetConnectionSkipsClosed() {
	m := s.connectedPool(3)
	defer m.Disconnect()

	conns := m.Connections()
	conns[2].SetState(wsmanager.StateClosed)

	seen := map[*wsmanager.Connection]int{}
	var prev *wsmanager.Connection
	for i := 0; i < 10; i++ {
		c, err := m.GetConnection(false)
		s.Require().NoError(err)
		s.NotSame(conns[2], c)
		s.NotSame(prev, c)
		seen[c]++
		prev = c
	}
	s.Equal(5, seen[conns[0]])
	s.Equal(5, seen[conns[1]])

	conns[1].SetReconnectionPending(true)
	conns[0].SetCloseInitiated(true)
	_, err := m.GetConnection(false)
	s.ErrorIs(err, wsmanager.ErrNoAvailableConnection)

	c, err := m.GetConnection(true)
	s.NoError(err)
	s.NotNil(c)
}

func (s *managerTestSuite) TestSendNotReady() {
	m := s.newManager()
	_, err := m.Send(context.Background(), []byte("{}"), wsmanager.SendOptions{})
	s.ErrorIs(err, wsmanager.ErrNoAvailableConnection)

	_, err = m.Send(context.Background(), []byte("{}"), wsmanager.SendOptions{Connection: m.Connections()[0]})
	s.ErrorIs(err, wsmanager.ErrSendNotReady)
}

func (s *managerTestSuite) TestSendNonPromise() {
	m := s.connectedPool(1)
	defer m.Disconnect()

	res, err := m.Send(context.Background(), []byte(`{"method":"SUBSCRIBE"}`), wsmanager.SendOptions{})
	s.NoError(err)
	s.Nil(res)
	s.Equal([]string{`{"method":"SUBSCRIBE"}`}, s.dialer.Conn(0).WrittenText())
}

func (s *managerTestSuite) TestSendPromise() {
	s.dialer.Setup = func(_ int, c *wstest.FakeConn) {
		c.OnWrite = func(c *wstest.FakeConn, _ int, data []byte) {
			c.Push(data)
		}
	}
	m := s.connectedPool(1, WithMessageHandler(func(data []byte, conn *wsmanager.Connection) {
		conn.ResolvePending(string(data), wsmanager.Result{Response: &wsmanager.Response{Data: data}})
	}))
	defer m.Disconnect()

	res, err := m.Send(context.Background(), []byte("req-1"), wsmanager.SendOptions{ID: "req-1", PromiseBased: true, Timeout: time.Second})
	s.Require().NoError(err)
	s.Equal([]byte("req-1"), res.Data)
	s.Equal(uint64(1), m.Connections()[0].MessageCount())
	s.Len(s.eventsOf(wsmanager.EventMessage), 1)

	_, err = m.Send(context.Background(), []byte("x"), wsmanager.SendOptions{PromiseBased: true})
	s.ErrorIs(err, wsmanager.ErrMissingRequestID)
}

func (s *managerTestSuite) TestSendTimeout() {
	m := s.connectedPool(1)
	defer m.Disconnect()

	start := time.Now()
	_, err := m.Send(context.Background(), []byte("{}"), wsmanager.SendOptions{ID: "slow", PromiseBased: true, Timeout: 100 * time.Millisecond})
	s.ErrorIs(err, wsmanager.ErrRequestTimeout)
	s.GreaterOrEqual(time.Since(start), 100*time.Millisecond)
	s.False(m.Connections()[0].HasPending("slow"))
}

func (s *managerTestSuite) TestSendContextCancel() {
	m := s.connectedPool(1)
	defer m.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Send(ctx, []byte("{}"), wsmanager.SendOptions{ID: "ctx", PromiseBased: true})
	s.ErrorIs(err, context.DeadlineExceeded)
	s.False(m.Connections()[0].HasPending("ctx"))
}

func (s *managerTestSuite) TestDisconnect() {
	m := s.connectedPool(2)
	conn := m.Connections()[0]
	ch, err := conn.AddPending("waiting")
	s.Require().NoError(err)

	start := time.Now()
	s.NoError(m.Disconnect())
	s.GreaterOrEqual(time.Since(start), 200*time.Millisecond)

	res := <-ch
	s.ErrorIs(res.Err, wsmanager.ErrNotConnected)
	for _, c := range s.dialer.Conns() {
		s.True(c.IsClosed())
		s.True(hasFrame(c, websocket.CloseMessage))
	}
	for _, conn := range m.Connections() {
		s.Equal(wsmanager.StateDisconnected, conn.State())
	}
	s.False(m.IsConnected(nil))

	// no reconnect after a requested close
	time.Sleep(50 * time.Millisecond)
	s.Equal(2, s.dialer.Len())
}

func (s *managerTestSuite) TestPingServer() {
	m := s.newManager()
	m.PingServer()

	s.Require().NoError(m.ConnectPool(context.Background(), testURL))
	defer m.Disconnect()
	m.PingServer()
	s.True(hasFrame(s.dialer.Conn(0), websocket.PingMessage))
}

func (s *managerTestSuite) TestPingPong() {
	m := s.connectedPool(1)
	defer m.Disconnect()

	fake := s.dialer.Conn(0)
	fake.PushPing("1700000000")
	fake.PushPong("p")

	s.Eventually(func() bool {
		return len(s.eventsOf(wsmanager.EventPing)) == 1 && len(s.eventsOf(wsmanager.EventPong)) == 1
	}, time.Second, 5*time.Millisecond)

	var pong []byte
	for _, msg := range fake.Written() {
		if msg.Type == websocket.PongMessage {
			pong = msg.Data
		}
	}
	s.Equal([]byte("1700000000"), pong)
}

func (s *managerTestSuite) TestReconnectOnUnexpectedClose() {
	m := s.connectedPool(1, WithReconnectURL(func(conn *wsmanager.Connection) string {
		return testURL + "?reconnect=1"
	}))
	defer m.Disconnect()

	conn := m.Connections()[0]
	s.dialer.Conn(0).ServerClose(gwebsocket.CloseGoingAway, "going away")

	s.Eventually(func() bool {
		return s.dialer.Len() == 2 && conn.IsReady()
	}, time.Second, 5*time.Millisecond)
	s.Equal(testURL+"?reconnect=1", s.dialer.Conn(1).Endpoint())
	s.Same(s.dialer.Conn(1), conn.Socket())

	closes := s.eventsOf(wsmanager.EventClose)
	s.Require().Len(closes, 1)
	s.Equal(gwebsocket.CloseGoingAway, closes[0].Code)
	s.Equal("going away", closes[0].Reason)
	s.Len(s.eventsOf(wsmanager.EventOpen), 2)
}

func (s *managerTestSuite) TestReconnectRetriesAfterFailure() {
	s.dialer.Setup = func(i int, c *wstest.FakeConn) {
		if i == 1 {
			c.DialErr = errors.New("refused")
		}
	}
	m := s.connectedPool(1)
	defer m.Disconnect()

	conn := m.Connections()[0]
	s.dialer.Conn(0).ServerClose(gwebsocket.CloseAbnormalClosure, "")

	s.Eventually(func() bool {
		return s.dialer.Len() >= 3 && conn.IsReady()
	}, time.Second, 5*time.Millisecond)
}

func (s *managerTestSuite) TestRenewal() {
	m := s.connectedPool(1, WithMaxConnDuration(50*time.Millisecond))
	conn := m.Connections()[0]
	first := s.dialer.Conn(0)

	s.Eventually(func() bool {
		return s.dialer.Len() >= 2 && first.IsClosed()
	}, time.Second, 5*time.Millisecond)
	s.NoError(m.Disconnect())

	s.True(hasFrame(first, websocket.CloseMessage))
	s.NotSame(first, conn.Socket())
	// renewal is not a close of the connection
	for _, ev := range s.eventsOf(wsmanager.EventClose) {
		s.Equal(gwebsocket.CloseAbnormalClosure, ev.Code)
	}
}

func (s *managerTestSuite) TestRenewalWaitsForPending() {
	m := s.connectedPool(1, WithMaxConnDuration(30*time.Millisecond))
	defer m.Disconnect()
	conn := m.Connections()[0]
	first := s.dialer.Conn(0)
	_, err := conn.AddPending("in-flight")
	s.Require().NoError(err)

	s.Eventually(func() bool { return s.dialer.Len() >= 2 }, time.Second, 5*time.Millisecond)
	s.False(first.IsClosed())

	conn.RemovePending("in-flight")
	s.Eventually(first.IsClosed, time.Second, 10*time.Millisecond)
}

func TestReconnectQueueThrottle(t *testing.T) {
	var (
		mu   sync.Mutex
		runs []time.Time
	)
	q := newReconnectQueue(40*time.Millisecond, func(j job) {
		mu.Lock()
		defer mu.Unlock()
		runs = append(runs, time.Now())
	})
	for i := 0; i < 3; i++ {
		q.enqueue(job{conn: wsmanager.NewConnection("c")})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(runs) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(runs); i++ {
		assert.GreaterOrEqual(t, runs[i].Sub(runs[i-1]), 35*time.Millisecond)
	}
	assert.Equal(t, 0, q.len())
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return !q.processing
	}, time.Second, 5*time.Millisecond)
}
