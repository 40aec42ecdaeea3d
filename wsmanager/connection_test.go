package wsmanager

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/go-gotop/bnconnector/websocket"
	mock_websocket "github.com/go-gotop/bnconnector/websocket/mock"
)

func TestConnectionSuite(t *testing.T) {
	suite.Run(t, new(connectionTestSuite))
}

type connectionTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	mws  *mock_websocket.MockWebSocketConn
	conn *Connection
}

func (s *connectionTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mws = mock_websocket.NewMockWebSocketConn(s.ctrl)
	s.conn = NewConnection("c1")
}

func (s *connectionTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *connectionTestSuite) TestOpen() {
	s.False(s.conn.IsReady())
	s.ErrorIs(s.conn.Write(websocket.TextMessage, []byte("x")), ErrNotConnected)

	old := s.conn.Open(s.mws, "wss://example")
	s.Nil(old)
	s.True(s.conn.IsReady())
	s.Equal(StateOpen, s.conn.State())
	s.Equal("wss://example", s.conn.URL())
	s.NotZero(s.conn.ConnectionDuration())

	s.conn.SetReconnectionPending(true)
	s.False(s.conn.IsReady())
	s.conn.SetReconnectionPending(false)
	s.conn.SetCloseInitiated(true)
	s.False(s.conn.IsReady())
}

func (s *connectionTestSuite) TestWriteAndPing() {
	s.conn.Open(s.mws, "wss://example")
	gomock.InOrder(
		s.mws.EXPECT().WriteMessage(websocket.TextMessage, []byte(`{"id":"1"}`)).Return(nil),
		s.mws.EXPECT().WriteMessage(websocket.PingMessage, gomock.Nil()).Return(nil),
	)
	s.NoError(s.conn.Write(websocket.TextMessage, []byte(`{"id":"1"}`)))
	s.NoError(s.conn.Ping())
}

func (s *connectionTestSuite) TestPending() {
	ch, err := s.conn.AddPending("a")
	s.Require().NoError(err)
	_, err = s.conn.AddPending("a")
	s.ErrorIs(err, ErrDuplicateRequestID)
	_, err = s.conn.AddPending("")
	s.ErrorIs(err, ErrMissingRequestID)
	s.True(s.conn.HasPending("a"))

	s.True(s.conn.ResolvePending("a", Result{Response: &Response{Data: []byte("1")}}))
	s.False(s.conn.ResolvePending("a", Result{}))
	res := <-ch
	s.Equal([]byte("1"), res.Response.Data)
	s.Equal(0, s.conn.PendingCount())

	ch1, _ := s.conn.AddPending("b")
	ch2, _ := s.conn.AddPending("c")
	s.conn.RejectAll(ErrNotConnected)
	s.ErrorIs((<-ch1).Err, ErrNotConnected)
	s.ErrorIs((<-ch2).Err, ErrNotConnected)
	s.Equal(0, s.conn.PendingCount())
}

func (s *connectionTestSuite) TestPendingSubscriptions() {
	s.conn.AddPendingSubscriptions("btcusdt@trade")
	s.conn.AddPendingSubscriptions("bnbusdt@depth", "ethusdt@aggTrade")
	s.Equal([]string{"btcusdt@trade", "bnbusdt@depth", "ethusdt@aggTrade"}, s.conn.PendingSubscriptions())
	s.Equal([]string{"btcusdt@trade", "bnbusdt@depth", "ethusdt@aggTrade"}, s.conn.TakePendingSubscriptions())
	s.Empty(s.conn.TakePendingSubscriptions())
}

func (s *connectionTestSuite) TestTimers() {
	fired := make(chan struct{}, 2)
	s.conn.SetRenewTimer(time.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} }))
	s.conn.SetReconnectTimer(time.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} }))
	s.conn.StopTimers()

	select {
	case <-fired:
		s.Fail("timer fired after StopTimers")
	case <-time.After(60 * time.Millisecond):
	}
}

func (s *connectionTestSuite) TestMessageRate() {
	s.Zero(s.conn.MessageRate())
	s.conn.Open(s.mws, "wss://example")
	s.conn.IncMessages()
	s.conn.IncMessages()
	s.Equal(uint64(2), s.conn.MessageCount())
	s.Greater(s.conn.MessageRate(), 0.0)
}

func TestAPIError(t *testing.T) {
	var err error = &APIError{Status: 400, Code: -1102, Message: "Mandatory parameter 'symbol' was not sent."}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Error() != "Mandatory parameter 'symbol' was not sent." {
		t.Fatalf("unexpected error %v", err)
	}
	if EventClose.String() != "close" {
		t.Fatalf("unexpected event name %s", EventClose)
	}
}
