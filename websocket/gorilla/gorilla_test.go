package gorilla

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/go-gotop/bnconnector/websocket"
)

func TestSuite(t *testing.T) {
	suite.Run(t, new(websocketTestSuite))
}

type websocketTestSuite struct {
	suite.Suite
	srv   *httptest.Server
	pongs chan string
	ws    *GorillaWebSocketConn
}

func (w *websocketTestSuite) SetupTest() {
	w.pongs = make(chan string, 1)
	upgrader := gwebsocket.Upgrader{}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.SetPongHandler(func(appData string) error {
			w.pongs <- appData
			return nil
		})
		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			// ping 消息让服务端主动发送 ping 帧
			if string(msg) == "ping" {
				c.WriteControl(gwebsocket.PingMessage, []byte("server"), time.Now().Add(time.Second))
				continue
			}
			if err := c.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	w.ws = NewGorillaWebSocketConn(&websocket.WebsocketConfig{HandshakeTimeout: time.Second})
}

func (w *websocketTestSuite) TearDownTest() {
	w.ws.Close()
	w.srv.Close()
}

func (w *websocketTestSuite) endpoint() string {
	return "ws" + strings.TrimPrefix(w.srv.URL, "http")
}

func (w *websocketTestSuite) TestDialAndEcho() {
	w.Require().NoError(w.ws.Dial(context.Background(), w.endpoint(), nil))
	w.Require().NoError(w.ws.WriteMessage(websocket.TextMessage, []byte(`{"id":"1"}`)))

	mt, data, err := w.ws.ReadMessage()
	w.Require().NoError(err)
	w.Equal(websocket.TextMessage, mt)
	w.Equal(`{"id":"1"}`, string(data))
}

func (w *websocketTestSuite) TestPingHandler() {
	w.Require().NoError(w.ws.Dial(context.Background(), w.endpoint(), nil))
	pings := make(chan string, 1)
	w.ws.SetPingHandler(func(appData string) error {
		pings <- appData
		return w.ws.WriteMessage(websocket.PongMessage, []byte(appData))
	})
	go func() {
		for {
			if _, _, err := w.ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
	w.Require().NoError(w.ws.WriteMessage(websocket.TextMessage, []byte("ping")))

	select {
	case p := <-pings:
		w.Equal("server", p)
	case <-time.After(2 * time.Second):
		w.Fail("ping not received")
	}
	select {
	case p := <-w.pongs:
		w.Equal("server", p)
	case <-time.After(2 * time.Second):
		w.Fail("pong not received")
	}
}

func (w *websocketTestSuite) TestClose() {
	w.Require().NoError(w.ws.Dial(context.Background(), w.endpoint(), nil))
	w.Require().NoError(w.ws.WriteMessage(websocket.CloseMessage,
		gwebsocket.FormatCloseMessage(gwebsocket.CloseNormalClosure, "")))
	w.NoError(w.ws.Close())

	_, _, err := w.ws.ReadMessage()
	w.Error(err)
}

func (w *websocketTestSuite) TestNotDialed() {
	w.ErrorIs(w.ws.WriteMessage(websocket.TextMessage, nil), errNotDialed)
	_, _, err := w.ws.ReadMessage()
	w.ErrorIs(err, errNotDialed)
	w.NoError(w.ws.Close())
}

func (w *websocketTestSuite) TestDialError() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Error(w.ws.Dial(ctx, w.endpoint(), nil))

	bad := NewGorillaWebSocketConn(&websocket.WebsocketConfig{ProxyURL: "://bad"})
	w.Error(bad.Dial(context.Background(), w.endpoint(), nil))
}
