package gorilla

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	gwebsocket "github.com/gorilla/websocket"

	"github.com/go-gotop/bnconnector/websocket"
)

var errNotDialed = errors.New("websocket not dialed")

func NewGorillaWebSocketConn(config *websocket.WebsocketConfig) *GorillaWebSocketConn {
	cfg := websocket.WebsocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        655350,
	}
	if config != nil {
		if config.HandshakeTimeout > 0 {
			cfg.HandshakeTimeout = config.HandshakeTimeout
		}
		if config.WriteTimeout > 0 {
			cfg.WriteTimeout = config.WriteTimeout
		}
		if config.ReadLimit > 0 {
			cfg.ReadLimit = config.ReadLimit
		}
		cfg.EnableCompression = config.EnableCompression
		cfg.ProxyURL = config.ProxyURL
	}
	return &GorillaWebSocketConn{config: cfg}
}

// GorillaWebSocketConn 是 websocket.WebSocketConn 基于 gorilla/websocket 的实现
type GorillaWebSocketConn struct {
	config websocket.WebsocketConfig
	// 写锁，gorilla 不支持并发写
	wmu  sync.Mutex
	conn *gwebsocket.Conn
}

func (g *GorillaWebSocketConn) Dial(ctx context.Context, endpoint string, requestHeader http.Header) error {
	dialer := gwebsocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  g.config.HandshakeTimeout,
		EnableCompression: g.config.EnableCompression,
	}
	if g.config.ProxyURL != "" {
		proxy, err := url.Parse(g.config.ProxyURL)
		if err != nil {
			return err
		}
		dialer.Proxy = http.ProxyURL(proxy)
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, requestHeader)
	if err != nil {
		return err
	}
	conn.SetReadLimit(g.config.ReadLimit)
	g.conn = conn
	return nil
}

func (g *GorillaWebSocketConn) ReadMessage() (int, []byte, error) {
	if g.conn == nil {
		return 0, nil, errNotDialed
	}
	return g.conn.ReadMessage()
}

// WriteMessage 控制帧走 WriteControl 并带超时，数据帧按调用顺序串行写入
func (g *GorillaWebSocketConn) WriteMessage(messageType int, data []byte) error {
	if g.conn == nil {
		return errNotDialed
	}
	switch messageType {
	case websocket.CloseMessage, websocket.PingMessage, websocket.PongMessage:
		return g.conn.WriteControl(messageType, data, time.Now().Add(g.config.WriteTimeout))
	}
	g.wmu.Lock()
	defer g.wmu.Unlock()
	return g.conn.WriteMessage(messageType, data)
}

func (g *GorillaWebSocketConn) SetPingHandler(h func(appData string) error) {
	if g.conn != nil {
		g.conn.SetPingHandler(h)
	}
}

func (g *GorillaWebSocketConn) SetPongHandler(h func(appData string) error) {
	if g.conn != nil {
		g.conn.SetPongHandler(h)
	}
}

func (g *GorillaWebSocketConn) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}
