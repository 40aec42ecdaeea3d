package websocket

import (
	"context"
	"net/http"
	"time"

	gwebsocket "github.com/gorilla/websocket"
)

// 消息类型，与 gorilla/websocket 保持一致
const (
	TextMessage   = gwebsocket.TextMessage
	BinaryMessage = gwebsocket.BinaryMessage
	CloseMessage  = gwebsocket.CloseMessage
	PingMessage   = gwebsocket.PingMessage
	PongMessage   = gwebsocket.PongMessage
)

//go:generate mockgen -source=websocket.go -destination=mock/mock_websocket.go -package=mock_websocket

// WebSocketConn 是单个 websocket 连接的抽象，一次 Dial 对应一个底层连接。
// ReadMessage 只能由一个协程调用，WriteMessage 和 Close 可以并发调用。
type WebSocketConn interface {
	Dial(ctx context.Context, endpoint string, requestHeader http.Header) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// NewConnFunc 创建一个尚未连接的 WebSocketConn，每次连接或重连调用一次
type NewConnFunc func() WebSocketConn

// WebsocketConfig 结构体定义了WebSocket实例的配置选项
type WebsocketConfig struct {
	// HandshakeTimeout 握手超时时间，默认 10s
	HandshakeTimeout time.Duration
	// WriteTimeout 控制帧 (ping/pong/close) 的写超时，默认 5s
	WriteTimeout time.Duration
	// ReadLimit 单条消息的最大字节数
	ReadLimit int64
	// EnableCompression 启用 permessage-deflate
	EnableCompression bool
	// ProxyURL 代理地址，为空时使用环境变量中的代理
	ProxyURL string
}
