package manager

import (
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/websocket"
	"github.com/go-gotop/bnconnector/wsmanager"
)

type Option func(*options)

type options struct {
	logger *log.Helper
	// single 或 pool
	mode     exchange.WebsocketMode
	poolSize int
	// 意外断开后的重连延迟
	reconnectDelay time.Duration
	// 最大连接持续时间，到期后无缝续期
	maxConnDuration time.Duration
	// 优雅关闭时等待未完成请求的最长时间
	closeTimeout time.Duration
	// 重连队列两次任务之间的间隔
	queueThrottle time.Duration
	newConn       websocket.NewConnFunc
	compression   bool
	proxyURL      string
	header        http.Header
	listeners     []wsmanager.EventListener
	onOpen        func(*wsmanager.Connection)
	onMessage     func([]byte, *wsmanager.Connection)
	reconnectURL  func(*wsmanager.Connection) string
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.NewHelper(logger)
	}
}

func WithMode(mode exchange.WebsocketMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithPoolSize only applies in pool mode.
func WithPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) {
		o.reconnectDelay = d
	}
}

func WithMaxConnDuration(d time.Duration) Option {
	return func(o *options) {
		o.maxConnDuration = d
	}
}

func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		o.closeTimeout = d
	}
}

func WithQueueThrottle(d time.Duration) Option {
	return func(o *options) {
		o.queueThrottle = d
	}
}

// WithDialer replaces the gorilla socket, mostly for tests.
func WithDialer(f websocket.NewConnFunc) Option {
	return func(o *options) {
		o.newConn = f
	}
}

func WithCompression(b bool) Option {
	return func(o *options) {
		o.compression = b
	}
}

func WithProxyURL(u string) Option {
	return func(o *options) {
		o.proxyURL = u
	}
}

func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h.Clone()
	}
}

// WithEventListener 可以多次调用，按注册顺序通知
func WithEventListener(l wsmanager.EventListener) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, l)
	}
}

// WithOpenHandler runs after a socket of conn is open, including after reconnects.
func WithOpenHandler(f func(conn *wsmanager.Connection)) Option {
	return func(o *options) {
		o.onOpen = f
	}
}

// WithMessageHandler receives every data frame, on the socket's read goroutine.
func WithMessageHandler(f func(data []byte, conn *wsmanager.Connection)) Option {
	return func(o *options) {
		o.onMessage = f
	}
}

// WithReconnectURL chooses the URL used when conn reconnects or renews. An empty result
// falls back to the URL given to ConnectPool.
func WithReconnectURL(f func(conn *wsmanager.Connection) string) Option {
	return func(o *options) {
		o.reconnectURL = f
	}
}
