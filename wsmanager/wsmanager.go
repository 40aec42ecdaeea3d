package wsmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gotop/bnconnector/limiter"
	"github.com/go-gotop/bnconnector/utils"
)

var (
	ErrConnectionTimeout     = errors.New("Websocket connection timed out.")
	ErrNotConnected          = errors.New("Not connected")
	ErrNoAvailableConnection = errors.New("No available Websocket connections are ready.")
	ErrRequestTimeout        = errors.New("Request timeout")
	ErrSendNotReady          = errors.New("Send can only be sent when connection is ready.")
	ErrMissingRequestID      = errors.New("id is required for promise based sending.")
	ErrDuplicateRequestID    = errors.New("a request with the same id is already pending")
)

// EventType 连接生命周期事件
type EventType int

const (
	EventOpen EventType = iota + 1
	EventMessage
	EventPing
	EventPong
	EventError
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventPing:
		return "ping"
	case EventPong:
		return "pong"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is delivered to every listener of a manager. Only the fields that belong to the
// event type are set: URL for open, Data for message/ping/pong, Err for error, Code and
// Reason for close.
type Event struct {
	Type       EventType
	Connection *Connection
	URL        string
	Data       []byte
	Err        error
	Code       int
	Reason     string
}

type EventListener func(ev *Event)

// Response of a promise based request
type Response struct {
	Data       []byte
	RateLimits []limiter.RateLimit
}

// Unmarshal decodes Data into v.
func (r *Response) Unmarshal(v interface{}) error {
	return utils.Json.Unmarshal(r.Data, v)
}

// APIError is a websocket API response with a non-200 status.
type APIError struct {
	Status  int
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Result settles one pending request.
type Result struct {
	Response *Response
	Err      error
}

// SendOptions 发送选项
type SendOptions struct {
	// ID 请求 id，PromiseBased 时必填
	ID string
	// PromiseBased 等待同 id 的响应
	PromiseBased bool
	// Timeout 等待响应的超时时间，<= 0 时只受 ctx 控制
	Timeout time.Duration
	// Connection 指定连接，为空时轮询选择
	Connection *Connection
}

// WebsocketManager 是 websocket 连接池管理接口
type WebsocketManager interface {
	// GetConnection 轮询返回一个可用连接，allowUnestablished 时包括未就绪的连接
	GetConnection(allowUnestablished bool) (*Connection, error)
	// ConnectPool 并发建立池中所有连接，全部成功才返回
	ConnectPool(ctx context.Context, url string) error
	Send(ctx context.Context, payload []byte, opts SendOptions) (*Response, error)
	// IsConnected conn 为空时，任一连接就绪即返回 true
	IsConnected(conn *Connection) bool
	Disconnect() error
	PingServer()
	Connections() []*Connection
}
