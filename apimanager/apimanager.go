package apimanager

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/bnconnector/limiter"
	"github.com/go-gotop/bnconnector/signer"
	"github.com/go-gotop/bnconnector/utils"
	"github.com/go-gotop/bnconnector/wsmanager"
	"github.com/go-gotop/bnconnector/wsmanager/manager"
)

// Client 是 websocket API 的请求/响应客户端，请求按 id 与响应对应
type Client struct {
	opts    *options
	log     *log.Helper
	creds   *signer.Credentials
	signers *signer.Cache
	wsm     *manager.Manager
}

func NewClient(opts ...Option) *Client {
	o := &options{
		timeout: 5 * time.Second,
		logger:  log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(o)
	}
	c := &Client{
		opts:    o,
		log:     log.NewHelper(o.logger),
		signers: signer.NewCache(),
	}
	if o.apiKey != "" || o.apiSecret != "" || o.privateKey != "" {
		c.creds = &signer.Credentials{
			APIKey:               o.apiKey,
			APISecret:            o.apiSecret,
			PrivateKey:           o.privateKey,
			PrivateKeyPassphrase: o.privateKeyPassphrase,
		}
	}
	mopts := append([]manager.Option{manager.WithLogger(o.logger)}, o.managerOpts...)
	mopts = append(mopts, manager.WithMessageHandler(c.onMessage))
	c.wsm = manager.NewManager(mopts...)
	return c
}

// Connect opens the pool unless a connection is already open.
func (c *Client) Connect(ctx context.Context) error {
	if c.wsm.IsConnected(nil) {
		c.log.Info("WebSocket connection already established")
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	err := c.wsm.ConnectPool(ctx, c.prepareURL())
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return wsmanager.ErrConnectionTimeout
	}
	return err
}

func (c *Client) Disconnect() error {
	return c.wsm.Disconnect()
}

func (c *Client) IsConnected() bool {
	return c.wsm.IsConnected(nil)
}

func (c *Client) PingServer() {
	c.wsm.PingServer()
}

// ClearSignerCache drops the parsed keys; the next signed request loads them again.
func (c *Client) ClearSignerCache() {
	c.signers.Clear()
}

// SendMessage sends {id, method, params} and waits for the response with the same id.
func (c *Client) SendMessage(ctx context.Context, method string, payload utils.Params, opts ...MessageOption) (*wsmanager.Response, error) {
	if !c.wsm.IsConnected(nil) {
		return nil, wsmanager.ErrNotConnected
	}
	mo := messageOptions{}
	for _, opt := range opts {
		opt(&mo)
	}
	env, err := buildEnvelope(method, payload, c.creds, c.signers, mo)
	if err != nil {
		return nil, err
	}
	data, err := utils.Json.Marshal(env)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("Sending request %s: %s", env.ID, method)
	return c.wsm.Send(ctx, data, wsmanager.SendOptions{
		ID:           env.ID,
		PromiseBased: true,
		Timeout:      c.opts.timeout,
	})
}

func (c *Client) prepareURL() string {
	url := c.opts.wsURL
	if c.opts.timeUnit == "" {
		return url
	}
	if _, err := utils.ValidateTimeUnit(c.opts.timeUnit); err != nil {
		c.log.Error(err)
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "timeUnit=" + c.opts.timeUnit
}

// onMessage runs on the socket's read goroutine; anomalies are logged, never returned.
func (c *Client) onMessage(data []byte, conn *wsmanager.Connection) {
	j, err := simplejson.NewJson(data)
	if err != nil {
		c.log.Errorf("Failed to parse WebSocket message: %s", data)
		return
	}
	id, _ := j.Get("id").String()
	if id == "" || !conn.HasPending(id) {
		c.log.Warnf("Received response for unknown or timed-out request: %s", data)
		return
	}

	var rateLimits []limiter.RateLimit
	if rl, ok := j.CheckGet("rateLimits"); ok {
		raw, _ := rl.MarshalJSON()
		if err := utils.Json.Unmarshal(raw, &rateLimits); err != nil {
			c.log.Warnf("Invalid rateLimits in response %s: %v", id, err)
		}
	}
	if c.opts.limiter != nil && len(rateLimits) > 0 {
		if err := c.opts.limiter.Update(context.Background(), rateLimits); err != nil {
			c.log.Errorf("update rate limiter: %v", err)
		}
	}

	status, _ := j.Get("status").Int()
	if status != 200 {
		apiErr := &wsmanager.APIError{Status: status}
		if msg, err := j.Get("message").String(); err == nil {
			apiErr.Message = msg
		} else {
			apiErr.Message, _ = j.GetPath("error", "msg").String()
		}
		apiErr.Code, _ = j.GetPath("error", "code").Int64()
		conn.ResolvePending(id, wsmanager.Result{Err: apiErr})
		return
	}

	result, ok := j.CheckGet("result")
	if !ok || result.Interface() == nil {
		result = j.Get("response")
	}
	raw, err := result.MarshalJSON()
	if err != nil {
		conn.ResolvePending(id, wsmanager.Result{Err: err})
		return
	}
	conn.ResolvePending(id, wsmanager.Result{Response: &wsmanager.Response{Data: raw, RateLimits: rateLimits}})
}
