package streammanager

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/wsmanager/manager"
)

type Option func(*options)

type options struct {
	wsURL       string
	timeout     time.Duration // 连接超时时间
	timeUnit    string
	logger      log.Logger
	managerOpts []manager.Option
}

// WithWsURL stream base url, "/stream?streams=" is appended to it
func WithWsURL(u string) Option {
	return func(o *options) {
		o.wsURL = u
	}
}

// WithTimeout bounds Connect, default 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithTimeUnit(u exchange.TimeUnit) Option {
	return func(o *options) {
		o.timeUnit = string(u)
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithManagerOptions mode, pool size, dialer and the rest of the pool settings
func WithManagerOptions(opts ...manager.Option) Option {
	return func(o *options) {
		o.managerOpts = append(o.managerOpts, opts...)
	}
}
