package apimanager

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/limiter"
	"github.com/go-gotop/bnconnector/wsmanager/manager"
)

type Option func(*options)

type options struct {
	wsURL                string
	timeout              time.Duration
	timeUnit             string
	apiKey               string
	apiSecret            string
	privateKey           string
	privateKeyPassphrase string
	logger               log.Logger
	limiter              limiter.Limiter
	managerOpts          []manager.Option
}

func WithWsURL(u string) Option {
	return func(o *options) { o.wsURL = u }
}

// WithTimeout bounds both Connect and every request, default 5s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithTimeUnit(u exchange.TimeUnit) Option {
	return func(o *options) { o.timeUnit = string(u) }
}

func APIKey(k string) Option {
	return func(o *options) { o.apiKey = k }
}

func APISecret(s string) Option {
	return func(o *options) { o.apiSecret = s }
}

// PrivateKey PEM text or path to a PEM file, RSA or Ed25519
func PrivateKey(k string) Option {
	return func(o *options) { o.privateKey = k }
}

func PrivateKeyPassphrase(p string) Option {
	return func(o *options) { o.privateKeyPassphrase = p }
}

// WithLogger is shared with the connection pool.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLimiter receives the rateLimits of every response.
func WithLimiter(l limiter.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithManagerOptions configures the underlying connection pool.
func WithManagerOptions(opts ...manager.Option) Option {
	return func(o *options) { o.managerOpts = append(o.managerOpts, opts...) }
}

// MessageOption define option type for SendMessage
type MessageOption func(*messageOptions)

type messageOptions struct {
	withAPIKey bool
	signed     bool
	skipAuth   bool
}

// WithAPIKey adds apiKey to the params.
func WithAPIKey() MessageOption {
	return func(o *messageOptions) { o.withAPIKey = true }
}

// WithSigned adds timestamp and signature to the params.
func WithSigned() MessageOption {
	return func(o *messageOptions) { o.signed = true }
}

// WithSkipAuth suppresses apiKey and signature, e.g. on a session-authenticated connection.
func WithSkipAuth() MessageOption {
	return func(o *messageOptions) { o.skipAuth = true }
}
