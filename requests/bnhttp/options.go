package bnhttp

import (
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/limiter"
)

type Option func(o *options)

type options struct {
	baseURL              string
	apiKey               string
	apiSecret            string
	privateKey           string
	privateKeyPassphrase string
	timeout              time.Duration
	retries              int
	backoff              time.Duration
	keepAlive            bool
	compression          bool
	proxyUrl             string
	timeOffset           int64
	timeUnit             string
	userAgent            string
	httpClient           *http.Client
	logger               *log.Helper
	tracerProvider       trace.TracerProvider
	limiter              limiter.Limiter
}

func BaseURL(b string) Option {
	return func(o *options) { o.baseURL = b }
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

// Timeout per attempt
func Timeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func Retries(n int) Option {
	return func(o *options) { o.retries = n }
}

// Backoff base delay; the n-th retry waits n*backoff
func Backoff(d time.Duration) Option {
	return func(o *options) { o.backoff = d }
}

func KeepAlive(b bool) Option {
	return func(o *options) { o.keepAlive = b }
}

func Compression(b bool) Option {
	return func(o *options) { o.compression = b }
}

func ProxyURL(p string) Option {
	return func(o *options) { o.proxyUrl = p }
}

func HttpClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

func TimeOffset(t int64) Option {
	return func(o *options) { o.timeOffset = t }
}

// TimeUnit default X-MBX-TIME-UNIT of every request, WithTimeUnit overrides it
func TimeUnit(u exchange.TimeUnit) Option {
	return func(o *options) { o.timeUnit = string(u) }
}

func UserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = log.NewHelper(logger) }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithLimiter feeds every response's rate limits to l and asks it before sending.
func WithLimiter(l limiter.Limiter) Option {
	return func(o *options) { o.limiter = l }
}
