package bnhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/go-kratos/kratos/v2/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/signer"
	"github.com/go-gotop/bnconnector/utils"
)

const tracerName = "github.com/go-gotop/bnconnector/requests/bnhttp"

// Redefining the standard package
var Json = jsoniter.ConfigCompatibleWithStandardLibrary

func NewJSON(data []byte) (j *simplejson.Json, err error) {
	j, err = simplejson.NewJson(data)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func defaultUserAgent() string {
	return fmt.Sprintf("bnconnector-go/1.0.0 (Go/%s; %s; %s)", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// NewClient builds a REST client. The configuration is fixed once the client exists.
func NewClient(ops ...Option) *Client {
	opts := &options{
		timeout:     time.Second,
		retries:     3,
		backoff:     time.Second,
		keepAlive:   true,
		compression: true,
		userAgent:   defaultUserAgent(),
		logger:      log.NewHelper(log.DefaultLogger),
	}
	for _, o := range ops {
		o(opts)
	}
	if opts.tracerProvider == nil {
		opts.tracerProvider = otel.GetTracerProvider()
	}
	if opts.httpClient == nil {
		tr := &http.Transport{
			Proxy:              http.ProxyFromEnvironment,
			DisableCompression: true,
			DisableKeepAlives:  !opts.keepAlive,
		}
		if opts.proxyUrl != "" {
			proxy, err := url.Parse(opts.proxyUrl)
			if err != nil {
				panic(err)
			}
			tr.Proxy = http.ProxyURL(proxy)
		}
		opts.httpClient = &http.Client{Transport: tr}
	}

	c := &Client{
		opts:    opts,
		signers: signer.NewCache(),
		tracer:  opts.tracerProvider.Tracer(tracerName),
	}
	if opts.apiKey != "" || opts.apiSecret != "" || opts.privateKey != "" {
		c.creds = &signer.Credentials{
			APIKey:               opts.apiKey,
			APISecret:            opts.apiSecret,
			PrivateKey:           opts.privateKey,
			PrivateKeyPassphrase: opts.privateKeyPassphrase,
		}
	}
	return c
}

// Client define API client
type Client struct {
	opts    *options
	creds   *signer.Credentials
	signers *signer.Cache
	tracer  trace.Tracer
}

// ClearSignerCache drops the parsed keys; the next signed request loads them again.
func (c *Client) ClearSignerCache() {
	c.signers.Clear()
}

func (c *Client) BaseURL() string {
	return c.opts.baseURL
}

func (c *Client) parseRequest(r *Request, opts ...RequestOption) (err error) {
	if r.timeUnit == "" {
		r.timeUnit = c.opts.timeUnit
	}
	// set request options from user
	for _, opt := range opts {
		opt(r)
	}
	if _, err = utils.ValidateTimeUnit(r.timeUnit); err != nil {
		return err
	}

	params := make(Params, len(r.params)+3)
	for k, v := range r.params {
		params[k] = v
	}
	if r.recvWindow > 0 {
		params[exchange.RecvWindowKey] = r.recvWindow
	}

	var queryString string
	if r.SecType == SecTypeSigned {
		params[exchange.TimestampKey] = utils.Timestamp() - c.opts.timeOffset
		sig, err := c.signers.Sign(c.creds, params)
		if err != nil {
			return err
		}
		// the query sent is the exact string that was signed
		queryString = utils.BuildQueryString(params) + "&" + exchange.SignatureKey + "=" + utils.EncodeURIComponent(sig)
	} else {
		sp := utils.NewSearchParams()
		utils.SetSearchParams(sp, params)
		queryString = sp.Encode()
	}

	fullURL := c.opts.baseURL + r.Endpoint
	if queryString != "" {
		fullURL = fmt.Sprintf("%s?%s", fullURL, queryString)
	}

	header := http.Header{}
	if r.header != nil {
		header = r.header.Clone()
	}
	if c.opts.apiKey != "" {
		header.Set(exchange.APIKeyHeader, c.opts.apiKey)
	}
	header.Set("User-Agent", c.opts.userAgent)
	if r.timeUnit != "" {
		header.Set(exchange.TimeUnitHeader, r.timeUnit)
	}
	if c.opts.compression {
		header.Set("Accept-Encoding", "gzip, deflate")
	} else {
		header.Set("Accept-Encoding", "identity")
	}

	r.fullURL = fullURL
	r.header = header
	return nil
}

// SendRequest calls endpoint with params. The request is only retried for GET and DELETE.
func (c *Client) SendRequest(ctx context.Context, endpoint, method string, params Params, opts ...RequestOption) (*Response, error) {
	r := &Request{
		Method:   strings.ToUpper(method),
		Endpoint: endpoint,
		params:   params,
	}
	return c.CallAPI(ctx, r, opts...)
}

func (c *Client) CallAPI(ctx context.Context, r *Request, opts ...RequestOption) (resp *Response, err error) {
	if err = c.parseRequest(r, opts...); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "bnhttp.CallAPI", trace.WithAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("bnhttp.endpoint", r.Endpoint),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// retries bounds the total number of attempts
	retries := c.opts.retries
	attempt := 0
	for {
		attempt++
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("bnhttp.attempt", attempt)))

		if c.opts.limiter != nil && !c.opts.limiter.Allow(ctx) {
			return nil, &ConnectorError{Kind: ErrTooManyRequests, Status: http.StatusTooManyRequests, Message: "local rate limit exceeded"}
		}

		res, data, doErr := c.do(ctx, r)
		if doErr != nil {
			if ctx.Err() == nil && ShouldRetryRequest(r.Method, 0, false, retries-attempt) {
				c.opts.logger.Warnf("request %s %s failed: %v, retry %d/%d", r.Method, r.Endpoint, doErr, attempt, retries)
				if err = sleep(ctx, c.opts.backoff*time.Duration(attempt)); err != nil {
					return nil, &ConnectorError{Kind: ErrNetwork, Message: "Network error or request timeout.", Cause: err}
				}
				continue
			}
			if retries > 0 && attempt >= retries {
				return nil, &ConnectorError{Kind: ErrRequestFailed, Message: fmt.Sprintf("Request failed after %d retries", retries), Cause: doErr}
			}
			return nil, &ConnectorError{Kind: ErrNetwork, Message: "Network error or request timeout.", Cause: doErr}
		}

		resp = newResponse(res, data)
		span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
		c.updateLimiter(ctx, resp)

		if res.StatusCode >= http.StatusBadRequest {
			if ShouldRetryRequest(r.Method, res.StatusCode, true, retries-attempt) {
				c.opts.logger.Warnf("request %s %s got status %d, retry %d/%d", r.Method, r.Endpoint, res.StatusCode, attempt, retries)
				if err = sleep(ctx, c.opts.backoff*time.Duration(attempt)); err != nil {
					return nil, &ConnectorError{Kind: ErrNetwork, Message: "Network error or request timeout.", Cause: err}
				}
				continue
			}
			return nil, errorFromResponse(res.StatusCode, data)
		}
		return resp, nil
	}
}

func (c *Client) updateLimiter(ctx context.Context, resp *Response) {
	if c.opts.limiter == nil || len(resp.RateLimits) == 0 {
		return
	}
	if err := c.opts.limiter.Update(ctx, resp.RateLimits); err != nil {
		c.opts.logger.Errorf("update rate limiter: %v", err)
	}
}

// do runs a single attempt and returns the decoded body.
func (c *Client) do(ctx context.Context, r *Request) (_ *http.Response, data []byte, err error) {
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.fullURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header = r.header.Clone()

	res, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		cerr := res.Body.Close()
		// Only overwrite the retured error if the original error was nil and an
		// error occurred while closing the body.
		if err == nil && cerr != nil {
			err = cerr
		}
	}()

	var body io.Reader = res.Body
	switch strings.ToLower(res.Header.Get("Content-Encoding")) {
	case "gzip":
		gr, gerr := gzip.NewReader(res.Body)
		if gerr != nil {
			return nil, nil, gerr
		}
		defer gr.Close()
		body = gr
	case "deflate":
		zr, zerr := zlib.NewReader(res.Body)
		if zerr != nil {
			return nil, nil, zerr
		}
		defer zr.Close()
		body = zr
	}
	data, err = io.ReadAll(body)
	if err != nil {
		return nil, nil, err
	}
	return res, data, nil
}
