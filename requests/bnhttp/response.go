package bnhttp

import (
	"net/http"

	"github.com/bitly/go-simplejson"

	"github.com/go-gotop/bnconnector/limiter"
)

// Response of a successful request. The body is only parsed when Data or JSON is called.
type Response struct {
	Status     int
	Header     http.Header
	RateLimits []limiter.RateLimit
	body       []byte
}

func newResponse(res *http.Response, body []byte) *Response {
	return &Response{
		Status:     res.StatusCode,
		Header:     res.Header,
		RateLimits: ParseRateLimitHeaders(res.Header),
		body:       body,
	}
}

// Body raw response body
func (r *Response) Body() []byte {
	return r.body
}

// Data decodes the body into v.
func (r *Response) Data(v interface{}) error {
	if err := Json.Unmarshal(r.body, v); err != nil {
		return &ConnectorError{Kind: ErrParse, Status: r.Status, Message: "failed to parse response body", Cause: err}
	}
	return nil
}

func (r *Response) JSON() (*simplejson.Json, error) {
	j, err := NewJSON(r.body)
	if err != nil {
		return nil, &ConnectorError{Kind: ErrParse, Status: r.Status, Message: "failed to parse response body", Cause: err}
	}
	return j, nil
}
