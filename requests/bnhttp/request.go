package bnhttp

import (
	"net/http"

	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/utils"
)

type SecType int

const (
	SecTypeNone SecType = iota
	SecTypeSigned // if the 'timestamp' parameter is required
)

type Params = utils.Params

// Request define an API request
type Request struct {
	Method     string
	Endpoint   string
	SecType    SecType
	params     Params
	timeUnit   string
	recvWindow int64
	header     http.Header
	fullURL    string
}

// FullURL is set once the request has been parsed by the client.
func (r *Request) FullURL() string {
	return r.fullURL
}

func (r *Request) Header() http.Header {
	return r.header
}

// RequestOption define option type for request
type RequestOption func(*Request)

// WithSigned adds timestamp and signature to the query
func WithSigned() RequestOption {
	return func(r *Request) {
		r.SecType = SecTypeSigned
	}
}

// WithTimeUnit sets the X-MBX-TIME-UNIT header
func WithTimeUnit(u exchange.TimeUnit) RequestOption {
	return func(r *Request) {
		r.timeUnit = string(u)
	}
}

// WithRecvWindow set recvWindow param for the request
func WithRecvWindow(recvWindow int64) RequestOption {
	return func(r *Request) {
		r.recvWindow = recvWindow
	}
}

// WithHeader set or add a header value to the request
func WithHeader(key, value string, replace bool) RequestOption {
	return func(r *Request) {
		if r.header == nil {
			r.header = http.Header{}
		}
		if replace {
			r.header.Set(key, value)
		} else {
			r.header.Add(key, value)
		}
	}
}

// WithHeaders set or replace the headers of the request
func WithHeaders(header http.Header) RequestOption {
	return func(r *Request) {
		r.header = header.Clone()
	}
}
