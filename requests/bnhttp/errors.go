package bnhttp

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/bitly/go-simplejson"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrRateLimitBan    = errors.New("rate limit ban")
	ErrTooManyRequests = errors.New("too many requests")
	ErrServerError     = errors.New("server error")
	ErrNetwork         = errors.New("network error")
	ErrRequestFailed   = errors.New("request failed")
	ErrConnectorClient = errors.New("connector client error")
	ErrParse           = errors.New("parse error")
)

// ConnectorError is returned for every failed request. Kind is one of the Err* values
// above and can be matched with errors.Is.
type ConnectorError struct {
	Kind    error
	Status  int
	Code    int64 // exchange error code, when the body carried one
	Message string
	Cause   error
}

func (e *ConnectorError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *ConnectorError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// IsConnectorError check if e is a ConnectorError
func IsConnectorError(e error) bool {
	var ce *ConnectorError
	return errors.As(e, &ce)
}

type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyRaw
	bodyParsed
)

// errorBody is an error response payload decoded without trusting its shape.
type errorBody struct {
	kind   bodyKind
	raw    string
	parsed *simplejson.Json
}

func decodeErrorBody(data []byte) errorBody {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errorBody{kind: bodyEmpty}
	}
	j, err := NewJSON(trimmed)
	if err != nil {
		return errorBody{kind: bodyRaw, raw: string(trimmed)}
	}
	if _, err := j.Map(); err != nil {
		return errorBody{kind: bodyRaw, raw: string(trimmed)}
	}
	return errorBody{kind: bodyParsed, parsed: j}
}

func (b errorBody) message() string {
	if b.kind != bodyParsed {
		return ""
	}
	msg, _ := b.parsed.Get("msg").String()
	return msg
}

func (b errorBody) code() int64 {
	if b.kind != bodyParsed {
		return 0
	}
	code, _ := b.parsed.Get("code").Int64()
	return code
}

// errorFromResponse maps an HTTP error status to the error taxonomy.
func errorFromResponse(status int, data []byte) *ConnectorError {
	body := decodeErrorBody(data)
	e := &ConnectorError{
		Status:  status,
		Code:    body.code(),
		Message: body.message(),
	}
	switch status {
	case http.StatusBadRequest:
		e.Kind = ErrBadRequest
	case http.StatusUnauthorized:
		e.Kind = ErrUnauthorized
	case http.StatusForbidden:
		e.Kind = ErrForbidden
	case http.StatusNotFound:
		e.Kind = ErrNotFound
	case http.StatusTeapot:
		e.Kind = ErrRateLimitBan
	case http.StatusTooManyRequests:
		e.Kind = ErrTooManyRequests
	default:
		if status >= 500 && status < 600 {
			e.Kind = ErrServerError
			e.Message = fmt.Sprintf("Server error: %d", status)
		} else {
			e.Kind = ErrConnectorClient
		}
	}
	return e
}
