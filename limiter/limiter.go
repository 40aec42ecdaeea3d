package limiter

import (
	"context"
	"fmt"
	"time"
)

// RateLimitType REQUEST_WEIGHT, ORDERS, RAW_REQUESTS
type RateLimitType string

// Interval SECOND, MINUTE, HOUR, DAY
type Interval string

const (
	RequestWeight RateLimitType = "REQUEST_WEIGHT"
	Orders        RateLimitType = "ORDERS"
	RawRequests   RateLimitType = "RAW_REQUESTS"

	Second Interval = "SECOND"
	Minute Interval = "MINUTE"
	Hour   Interval = "HOUR"
	Day    Interval = "DAY"
)

// Duration length of one interval unit
func (i Interval) Duration() time.Duration {
	switch i {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	}
	return 0
}

// RateLimit is one usage record reported by the exchange, either through the
// x-mbx-* response headers or inside a websocket API response.
type RateLimit struct {
	RateLimitType RateLimitType `json:"rateLimitType"`
	Interval      Interval      `json:"interval"`
	IntervalNum   int           `json:"intervalNum"`
	// Limit is only reported by the websocket API.
	Limit int `json:"limit,omitempty"`
	Count int `json:"count"`
	// RetryAfter seconds, copied from the retry-after header
	RetryAfter int `json:"retryAfter,omitempty"`
}

// Key identifies the counter a record belongs to, e.g. "REQUEST_WEIGHT:MINUTE:1".
func (r RateLimit) Key() string {
	return fmt.Sprintf("%s:%s:%d", r.RateLimitType, r.Interval, r.IntervalNum)
}

// Window length of the counting window
func (r RateLimit) Window() time.Duration {
	n := r.IntervalNum
	if n <= 0 {
		n = 1
	}
	return r.Interval.Duration() * time.Duration(n)
}

// Limiter keeps client-side rate-limit state fed by exchange responses.
type Limiter interface {
	// Allow reports whether one more request may be sent now.
	Allow(ctx context.Context) bool
	// Update records the usage reported by a response.
	Update(ctx context.Context, limits []RateLimit) error
}
