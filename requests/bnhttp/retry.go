package bnhttp

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ShouldRetryRequest reports whether a failed attempt is retried: only GET and DELETE, only
// for 500/502/503/504 or when no response was received, and only while retries are left.
func ShouldRetryRequest(method string, status int, hasResponse bool, retriesLeft int) bool {
	if retriesLeft <= 0 {
		return false
	}
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodDelete:
	default:
		return false
	}
	if !hasResponse {
		return true
	}
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
