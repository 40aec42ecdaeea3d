package bnhttp

import (
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gotop/bnconnector/limiter"
)

var rateLimitHeaderRe = regexp.MustCompile(`(?i)^x-mbx-(used-weight|order-count)-(\d+[smhd])$`)

// ParseRateLimitHeaders turns x-mbx-used-weight-<N><unit> and x-mbx-order-count-<N><unit>
// headers into records, ordered by header name. A retry-after value is copied onto every record.
func ParseRateLimitHeaders(h http.Header) []limiter.RateLimit {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	var limits []limiter.RateLimit
	for _, name := range names {
		m := rateLimitHeaderRe.FindStringSubmatch(name)
		if m == nil || len(h[name]) == 0 {
			continue
		}
		interval, num, err := limiter.ParsePeriod(m[2])
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(h[name][0]))
		if err != nil {
			continue
		}
		t := limiter.RequestWeight
		if strings.EqualFold(m[1], "order-count") {
			t = limiter.Orders
		}
		limits = append(limits, limiter.RateLimit{
			RateLimitType: t,
			Interval:      interval,
			IntervalNum:   num,
			Count:         count,
		})
	}

	if v := h.Get("Retry-After"); v != "" {
		if retryAfter, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			for i := range limits {
				limits[i].RetryAfter = retryAfter
			}
		}
	}
	return limits
}
