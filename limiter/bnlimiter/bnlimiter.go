package bnlimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/go-gotop/bnconnector/limiter"
)

var _ limiter.Limiter = (*BinanceLimiter)(nil)

// NewBinanceLimiter 进程内限流器
func NewBinanceLimiter(opts ...limiter.Option) *BinanceLimiter {
	o := limiter.DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	b := &BinanceLimiter{
		opts:          o,
		usage:         make(map[string]usageEntry),
		lastResetTime: time.Now(),
		now:           time.Now,
	}
	if o.RequestsPerSecond > 0 {
		b.bucket = rate.NewLimiter(rate.Limit(o.RequestsPerSecond), o.Burst)
	}
	return b
}

type usageEntry struct {
	record  limiter.RateLimit
	expires time.Time
}

type BinanceLimiter struct {
	opts *limiter.Options // 配置

	mu            sync.Mutex
	weight        int                   // 当前窗口权重统计
	lastResetTime time.Time             // 上次重置时间
	bannedUntil   time.Time             // retry-after 期间拒绝请求
	usage         map[string]usageEntry // 交易所返回的用量
	bucket        *rate.Limiter         // 本地令牌桶

	now func() time.Time
}

// Allow 检查封禁、权重与令牌桶，通过时预占一次请求权重
func (b *BinanceLimiter) Allow(_ context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Before(b.bannedUntil) {
		return false
	}

	// 检查是否需要重置权重值
	if now.Sub(b.lastResetTime) > b.opts.WeightWindow {
		b.weight = 0
		b.lastResetTime = now
	}

	// 交易所下发了 limit 的记录（websocket API）
	for _, e := range b.usage {
		if now.After(e.expires) {
			continue
		}
		if e.record.Limit > 0 && e.record.Count >= e.record.Limit {
			return false
		}
	}

	if b.opts.MaxWeight > 0 && b.weight+b.opts.RequestWeight > b.opts.MaxWeight {
		return false
	}
	if b.bucket != nil && !b.bucket.AllowN(now, 1) {
		return false
	}

	b.weight += b.opts.RequestWeight
	return true
}

// Update 用交易所返回的用量覆盖本地统计
func (b *BinanceLimiter) Update(_ context.Context, limits []limiter.RateLimit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for _, l := range limits {
		b.usage[l.Key()] = usageEntry{record: l, expires: now.Add(l.Window())}
		if l.RateLimitType == limiter.RequestWeight && l.Window() == b.opts.WeightWindow {
			b.weight = l.Count
		}
		if l.RetryAfter > 0 {
			until := now.Add(time.Duration(l.RetryAfter) * time.Second)
			if until.After(b.bannedUntil) {
				b.bannedUntil = until
			}
		}
	}
	return nil
}

// Usage 最近一次上报的用量
func (b *BinanceLimiter) Usage(t limiter.RateLimitType, interval limiter.Interval, intervalNum int) (limiter.RateLimit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := limiter.RateLimit{RateLimitType: t, Interval: interval, IntervalNum: intervalNum}.Key()
	e, ok := b.usage[key]
	if !ok || b.now().After(e.expires) {
		return limiter.RateLimit{}, false
	}
	return e.record, true
}

// Weight 当前窗口已用权重
func (b *BinanceLimiter) Weight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.weight
}
