// redislimiter 将限流状态保存在 redis 中，多个进程共用同一出口 ip 时共享权重统计
package redislimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/go-gotop/bnconnector/limiter"
)

var _ limiter.Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(rdb *redis.Client, opts ...limiter.Option) *RedisLimiter {
	o := limiter.DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &RedisLimiter{
		rdb:  rdb,
		opts: o,
	}
}

type RedisLimiter struct {
	rdb  *redis.Client    // redis客户端
	opts *limiter.Options // 配置
}

func (r *RedisLimiter) weightKey() string {
	return r.opts.KeyPrefix + ":weight"
}

func (r *RedisLimiter) banKey() string {
	return r.opts.KeyPrefix + ":ban"
}

func (r *RedisLimiter) usageKey(key string) string {
	return r.opts.KeyPrefix + ":usage:" + key
}

// Allow redis 不可用时放行，请求失败由交易所返回的错误处理
func (r *RedisLimiter) Allow(ctx context.Context) bool {
	banned, err := r.rdb.Exists(ctx, r.banKey()).Result()
	if err != nil {
		return true
	}
	if banned > 0 {
		return false
	}
	if r.opts.MaxWeight <= 0 {
		return true
	}

	w, err := r.rdb.IncrBy(ctx, r.weightKey(), int64(r.opts.RequestWeight)).Result()
	if err != nil {
		return true
	}
	if w == int64(r.opts.RequestWeight) {
		r.rdb.Expire(ctx, r.weightKey(), r.opts.WeightWindow)
	}
	if w > int64(r.opts.MaxWeight) {
		r.rdb.DecrBy(ctx, r.weightKey(), int64(r.opts.RequestWeight))
		return false
	}
	return true
}

func (r *RedisLimiter) Update(ctx context.Context, limits []limiter.RateLimit) error {
	if len(limits) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, l := range limits {
			pipe.Set(ctx, r.usageKey(l.Key()), l.Count, l.Window())
			if l.RateLimitType == limiter.RequestWeight && l.Window() == r.opts.WeightWindow {
				pipe.Set(ctx, r.weightKey(), l.Count, l.Window())
			}
			if l.RetryAfter > 0 {
				pipe.Set(ctx, r.banKey(), l.RetryAfter, time.Duration(l.RetryAfter)*time.Second)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update rate limits: %w", err)
	}
	return nil
}

// Usage 最近一次上报的计数
func (r *RedisLimiter) Usage(ctx context.Context, t limiter.RateLimitType, interval limiter.Interval, intervalNum int) (int, bool, error) {
	key := limiter.RateLimit{RateLimitType: t, Interval: interval, IntervalNum: intervalNum}.Key()
	n, err := r.rdb.Get(ctx, r.usageKey(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
