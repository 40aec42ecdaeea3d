package limiter

import "time"

type Option func(*Options)

type Options struct {
	// 每个窗口允许的最大请求权重，0 表示不限制
	MaxWeight int
	// 权重窗口
	WeightWindow time.Duration
	// 每次请求本地预占的权重
	RequestWeight int
	// 本地令牌桶，每秒请求数，0 表示不启用
	RequestsPerSecond float64
	Burst             int
	// redis key 前缀
	KeyPrefix string
}

// DefaultOptions spot 默认值：每分钟 6000 权重
func DefaultOptions() *Options {
	return &Options{
		MaxWeight:     6000,
		WeightWindow:  time.Minute,
		RequestWeight: 1,
		Burst:         1,
		KeyPrefix:     "bnconnector:limiter",
	}
}

func WithMaxWeight(w int) Option {
	return func(o *Options) {
		o.MaxWeight = w
	}
}

func WithWeightWindow(d time.Duration) Option {
	return func(o *Options) {
		o.WeightWindow = d
	}
}

func WithRequestWeight(w int) Option {
	return func(o *Options) {
		o.RequestWeight = w
	}
}

func WithRequestsPerSecond(rps float64, burst int) Option {
	return func(o *Options) {
		o.RequestsPerSecond = rps
		o.Burst = burst
	}
}

func WithKeyPrefix(p string) Option {
	return func(o *Options) {
		o.KeyPrefix = p
	}
}
