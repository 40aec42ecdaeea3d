package kafka

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

type Option func(*options)

type options struct {
	addrs        []string
	topic        string
	writeTimeout time.Duration
	batchTimeout time.Duration
	async        bool
	logger       log.Logger
	writer       Writer
}

func WithAddrs(addrs ...string) Option {
	return func(o *options) {
		o.addrs = addrs
	}
}

// WithTopic 默认的转发 topic
func WithTopic(topic string) Option {
	return func(o *options) {
		o.topic = topic
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

func WithBatchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.batchTimeout = d
	}
}

// WithAsync makes Publish return without waiting for the broker ack.
func WithAsync(async bool) Option {
	return func(o *options) {
		o.async = async
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWriter replaces the kafka writer, addrs and timeouts are then ignored.
func WithWriter(w Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}
