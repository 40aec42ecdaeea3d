package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/go-gotop/bnconnector/broker"
)

var _ broker.Publisher = (*Relay)(nil)

// Writer is the part of *kafka.Writer the relay uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// Relay 把 stream 数据转发到 kafka，stream 名作为消息 key
type Relay struct {
	opts   *options
	log    *log.Helper
	writer Writer
}

func NewRelay(opts ...Option) *Relay {
	o := &options{
		addrs:        []string{"127.0.0.1:9092"},
		topic:        "binance.streams",
		writeTimeout: 5 * time.Second,
		batchTimeout: 10 * time.Millisecond,
		logger:       log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(o)
	}
	helper := log.NewHelper(o.logger)
	r := &Relay{
		opts:   o,
		log:    helper,
		writer: o.writer,
	}
	if r.writer == nil {
		r.writer = &kafkaGo.Writer{
			Addr:         kafkaGo.TCP(o.addrs...),
			Balancer:     &kafkaGo.Hash{},
			RequiredAcks: kafkaGo.RequireOne,
			WriteTimeout: o.writeTimeout,
			BatchTimeout: o.batchTimeout,
			Async:        o.async,
			Logger:       &Logger{logger: helper},
			ErrorLogger:  &ErrorLogger{logger: helper},
		}
	}
	return r
}

func (r *Relay) Publish(ctx context.Context, topic string, msg *broker.Message) error {
	if topic == "" {
		topic = r.opts.topic
	}
	return r.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: mapToKafkaHeader(msg.Headers),
	})
}

// Callback returns a stream callback that publishes every payload of stream to the
// default topic. Write errors are logged.
func (r *Relay) Callback(stream string) func(data []byte) {
	return func(data []byte) {
		msg := &broker.Message{
			Key: stream,
			Headers: broker.Headers{
				broker.HeaderStream:     stream,
				broker.HeaderReceivedAt: strconv.FormatInt(time.Now().UnixMilli(), 10),
			},
			Body: data,
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.writeTimeout)
		defer cancel()
		if err := r.Publish(ctx, "", msg); err != nil {
			r.log.Errorf("relay stream %s to kafka: %v", stream, err)
		}
	}
}

func (r *Relay) Close() error {
	return r.writer.Close()
}
