package broker

import (
	"context"
	"strconv"
)

const (
	StreamDataTopicType string = "STREAM.DATA"
)

const (
	HeaderStream     = "stream"
	HeaderReceivedAt = "received_at"
)

type Headers map[string]string

// Message 是转发给消息队列的一条 stream 数据
type Message struct {
	Key     string
	Headers Headers
	Body    []byte
}

// Publisher writes messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *Message) error
	Close() error
}

// StreamEvent is the decoded form of a relayed stream message.
type StreamEvent struct {
	Stream     string
	ReceivedAt int64
	Data       []byte
}

// NewStreamEvent reads back a message written by a stream relay.
func NewStreamEvent(msg *Message) *StreamEvent {
	evt := &StreamEvent{
		Stream: msg.Headers[HeaderStream],
		Data:   msg.Body,
	}
	if evt.Stream == "" {
		evt.Stream = msg.Key
	}
	if ts, ok := msg.Headers[HeaderReceivedAt]; ok {
		evt.ReceivedAt, _ = strconv.ParseInt(ts, 10, 64)
	}
	return evt
}
