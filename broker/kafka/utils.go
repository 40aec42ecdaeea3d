package kafka

import (
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/go-gotop/bnconnector/broker"
)

func kafkaHeaderToMap(h []kafkaGo.Header) broker.Headers {
	m := broker.Headers{}
	for _, v := range h {
		m[v.Key] = string(v.Value)
	}
	return m
}

func mapToKafkaHeader(m broker.Headers) []kafkaGo.Header {
	h := make([]kafkaGo.Header, 0, len(m))
	for k, v := range m {
		h = append(h, kafkaGo.Header{Key: k, Value: []byte(v)})
	}
	return h
}

// ToMessage converts a consumed kafka message back to a broker message.
func ToMessage(msg kafkaGo.Message) *broker.Message {
	return &broker.Message{
		Key:     string(msg.Key),
		Headers: kafkaHeaderToMap(msg.Headers),
		Body:    msg.Value,
	}
}
