package streammanager

import (
	"sync"

	"github.com/go-gotop/bnconnector/utils"
)

// StreamHandler is a typed view of one stream. Every callback registered with On gets the
// decoded payload.
type StreamHandler[T any] struct {
	s      *Streams
	stream string
	id     string

	mux  sync.Mutex
	keys []string
}

// NewStreamHandler subscribes to stream right away.
func NewStreamHandler[T any](s *Streams, stream, id string) (*StreamHandler[T], error) {
	if err := s.Subscribe([]string{stream}, id); err != nil {
		return nil, err
	}
	return &StreamHandler[T]{s: s, stream: stream, id: id}, nil
}

func (h *StreamHandler[T]) Stream() string {
	return h.stream
}

// On registers cb. Payloads that do not decode into T are logged and dropped.
func (h *StreamHandler[T]) On(cb func(T)) {
	key := h.s.AddCallback(h.stream, func(data []byte) {
		var v T
		if err := utils.Json.Unmarshal(data, &v); err != nil {
			h.s.log.Errorf("Failed to decode message of stream %s: %v", h.stream, err)
			return
		}
		cb(v)
	})
	h.mux.Lock()
	h.keys = append(h.keys, key)
	h.mux.Unlock()
}

// Unsubscribe removes the callbacks of this handler, then unsubscribes the stream unless
// another handler still listens to it.
func (h *StreamHandler[T]) Unsubscribe() error {
	h.mux.Lock()
	keys := h.keys
	h.keys = nil
	h.mux.Unlock()
	for _, key := range keys {
		h.s.RemoveCallback(h.stream, key)
	}
	return h.s.Unsubscribe([]string{h.stream}, h.id)
}
