package streammanager

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/bnconnector/utils"
	"github.com/go-gotop/bnconnector/wsmanager"
	"github.com/go-gotop/bnconnector/wsmanager/manager"
)

const (
	methodSubscribe   = "SUBSCRIBE"
	methodUnsubscribe = "UNSUBSCRIBE"
)

var requestIDRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Callback receives the "data" field of a stream message.
type Callback func(data []byte)

type subscription struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// Streams 管理 stream 的订阅状态，每个 stream 归属连接池中的一个连接
type Streams struct {
	opts *options
	log  *log.Helper
	wsm  *manager.Manager

	mux       sync.Mutex
	owners    map[string]*wsmanager.Connection
	callbacks map[string]map[string]Callback
}

func NewStreams(opts ...Option) *Streams {
	o := &options{
		timeout: 10 * time.Second,
		logger:  log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(o)
	}
	s := &Streams{
		opts:      o,
		log:       log.NewHelper(o.logger),
		owners:    make(map[string]*wsmanager.Connection),
		callbacks: make(map[string]map[string]Callback),
	}
	mopts := append([]manager.Option{manager.WithLogger(o.logger)}, o.managerOpts...)
	mopts = append(mopts,
		manager.WithOpenHandler(s.onOpen),
		manager.WithMessageHandler(s.onMessage),
		manager.WithReconnectURL(s.reconnectURL),
	)
	s.wsm = manager.NewManager(mopts...)
	return s
}

// Connect opens the pool with streams in the url. In pool mode every connection dials that
// url, so each event of those streams is delivered once per connection until the others
// reconnect. Only the first connection owns them and carries them across a reconnect.
func (s *Streams) Connect(ctx context.Context, streams ...string) error {
	if s.wsm.IsConnected(nil) {
		s.log.Info("WebSocket connection already established")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()
	if err := s.wsm.ConnectPool(ctx, s.prepareURL(streams)); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return wsmanager.ErrConnectionTimeout
		}
		return err
	}

	first := s.wsm.Connections()[0]
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, stream := range streams {
		if _, ok := s.owners[stream]; !ok {
			s.owners[stream] = first
		}
	}
	return nil
}

// Disconnect closes the pool and forgets every subscription, queued or sent, and callback.
func (s *Streams) Disconnect() error {
	err := s.wsm.Disconnect()
	for _, conn := range s.wsm.Connections() {
		conn.TakePendingSubscriptions()
	}
	s.mux.Lock()
	s.owners = make(map[string]*wsmanager.Connection)
	s.callbacks = make(map[string]map[string]Callback)
	s.mux.Unlock()
	return err
}

func (s *Streams) IsConnected() bool {
	return s.wsm.IsConnected(nil)
}

func (s *Streams) PingServer() {
	s.wsm.PingServer()
}

// Subscribe assigns each new stream to a connection in turn. Streams whose connection is
// not open yet are queued and subscribed once it opens. A 32 hex id is used as the request
// id, anything else gets a random one.
func (s *Streams) Subscribe(streams []string, id string) error {
	var order []*wsmanager.Connection
	batches := make(map[*wsmanager.Connection][]string)

	s.mux.Lock()
	for _, stream := range streams {
		if _, ok := s.owners[stream]; ok {
			continue
		}
		conn, err := s.wsm.GetConnection(true)
		if err != nil {
			s.mux.Unlock()
			return err
		}
		s.owners[stream] = conn
		if _, ok := batches[conn]; !ok {
			order = append(order, conn)
		}
		batches[conn] = append(batches[conn], stream)
	}
	s.mux.Unlock()

	for _, conn := range order {
		batch := batches[conn]
		if !s.wsm.IsConnected(conn) {
			s.log.Infof("Connection is not ready. Queuing subscription for streams: %s", strings.Join(batch, ","))
			conn.AddPendingSubscriptions(batch...)
			continue
		}
		if err := s.send(conn, methodSubscribe, batch, id); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe sends UNSUBSCRIBE for streams without remaining callbacks; streams that
// still have callbacks stay subscribed.
func (s *Streams) Unsubscribe(streams []string, id string) error {
	for _, stream := range streams {
		s.mux.Lock()
		conn, ok := s.owners[stream]
		if !ok || !s.wsm.IsConnected(conn) {
			s.mux.Unlock()
			s.log.Warnf("Stream %s not associated with an active connection.", stream)
			continue
		}
		if len(s.callbacks[stream]) > 0 {
			s.mux.Unlock()
			continue
		}
		delete(s.owners, stream)
		delete(s.callbacks, stream)
		s.mux.Unlock()

		if err := s.send(conn, methodUnsubscribe, []string{stream}, id); err != nil {
			return err
		}
	}
	return nil
}

// IsSubscribed reports whether stream is assigned to a connection.
func (s *Streams) IsSubscribed(stream string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	_, ok := s.owners[stream]
	return ok
}

// AddCallback registers cb for stream and returns the key to remove it with.
func (s *Streams) AddCallback(stream string, cb Callback) string {
	key := utils.RandomString()
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.callbacks[stream] == nil {
		s.callbacks[stream] = make(map[string]Callback)
	}
	s.callbacks[stream][key] = cb
	return key
}

func (s *Streams) RemoveCallback(stream, key string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	cbs := s.callbacks[stream]
	delete(cbs, key)
	if len(cbs) == 0 {
		delete(s.callbacks, stream)
	}
}

func (s *Streams) send(conn *wsmanager.Connection, method string, streams []string, id string) error {
	if !requestIDRe.MatchString(id) {
		id = utils.RandomString()
	}
	payload, err := utils.Json.Marshal(&subscription{ID: id, Method: method, Params: streams})
	if err != nil {
		return err
	}
	s.log.Debugf("%s %s", method, payload)
	_, err = s.wsm.Send(context.Background(), payload, wsmanager.SendOptions{Connection: conn})
	return err
}

func (s *Streams) onOpen(conn *wsmanager.Connection) {
	pending := conn.TakePendingSubscriptions()
	if len(pending) == 0 {
		return
	}
	s.log.Infof("Processing %d pending subscriptions for connection %s", len(pending), conn.ID())
	if err := s.send(conn, methodSubscribe, pending, ""); err != nil {
		s.log.Errorf("subscribe pending streams on %s: %v", conn.ID(), err)
	}
}

// reconnectURL only carries the streams owned by conn.
func (s *Streams) reconnectURL(conn *wsmanager.Connection) string {
	s.mux.Lock()
	streams := make([]string, 0)
	for stream, owner := range s.owners {
		if owner == conn {
			streams = append(streams, stream)
		}
	}
	s.mux.Unlock()
	sort.Strings(streams)
	return s.prepareURL(streams)
}

func (s *Streams) prepareURL(streams []string) string {
	url := s.opts.wsURL + "/stream?streams=" + strings.Join(streams, "/")
	if s.opts.timeUnit == "" {
		return url
	}
	if _, err := utils.ValidateTimeUnit(s.opts.timeUnit); err != nil {
		s.log.Error(err)
		return url
	}
	return url + "&timeUnit=" + s.opts.timeUnit
}

func (s *Streams) onMessage(data []byte, conn *wsmanager.Connection) {
	j, err := simplejson.NewJson(data)
	if err != nil {
		s.log.Errorf("Failed to parse WebSocket message: %s", data)
		return
	}
	stream, err := j.Get("stream").String()
	if err != nil {
		return
	}

	s.mux.Lock()
	cbs := make([]Callback, 0, len(s.callbacks[stream]))
	for _, cb := range s.callbacks[stream] {
		cbs = append(cbs, cb)
	}
	s.mux.Unlock()
	if len(cbs) == 0 {
		return
	}

	payload, err := j.Get("data").MarshalJSON()
	if err != nil {
		s.log.Errorf("Failed to encode data of stream %s: %v", stream, err)
		return
	}
	for _, cb := range cbs {
		cb(payload)
	}
}
