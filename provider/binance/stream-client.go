package binance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"

	"github.com/spooky-finn/go-marketdepth/domain"
	"github.com/spooky-finn/go-marketdepth/helpers"
	"github.com/spooky-finn/go-marketdepth/logger"
)

const (
	// Binance closes idle connections after ~10 minutes without a pong.
	pingDelay = 9 * time.Minute

	handshakeTimeout = 5 * time.Second
)

var streamLogger = logger.Component("binance-stream-client")

type wsRequest struct {
	ReqID  int      `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// streamMessage is the combined-stream envelope: every payload arrives
// wrapped with the topic it belongs to.
type streamMessage[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

// subscriptionEntry owns one topic channel. Only the read goroutine sends on
// ch, and only it may close ch; unsubscribing closes done instead, which
// releases any in-flight send.
type subscriptionEntry struct {
	ch              chan []byte
	done            chan struct{}
	subscriberCount int
}

// StreamClient multiplexes topic subscriptions over one reconnecting
// WebSocket connection to the combined stream endpoint.
type StreamClient struct {
	endpoint string

	conn *recws.RecConn
	done chan struct{}

	mu            sync.Mutex
	subscriptions map[string]*subscriptionEntry
}

func NewStreamClient(endpoint string) *StreamClient {
	return &StreamClient{
		endpoint:      endpoint,
		done:          make(chan struct{}),
		subscriptions: make(map[string]*subscriptionEntry),
	}
}

func (c *StreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		KeepAliveTimeout: pingDelay,
		NonVerbose:       true,
	}
	conn.Dial(c.endpoint, nil)
	c.conn = conn

	go c.read()
	return nil
}

func (c *StreamClient) Subscribe(topic string) (*domain.Subscription[[]byte], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("stream client is not connected")
	}

	entry, ok := c.subscriptions[topic]
	if ok {
		entry.subscriberCount++
	} else {
		entry = &subscriptionEntry{
			ch:              make(chan []byte),
			done:            make(chan struct{}),
			subscriberCount: 1,
		}
		c.subscriptions[topic] = entry

		req := wsRequest{
			ReqID:  helpers.RandomReqID(),
			Method: "SUBSCRIBE",
			Params: []string{topic},
		}
		streamLogger.WithField("topic", topic).Info("subscribing")
		streamLogger.WithField("request", helpers.ToJSONString(req)).Debug("sending subscribe frame")
		if err := c.conn.WriteJSON(req); err != nil {
			delete(c.subscriptions, topic)
			return nil, fmt.Errorf("send subscribe message for topic=%s: %w", topic, err)
		}
	}

	return &domain.Subscription[[]byte]{
		Stream:      entry.ch,
		Topic:       topic,
		Unsubscribe: func() { c.unsubscribe(topic) },
	}, nil
}

func (c *StreamClient) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.subscriptions[topic]
	if !ok {
		return
	}

	if entry.subscriberCount > 1 {
		entry.subscriberCount--
		return
	}

	streamLogger.WithField("topic", topic).Info("unsubscribing")
	close(entry.done)
	delete(c.subscriptions, topic)

	err := c.conn.WriteJSON(wsRequest{
		ReqID:  helpers.RandomReqID(),
		Method: "UNSUBSCRIBE",
		Params: []string{topic},
	})
	if err != nil {
		streamLogger.WithError(err).WithField("topic", topic).Warn("failed to send unsubscribe message")
	}
}

// Close tears down the connection and closes every subscription stream,
// which downstream consumers observe as a disconnect.
func (c *StreamClient) Close() {
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *StreamClient) read() {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				c.closeAllSubscriptions()
				return
			default:
			}
			streamLogger.WithError(err).Warn("read failed, waiting for reconnect")
			time.Sleep(time.Second)
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}

		c.dispatch(msg)
	}
}

func (c *StreamClient) dispatch(msg []byte) {
	var envelope struct {
		Stream string `json:"stream"`
		ID     *int   `json:"id"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		streamLogger.WithError(err).Warn("unparseable stream message")
		return
	}

	// Subscribe/unsubscribe acks carry an id and no stream field.
	if envelope.ID != nil {
		streamLogger.WithField("reqId", *envelope.ID).Debug("received ack")
		return
	}
	if envelope.Stream == "" {
		return
	}

	c.mu.Lock()
	entry, ok := c.subscriptions[envelope.Stream]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case entry.ch <- msg:
	case <-entry.done:
	case <-c.done:
	}
}

func (c *StreamClient) closeAllSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for topic, entry := range c.subscriptions {
		close(entry.ch)
		delete(c.subscriptions, topic)
	}
}
