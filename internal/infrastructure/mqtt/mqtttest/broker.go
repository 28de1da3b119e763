// Package mqtttest provides an in-memory stand-in for the paho client so
// that code built on the mqtt package can be tested without a broker.
//
// A Broker implements pahomqtt.Client for exactly one connected client.
// Deliveries run synchronously on the caller's goroutine.
package mqtttest

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
)

// ErrRefused is the connect error used by Unreachable.
var ErrRefused = errors.New("dial tcp 127.0.0.1:1883: connect: connection refused")

// Published records one publish made through the broker.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Broker is a fake pahomqtt.Client.
type Broker struct {
	mu          sync.Mutex
	opts        *pahomqtt.ClientOptions
	connected   bool
	connectErr  error
	stalled     bool
	publishErr  error
	disconnects int
	refused     map[string]bool
	routes      map[string]route
	published   []Published
}

type route struct {
	qos      byte
	callback pahomqtt.MessageHandler
}

// NewBroker returns an empty broker that accepts connections.
func NewBroker() *Broker {
	return &Broker{
		refused: make(map[string]bool),
		routes:  make(map[string]route),
	}
}

// NewClient satisfies mqtt.NewClientFunc.
func (b *Broker) NewClient(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	b.mu.Lock()
	b.opts = opts
	b.mu.Unlock()
	return b
}

// Options returns the options the client was built with.
func (b *Broker) Options() *pahomqtt.ClientOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts
}

// Unreachable makes the next Connect fail like a refused TCP dial.
func (b *Broker) Unreachable() {
	b.FailConnect(ErrRefused)
}

// FailConnect makes the next Connect fail with err.
func (b *Broker) FailConnect(err error) {
	b.mu.Lock()
	b.connectErr = err
	b.mu.Unlock()
}

// Stall makes the next Connect hang until the caller gives up.
func (b *Broker) Stall() {
	b.mu.Lock()
	b.stalled = true
	b.mu.Unlock()
}

// Disconnects returns how many times Disconnect was called.
func (b *Broker) Disconnects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disconnects
}

// FailPublish makes every Publish fail with err.
func (b *Broker) FailPublish(err error) {
	b.mu.Lock()
	b.publishErr = err
	b.mu.Unlock()
}

// Refuse makes subscriptions to filter return SUBACK 0x80.
func (b *Broker) Refuse(filter string) {
	b.mu.Lock()
	b.refused[filter] = true
	b.mu.Unlock()
}

// Subscriptions returns filter to granted QoS.
func (b *Broker) Subscriptions() map[string]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := make(map[string]byte, len(b.routes))
	for filter, r := range b.routes {
		subs[filter] = r.qos
	}
	return subs
}

// Published returns every message published by the client so far.
func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

// Deliver routes a message to every subscription whose filter matches topic,
// as a broker would. It returns the number of callbacks invoked.
func (b *Broker) Deliver(topic string, qos byte, payload []byte) int {
	b.mu.Lock()
	var targets []pahomqtt.MessageHandler
	for filter, r := range b.routes {
		if mqtt.TopicMatch(filter, topic) {
			targets = append(targets, r.callback)
		}
	}
	b.mu.Unlock()

	for _, cb := range targets {
		cb(b, &Message{topic: topic, qos: qos, payload: payload})
	}
	return len(targets)
}

// DeliverOn invokes the callback registered for filter with an arbitrary
// topic, bypassing matching. It reports whether such a callback exists.
func (b *Broker) DeliverOn(filter, topic string, qos byte, payload []byte) bool {
	b.mu.Lock()
	r, ok := b.routes[filter]
	b.mu.Unlock()
	if !ok {
		return false
	}
	r.callback(b, &Message{topic: topic, qos: qos, payload: payload})
	return true
}

// Drop simulates the network dropping an established session.
func (b *Broker) Drop(err error) {
	b.mu.Lock()
	b.connected = false
	b.routes = make(map[string]route)
	var lost pahomqtt.ConnectionLostHandler
	if b.opts != nil {
		lost = b.opts.OnConnectionLost
	}
	b.mu.Unlock()

	if lost != nil {
		lost(b, err)
	}
}

// Reconnect simulates the library re-establishing the session.
func (b *Broker) Reconnect() {
	b.mu.Lock()
	b.connected = true
	var onConnect pahomqtt.OnConnectHandler
	if b.opts != nil {
		onConnect = b.opts.OnConnect
	}
	b.mu.Unlock()

	if onConnect != nil {
		onConnect(b)
	}
}

// IsConnected implements pahomqtt.Client.
func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// IsConnectionOpen implements pahomqtt.Client.
func (b *Broker) IsConnectionOpen() bool {
	return b.IsConnected()
}

// Connect implements pahomqtt.Client.
func (b *Broker) Connect() pahomqtt.Token {
	b.mu.Lock()
	if err := b.connectErr; err != nil {
		b.connectErr = nil
		b.mu.Unlock()
		return newToken(err, nil)
	}
	if b.stalled {
		b.stalled = false
		b.mu.Unlock()
		return &token{done: make(chan struct{})}
	}
	b.connected = true
	var onConnect pahomqtt.OnConnectHandler
	if b.opts != nil {
		onConnect = b.opts.OnConnect
	}
	b.mu.Unlock()

	if onConnect != nil {
		onConnect(b)
	}
	return newToken(nil, nil)
}

// Disconnect implements pahomqtt.Client.
func (b *Broker) Disconnect(_ uint) {
	b.mu.Lock()
	b.disconnects++
	b.connected = false
	b.mu.Unlock()
}

// Publish implements pahomqtt.Client. Published messages are also routed to
// matching subscriptions.
func (b *Broker) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = append([]byte(nil), p...)
	case string:
		data = []byte(p)
	}

	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return newToken(pahomqtt.ErrNotConnected, nil)
	}
	if err := b.publishErr; err != nil {
		b.mu.Unlock()
		return newToken(err, nil)
	}
	b.published = append(b.published, Published{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  data,
	})
	b.mu.Unlock()

	b.Deliver(topic, qos, data)
	return newToken(nil, nil)
}

// Subscribe implements pahomqtt.Client.
func (b *Broker) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return newToken(pahomqtt.ErrNotConnected, nil)
	}
	if b.refused[topic] {
		return newToken(nil, map[string]byte{topic: 0x80})
	}
	b.routes[topic] = route{qos: qos, callback: callback}
	return newToken(nil, map[string]byte{topic: qos})
}

// SubscribeMultiple implements pahomqtt.Client.
func (b *Broker) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	result := make(map[string]byte, len(filters))
	for filter, qos := range filters {
		t := b.Subscribe(filter, qos, callback).(*token)
		if t.err != nil {
			return t
		}
		for k, v := range t.result {
			result[k] = v
		}
	}
	return newToken(nil, result)
}

// Unsubscribe implements pahomqtt.Client.
func (b *Broker) Unsubscribe(topics ...string) pahomqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		delete(b.routes, t)
	}
	return newToken(nil, nil)
}

// AddRoute implements pahomqtt.Client.
func (b *Broker) AddRoute(topic string, callback pahomqtt.MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.routes[topic]
	r.callback = callback
	b.routes[topic] = r
}

// OptionsReader implements pahomqtt.Client.
func (b *Broker) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// token is a completed pahomqtt.Token.
type token struct {
	err    error
	result map[string]byte
	done   chan struct{}
}

func newToken(err error, result map[string]byte) *token {
	done := make(chan struct{})
	close(done)
	return &token{err: err, result: result, done: done}
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Done() <-chan struct{}          { return t.done }
func (t *token) Error() error                   { return t.err }

// Result mirrors *pahomqtt.SubscribeToken.
func (t *token) Result() map[string]byte { return t.result }

// Message is a fake pahomqtt.Message.
type Message struct {
	topic    string
	qos      byte
	payload  []byte
	retained bool
}

// NewMessage builds a message for direct use with a pahomqtt.MessageHandler.
func NewMessage(topic string, qos byte, payload []byte, retained bool) *Message {
	return &Message{topic: topic, qos: qos, payload: payload, retained: retained}
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return m.qos }
func (m *Message) Retained() bool    { return m.retained }
func (m *Message) Topic() string     { return m.topic }
func (m *Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte   { return m.payload }
func (m *Message) Ack()              {}
