package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
)

const defaultInboxSize = 256

// State is the loop's lifecycle state.
type State int

// Lifecycle states.
const (
	StateDisconnected State = iota
	StateConnected
	StateSubscribed
	StateServicing
	StateStopped
	StateFailed
)

var stateNames = map[State]string{
	StateDisconnected: "disconnected",
	StateConnected:    "connected",
	StateSubscribed:   "subscribed",
	StateServicing:    "servicing",
	StateStopped:      "stopped",
	StateFailed:       "failed",
}

// String returns the lower-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Conn is the broker session a Loop drives. *mqtt.Client satisfies it.
type Conn interface {
	Subscribe(filter string, qos byte) error
	Lost() <-chan error
	Close() error
}

// Dialer opens a Conn whose deliveries go to h.
type Dialer func(ctx context.Context, h mqtt.Handler) (Conn, error)

// Logger is the logging interface the loop needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Loop.
type Options struct {
	// Filter is the topic filter to subscribe to.
	Filter string

	// QoS is the subscription QoS.
	QoS byte

	// InboxSize bounds the queue between the MQTT library and the handlers.
	// Zero means 256.
	InboxSize int
}

// OptionsFromConfig builds Options from the watch section of the config.
func OptionsFromConfig(cfg config.WatchConfig) Options {
	return Options{
		Filter:    cfg.StatusTopic,
		QoS:       byte(cfg.QoS),
		InboxSize: cfg.InboxSize,
	}
}

// Loop is the subscriber loop.
//
// Start, Run, ServiceOnce and Close must be called from one goroutine.
// State and Stats are safe from any goroutine.
type Loop struct {
	opts    Options
	handler Handler
	logger  Logger

	inbox chan mqtt.Message

	mu    sync.RWMutex
	state State
	conn  Conn

	received   atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64
}

// Stats are message counters since the loop was created.
type Stats struct {
	Received   uint64 `json:"received"`
	Dispatched uint64 `json:"dispatched"`
	Dropped    uint64 `json:"dropped"`
}

// New creates a Loop in the Disconnected state.
//
// Parameters:
//   - opts: Subscription filter, QoS and inbox size
//   - handler: Receives every message; use Handlers to fan out
//   - logger: May be nil
func New(opts Options, handler Handler, logger Logger) *Loop {
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loop{
		opts:    opts,
		handler: handler,
		logger:  logger,
		inbox:   make(chan mqtt.Message, opts.InboxSize),
		state:   StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Stats returns the message counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Received:   l.received.Load(),
		Dispatched: l.dispatched.Load(),
		Dropped:    l.dropped.Load(),
	}
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()

	if prev != s {
		l.logger.Debug("watch loop state changed", "from", prev.String(), "to", s.String())
	}
}

// Start connects and subscribes. It is only valid from Disconnected.
//
// On a connect failure no subscription is attempted. On a subscribe failure
// the connection is closed. Either way the loop ends in Failed.
func (l *Loop) Start(ctx context.Context, dial Dialer) error {
	if s := l.State(); s != StateDisconnected {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s)
	}
	if l.handler == nil {
		l.setState(StateFailed)
		return fmt.Errorf("%w: no handler", ErrInvalidState)
	}

	conn, err := dial(ctx, mqtt.HandlerFunc(l.enqueue))
	if err != nil {
		l.setState(StateFailed)
		return err
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.setState(StateConnected)

	if err := conn.Subscribe(l.opts.Filter, l.opts.QoS); err != nil {
		conn.Close()
		l.setState(StateFailed)
		return fmt.Errorf("subscribing to %q: %w", l.opts.Filter, err)
	}
	l.setState(StateSubscribed)

	l.logger.Info("subscribed", "filter", l.opts.Filter, "qos", l.opts.QoS)
	return nil
}

// enqueue runs on the MQTT library's goroutine.
func (l *Loop) enqueue(msg mqtt.Message) error {
	l.received.Add(1)

	select {
	case l.inbox <- msg:
	default:
		l.dropped.Add(1)
		l.logger.Warn("dropping message, handlers not keeping up",
			"topic", msg.Topic,
			"inbox_size", cap(l.inbox),
			"error", ErrInboxFull,
		)
	}
	return nil
}

// ServiceOnce dispatches the messages that were pending when it was called
// and returns how many it dispatched. It never blocks waiting for traffic.
// Before Start has subscribed it dispatches nothing.
func (l *Loop) ServiceOnce(ctx context.Context) int {
	switch l.State() {
	case StateSubscribed:
		l.setState(StateServicing)
	case StateServicing:
	default:
		return 0
	}

	pending := len(l.inbox)
	n := 0
	for ; n < pending; n++ {
		select {
		case msg := <-l.inbox:
			l.dispatch(ctx, msg)
		default:
			return n
		}
	}
	return n
}

// Run dispatches messages until ctx is cancelled or the connection is lost.
//
// Returns:
//   - nil when ctx is cancelled
//   - an error wrapping mqtt.ErrConnectionLost when the session drops and
//     the client does not reconnect
//   - ErrInvalidState when called before Start
func (l *Loop) Run(ctx context.Context) error {
	switch s := l.State(); s {
	case StateSubscribed, StateServicing:
	default:
		return fmt.Errorf("%w: run from %s", ErrInvalidState, s)
	}
	l.setState(StateServicing)

	l.mu.RLock()
	lost := l.conn.Lost()
	l.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			l.setState(StateStopped)
			return nil
		case err := <-lost:
			l.setState(StateFailed)
			return err
		case msg := <-l.inbox:
			l.dispatch(ctx, msg)
		}
	}
}

// dispatch hands one message to the handler, recovering panics.
func (l *Loop) dispatch(ctx context.Context, msg mqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("message handler panic recovered",
				"topic", msg.Topic,
				"panic", r,
			)
		}
	}()

	l.dispatched.Add(1)
	if err := l.handler.HandleMessage(ctx, msg); err != nil {
		l.logger.Warn("message handler returned error",
			"topic", msg.Topic,
			"error", err,
		)
	}
}

// Close disconnects. The loop ends in Stopped unless it had already failed.
func (l *Loop) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if l.State() != StateFailed {
		l.setState(StateStopped)
	}
	if conn == nil {
		return nil
	}
	return conn.Close()
}
