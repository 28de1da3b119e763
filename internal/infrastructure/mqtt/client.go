package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the watcher.
//
// A Client owns exactly one broker session. Every inbound message on any
// registered subscription is handed to the single Handler given at connect
// time, after the topic has been re-checked against the registered filters.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are restored on reconnection when reconnect is enabled.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	handler Handler

	// subscriptions maps filter to QoS for re-subscription and dispatch checks.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	// lost receives the cause when an established connection drops.
	lost     chan error
	lostOnce sync.Once

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// NewClientFunc constructs the underlying library client.
// pahomqtt.NewClient satisfies it; tests substitute an in-memory broker.
type NewClientFunc func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Connect establishes a connection to the MQTT broker.
//
// Parameters:
//   - ctx: Cancels the connection attempt
//   - cfg: MQTT configuration
//   - handler: Receives every message on every subscription of this client
//
// Returns:
//   - *Client: Connected client ready for Subscribe
//   - error: Wrapping ErrConnectionFailed if the broker cannot be reached or
//     refuses the session
func Connect(ctx context.Context, cfg config.MQTTConfig, handler Handler) (*Client, error) {
	return Dial(ctx, cfg, handler, pahomqtt.NewClient)
}

// Dial is Connect with an explicit library client constructor.
func Dial(ctx context.Context, cfg config.MQTTConfig, handler Handler, newClient NewClientFunc) (*Client, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler cannot be nil", ErrConnectionFailed)
	}

	opts := buildClientOptions(cfg)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		handler:       handler,
		subscriptions: make(map[string]byte),
		lost:          make(chan error, 1),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Info("reconnecting to MQTT broker", "broker", cfg.BrokerAddress())
		}
	})

	c.client = newClient(opts)
	token := c.client.Connect()
	if err := waitToken(ctx, token, defaultConnectTimeout); err != nil {
		// A cancelled or timed-out attempt may still complete in the
		// background; stop it so the client ID is not left holding a session.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg), err)
	}

	// OnConnect runs asynchronously and may not have fired yet.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// waitToken waits for a library token, honouring ctx and timeout.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = true
	c.connMu.Unlock()

	if wasConnected {
		// Initial connect; nothing to restore.
		c.notifyConnect()
		return
	}

	c.restoreSubscriptions()
	c.notifyConnect()
}

func (c *Client) notifyConnect() {
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when an established connection drops.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost",
			"broker", c.cfg.BrokerAddress(),
			"error", err,
		)
	}

	if !c.cfg.Reconnect.Enabled {
		c.lostOnce.Do(func() {
			c.lost <- fmt.Errorf("%w: %w", ErrConnectionLost, err)
		})
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked filters after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for filter, qos := range c.subscriptions {
		// Errors surface through the token; nothing can wait on it here.
		c.client.Subscribe(filter, qos, c.dispatch)
	}
}

// Lost returns a channel that receives one error wrapping ErrConnectionLost
// when an established connection drops and reconnection is disabled.
// With reconnection enabled the channel never fires.
func (c *Client) Lost() <-chan error {
	return c.lost
}

// Close gracefully disconnects from the MQTT broker.
//
// Pending operations get a short quiesce period. Closing an already closed
// client is not an error.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// dispatch is the library callback for every subscription.
//
// A delivery whose topic matches none of the registered filters is dropped.
// Handler panics are recovered and logged.
func (c *Client) dispatch(_ pahomqtt.Client, pm pahomqtt.Message) {
	if !c.matchesSubscription(pm.Topic()) {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("dropping MQTT message outside subscriptions", "topic", pm.Topic())
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", pm.Topic(),
					"panic", r,
				)
			}
		}
	}()

	if err := c.handler.HandleMessage(fromPaho(pm)); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", pm.Topic(),
				"error", err,
			)
		}
	}
}

func (c *Client) matchesSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for filter := range c.subscriptions {
		if TopicMatch(filter, topic) {
			return true
		}
	}
	return false
}
