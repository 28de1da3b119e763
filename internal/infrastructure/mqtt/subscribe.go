package mqtt

import (
	"fmt"
)

// subscribeResult is implemented by *pahomqtt.SubscribeToken.
type subscribeResult interface {
	Result() map[string]byte
}

// Subscribe registers a subscription on the broker.
//
// Messages for filter are delivered to the client's Handler. Filters may use
// the + and # wildcards.
//
// Parameters:
//   - filter: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - ErrInvalidTopic for an empty or malformed filter
//   - ErrInvalidQoS for qos above 2
//   - ErrNotConnected when the session is down
//   - ErrSubscribeFailed for every broker-side failure; a refusal in the
//     SUBACK also matches ErrProtocol
func (c *Client) Subscribe(filter string, qos byte) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: got %d", ErrInvalidQoS, qos)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Tracked before the SUBACK: retained messages may arrive first.
	c.subMu.Lock()
	c.subscriptions[filter] = qos
	c.subMu.Unlock()

	token := c.client.Subscribe(filter, qos, c.dispatch)
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		c.untrack(filter)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		c.untrack(filter)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	if res, ok := token.(subscribeResult); ok {
		if code, found := res.Result()[filter]; found && code == subackFailure {
			c.untrack(filter)
			return fmt.Errorf("%w: %w: broker refused %q", ErrSubscribeFailed, ErrProtocol, filter)
		}
	}

	return nil
}

func (c *Client) untrack(filter string) {
	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()
}
