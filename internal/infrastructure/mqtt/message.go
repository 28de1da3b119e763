package mqtt

import (
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is an inbound application message as delivered by the broker.
//
// It is a value copy of what the library handed over; the payload slice is
// owned by the receiver.
type Message struct {
	Topic     string
	QoS       byte
	Payload   []byte
	Retained  bool
	Duplicate bool
}

// Handler receives inbound messages.
//
// HandleMessage is invoked on the client library's delivery goroutine, one
// message at a time. It should return quickly. A returned error is logged and
// does not affect acknowledgement.
type Handler interface {
	HandleMessage(msg Message) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(msg Message) error

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg Message) error {
	return f(msg)
}

// fromPaho copies a library message into a Message.
func fromPaho(msg pahomqtt.Message) Message {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	return Message{
		Topic:     msg.Topic(),
		QoS:       msg.Qos(),
		Payload:   payload,
		Retained:  msg.Retained(),
		Duplicate: msg.Duplicate(),
	}
}
