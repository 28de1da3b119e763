package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
)

// Handler processes one inbound message.
//
// A returned error is logged; it never stops the loop.
type Handler interface {
	HandleMessage(ctx context.Context, msg mqtt.Message) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg mqtt.Message) error

// HandleMessage calls f(ctx, msg).
func (f HandlerFunc) HandleMessage(ctx context.Context, msg mqtt.Message) error {
	return f(ctx, msg)
}

// Handlers fans a message out to every handler in order. All handlers run
// even if an earlier one fails; the errors are joined.
type Handlers []Handler

// HandleMessage implements Handler.
func (hs Handlers) HandleMessage(ctx context.Context, msg mqtt.Message) error {
	var errs []error
	for _, h := range hs {
		if h == nil {
			continue
		}
		if err := h.HandleMessage(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Printer writes one line per message:
//
//	Message received on topic <topic> with QoS <qos> and payload <payload>
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// HandleMessage implements Handler.
func (p *Printer) HandleMessage(_ context.Context, msg mqtt.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintf(p.w, "Message received on topic %s with QoS %d and payload %s\n", msg.Topic, msg.QoS, msg.Payload)
	if err != nil {
		return fmt.Errorf("writing message line: %w", err)
	}
	return nil
}
