package influxdb

import (
	"context"
	"time"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// StatusWriter is the part of Client the Sink needs.
type StatusWriter interface {
	WriteStatus(st status.Status, at time.Time) bool
}

// Sink feeds status lines from the status topic into InfluxDB.
// It implements watch.Handler.
type Sink struct {
	writer StatusWriter
	now    func() time.Time
}

// NewSink creates a Sink writing through w.
func NewSink(w StatusWriter) *Sink {
	return &Sink{writer: w, now: time.Now}
}

// HandleMessage implements watch.Handler. Payloads that are not status
// lines are ignored.
func (s *Sink) HandleMessage(_ context.Context, msg mqtt.Message) error {
	st, err := status.Parse(msg.Payload)
	if err != nil {
		return nil
	}
	s.writer.WriteStatus(st, s.now())
	return nil
}
