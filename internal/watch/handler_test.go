package watch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
)

func TestPrinter_Format(t *testing.T) {
	tests := []struct {
		name string
		msg  mqtt.Message
		want string
	}{
		{
			name: "plain payload",
			msg:  mqtt.Message{Topic: "changeling-status", QoS: 0, Payload: []byte("ok")},
			want: "Message received on topic changeling-status with QoS 0 and payload ok\n",
		},
		{
			name: "status line",
			msg:  mqtt.Message{Topic: "changeling-status", QoS: 1, Payload: []byte("14:02:07 - STATE=IN;BUFFER_SECONDS=1.000000;")},
			want: "Message received on topic changeling-status with QoS 1 and payload 14:02:07 - STATE=IN;BUFFER_SECONDS=1.000000;\n",
		},
		{
			name: "empty payload",
			msg:  mqtt.Message{Topic: "changeling-status", QoS: 2},
			want: "Message received on topic changeling-status with QoS 2 and payload \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewPrinter(&buf).HandleMessage(context.Background(), tt.msg); err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestPrinter_WriteError(t *testing.T) {
	err := NewPrinter(failingWriter{}).HandleMessage(context.Background(), mqtt.Message{Topic: "t"})
	if err == nil {
		t.Error("HandleMessage() should report write errors")
	}
}

func TestHandlers_FanOut(t *testing.T) {
	var order []string
	errA := errors.New("a failed")

	hs := Handlers{
		HandlerFunc(func(context.Context, mqtt.Message) error {
			order = append(order, "a")
			return errA
		}),
		nil,
		HandlerFunc(func(context.Context, mqtt.Message) error {
			order = append(order, "b")
			return nil
		}),
	}

	err := hs.HandleMessage(context.Background(), mqtt.Message{Topic: "changeling-status"})
	if !errors.Is(err, errA) {
		t.Errorf("error = %v, want to wrap %v", err, errA)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("call order = %v, want [a b]", order)
	}
}

func TestHandlers_Empty(t *testing.T) {
	if err := (Handlers{}).HandleMessage(context.Background(), mqtt.Message{}); err != nil {
		t.Errorf("empty Handlers error = %v", err)
	}
}
