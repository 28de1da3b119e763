package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt/mqtttest"
	"github.com/nerrad567/changeling-watch/internal/status"
)

func init() {
	color.NoColor = true
}

// brokerConnector dials the fake broker and records the config it was given.
func brokerConnector(b *mqtttest.Broker, got *config.MQTTConfig) Connector {
	return func(ctx context.Context, cfg config.MQTTConfig, h mqtt.Handler) (Session, error) {
		if got != nil {
			*got = cfg
		}
		c, err := mqtt.Dial(ctx, cfg, h, b.NewClient)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func run(t *testing.T, connect Connector, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(connect)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// ====== Commands ======

func TestCommandSubcommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"enter"}, "ENTER"},
		{[]string{"exit"}, "EXIT"},
		{[]string{"dump"}, "DUMP"},
		{[]string{"send", "dump"}, "DUMP"},
		{[]string{"send", "Enter"}, "ENTER"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			b := mqtttest.NewBroker()
			out, err := run(t, brokerConnector(b, nil), tt.args...)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}

			pub := b.Published()
			if len(pub) != 1 {
				t.Fatalf("published %d messages, want 1", len(pub))
			}
			if pub[0].Topic != config.DefaultCommandTopic {
				t.Errorf("topic = %q, want %q", pub[0].Topic, config.DefaultCommandTopic)
			}
			if string(pub[0].Payload) != tt.want {
				t.Errorf("payload = %q, want %q", pub[0].Payload, tt.want)
			}
			if pub[0].QoS != 1 {
				t.Errorf("qos = %d, want 1", pub[0].QoS)
			}
			if !strings.Contains(out, "sent "+tt.want+" to "+config.DefaultCommandTopic) {
				t.Errorf("output = %q", out)
			}
		})
	}
}

func TestSend_UnknownCommand(t *testing.T) {
	b := mqtttest.NewBroker()
	_, err := run(t, brokerConnector(b, nil), "send", "jump")
	if !errors.Is(err, status.ErrUnknownCommand) {
		t.Fatalf("error = %v, want ErrUnknownCommand", err)
	}
	if len(b.Published()) != 0 {
		t.Error("nothing should be published")
	}
}

func TestSend_RequiresArgument(t *testing.T) {
	if _, err := run(t, brokerConnector(mqtttest.NewBroker(), nil), "send"); err == nil {
		t.Fatal("send without argument should fail")
	}
}

func TestFlags(t *testing.T) {
	b := mqtttest.NewBroker()
	var got config.MQTTConfig

	_, err := run(t, brokerConnector(b, &got),
		"--host", "broker.lan", "--port", "8883", "--command-topic", "lab/commands", "-u", "ops", "dump")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if got.Broker.Host != "broker.lan" || got.Broker.Port != 8883 {
		t.Errorf("broker = %s, want broker.lan:8883", got.BrokerAddress())
	}
	if got.Auth.Username != "ops" {
		t.Errorf("username = %q, want ops", got.Auth.Username)
	}
	if !strings.HasPrefix(got.Broker.ClientID, "changeling-ctl-") {
		t.Errorf("client id = %q, want changeling-ctl- prefix", got.Broker.ClientID)
	}
	if pub := b.Published(); len(pub) != 1 || pub[0].Topic != "lab/commands" {
		t.Errorf("published = %+v, want one message on lab/commands", pub)
	}
}

func TestCommand_ConnectionFailure(t *testing.T) {
	b := mqtttest.NewBroker()
	b.Unreachable()

	_, err := run(t, brokerConnector(b, nil), "enter")
	if !errors.Is(err, mqtt.ErrConnectionFailed) {
		t.Fatalf("error = %v, want ErrConnectionFailed", err)
	}
}

func TestCommand_PublishFailure(t *testing.T) {
	b := mqtttest.NewBroker()
	b.FailPublish(errors.New("quota exceeded"))

	_, err := run(t, brokerConnector(b, nil), "exit")
	if !errors.Is(err, mqtt.ErrPublishFailed) {
		t.Fatalf("error = %v, want ErrPublishFailed", err)
	}
}

// ====== Status ======

// publishWhenSubscribed delivers payloads once something subscribes to topic.
func publishWhenSubscribed(t *testing.T, b *mqtttest.Broker, topic string, payloads ...string) {
	t.Helper()
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if _, ok := b.Subscriptions()[topic]; ok {
				for _, p := range payloads {
					b.Deliver(topic, 0, []byte(p))
				}
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestStatus(t *testing.T) {
	b := mqtttest.NewBroker()
	publishWhenSubscribed(t, b, config.DefaultStatusTopic,
		"not a status line",
		"10:42:07 - STATE=IN;BUFFER_SECONDS=3.250000;MIC=ok;",
	)

	out, err := run(t, brokerConnector(b, nil), "status", "--timeout", "2s")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	for _, want := range []string{"clock:   10:42:07", "state:   IN", "buffer:  3.250s", "MIC:     ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatus_Timeout(t *testing.T) {
	b := mqtttest.NewBroker()

	_, err := run(t, brokerConnector(b, nil), "status", "--timeout", "50ms")
	if !errors.Is(err, ErrNoStatus) {
		t.Fatalf("error = %v, want ErrNoStatus", err)
	}
}

func TestStatus_SubscribeRefused(t *testing.T) {
	b := mqtttest.NewBroker()
	b.Refuse(config.DefaultStatusTopic)

	_, err := run(t, brokerConnector(b, nil), "status", "--timeout", "1s")
	if !errors.Is(err, mqtt.ErrProtocol) {
		t.Fatalf("error = %v, want ErrProtocol", err)
	}
}

// ====== Output ======

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	LogError(&buf, errors.New("broker unreachable"))

	if got := buf.String(); got != "error: broker unreachable\n" {
		t.Errorf("LogError() = %q", got)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Host != "localhost" || opts.Port != 1883 {
		t.Errorf("broker = %s:%d, want localhost:1883", opts.Host, opts.Port)
	}
	if opts.StatusTopic != config.DefaultStatusTopic || opts.CommandTopic != config.DefaultCommandTopic {
		t.Errorf("topics = %s/%s", opts.StatusTopic, opts.CommandTopic)
	}
	if opts.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", opts.Timeout, defaultTimeout)
	}
}
