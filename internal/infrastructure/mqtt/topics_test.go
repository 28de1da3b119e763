package mqtt

import (
	"errors"
	"testing"
)

func TestTopicMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"changeling-status", "changeling-status", true},
		{"changeling-status", "other-topic", false},
		{"changeling-status", "changeling-status/x", false},
		{"a/+/c", "a/b/c", true},
		{"a/+/c", "a/b/d", false},
		{"a/+", "a", false},
		{"a/#", "a", true},
		{"a/#", "a/b/c", true},
		{"#", "anything/at/all", true},
		{"+", "single", true},
		{"#", "$SYS/broker/uptime", false},
		{"+/broker", "$SYS/broker", false},
		{"$SYS/#", "$SYS/broker/uptime", true},
		{"", "a", false},
		{"a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			if got := TopicMatch(tt.filter, tt.topic); got != tt.want {
				t.Errorf("TopicMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestValidateFilter(t *testing.T) {
	valid := []string{"changeling-status", "a/+/c", "a/#", "#", "+", "/leading"}
	for _, f := range valid {
		if err := ValidateFilter(f); err != nil {
			t.Errorf("ValidateFilter(%q) error = %v", f, err)
		}
	}

	invalid := []string{"", "a/#/b", "a#", "a/b+", "+a", "bad\x00"}
	for _, f := range invalid {
		if err := ValidateFilter(f); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateFilter(%q) error = %v, want ErrInvalidTopic", f, err)
		}
	}
}

func TestValidateTopicName(t *testing.T) {
	if err := ValidateTopicName("changeling-commands"); err != nil {
		t.Errorf("ValidateTopicName() error = %v", err)
	}
	for _, topic := range []string{"", "a/+", "a/#"} {
		if err := ValidateTopicName(topic); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateTopicName(%q) error = %v, want ErrInvalidTopic", topic, err)
		}
	}
}
