package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TopicMatch reports whether topic matches filter under MQTT wildcard rules.
//
//   - "+" matches exactly one level
//   - "#" matches the parent level and everything below it; it must be last
//   - topics starting with "$" are not matched by a leading wildcard
func TopicMatch(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if filter == topic {
		return true
	}

	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	if strings.HasPrefix(topic, "$") && (filterLevels[0] == "+" || filterLevels[0] == "#") {
		return false
	}

	for i, level := range filterLevels {
		if level == "#" {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if level == "+" {
			continue
		}
		if level != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}

// ValidateFilter checks a subscription filter.
//
// Wildcards must occupy a whole level, and "#" may only appear last.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: filter cannot be empty", ErrInvalidTopic)
	}
	if !utf8.ValidString(filter) || strings.ContainsRune(filter, 0) {
		return fmt.Errorf("%w: filter %q is not valid UTF-8", ErrInvalidTopic, filter)
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: '#' must be the whole last level in %q", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: '+' must be a whole level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// ValidateTopicName checks a topic used for publishing: no wildcards allowed.
func ValidateTopicName(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: topic %q contains wildcards", ErrInvalidTopic, topic)
	}
	if !utf8.ValidString(topic) || strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic %q is not valid UTF-8", ErrInvalidTopic, topic)
	}
	return nil
}
