package status

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Wire keys used by the daemon.
const (
	keyState         = "STATE"
	keyBufferSeconds = "BUFFER_SECONDS"

	clockSeparator = " - "
	clockLayout    = "15:04:05"
)

// Parse decodes a status payload.
//
// The grammar is an optional "HH:MM:SS - " clock prefix followed by
// semicolon-terminated KEY=VALUE pairs. Keys are case-insensitive. The
// trailing semicolon is optional.
//
// Returns:
//   - ErrMalformedStatus for an empty payload, a bad clock, a pair without
//     '=' or a BUFFER_SECONDS that is not a finite number
//   - ErrMissingState when no STATE pair is present
func Parse(payload []byte) (Status, error) {
	raw := string(payload)
	body := strings.TrimSpace(raw)
	if body == "" {
		return Status{}, fmt.Errorf("%w: empty payload", ErrMalformedStatus)
	}

	st := Status{Raw: raw}

	// A clock prefix ends before the first pair, so " - " inside a value is
	// left alone.
	if idx := strings.Index(body, clockSeparator); idx >= 0 && !strings.Contains(body[:idx], "=") {
		clock := strings.TrimSpace(body[:idx])
		if _, err := time.Parse(clockLayout, clock); err != nil {
			return Status{}, fmt.Errorf("%w: clock %q", ErrMalformedStatus, clock)
		}
		st.Clock = clock
		body = body[idx+len(clockSeparator):]
	}

	hasState := false
	for _, pair := range strings.Split(body, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if !ok || key == "" {
			return Status{}, fmt.Errorf("%w: pair %q", ErrMalformedStatus, pair)
		}

		switch key {
		case keyState:
			st.State = ParseRunState(value)
			hasState = true
		case keyBufferSeconds:
			seconds, err := strconv.ParseFloat(value, 64)
			if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
				return Status{}, fmt.Errorf("%w: %s=%q", ErrMalformedStatus, keyBufferSeconds, value)
			}
			st.BufferSeconds = seconds
			st.HasBuffer = true
		default:
			if st.Fields == nil {
				st.Fields = make(map[string]string)
			}
			st.Fields[key] = value
		}
	}

	if !hasState {
		return Status{}, ErrMissingState
	}

	return st, nil
}

// Format renders s in the daemon's wire form.
func Format(s Status) string {
	var b strings.Builder
	if s.Clock != "" {
		b.WriteString(s.Clock)
		b.WriteString(clockSeparator)
	}
	fmt.Fprintf(&b, "%s=%s;", keyState, s.State)
	if s.HasBuffer {
		fmt.Fprintf(&b, "%s=%f;", keyBufferSeconds, s.BufferSeconds)
	}
	return b.String()
}
