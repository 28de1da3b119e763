package status

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantClock  string
		wantState  RunState
		wantBuffer float64
		wantHasBuf bool
	}{
		{
			name:       "daemon status line",
			payload:    "14:02:07 - STATE=IN;BUFFER_SECONDS=12.400000;",
			wantClock:  "14:02:07",
			wantState:  StateIn,
			wantBuffer: 12.4,
			wantHasBuf: true,
		},
		{
			name:      "no clock",
			payload:   "STATE=OUT;",
			wantState: StateOut,
		},
		{
			name:       "no trailing semicolon",
			payload:    "00:00:01 - STATE=DUMPING;BUFFER_SECONDS=0.5",
			wantClock:  "00:00:01",
			wantState:  StateDumping,
			wantBuffer: 0.5,
			wantHasBuf: true,
		},
		{
			name:      "lower case keys and values",
			payload:   "state=leaving;",
			wantState: StateLeaving,
		},
		{
			name:      "unrecognised state",
			payload:   "STATE=HIBERNATING;",
			wantState: StateUnknown,
		},
		{
			name:      "trailing newline",
			payload:   "STATE=STARTING;\n",
			wantState: StateStarting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Parse([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if st.Clock != tt.wantClock {
				t.Errorf("Clock = %q, want %q", st.Clock, tt.wantClock)
			}
			if st.State != tt.wantState {
				t.Errorf("State = %q, want %q", st.State, tt.wantState)
			}
			if st.HasBuffer != tt.wantHasBuf || st.BufferSeconds != tt.wantBuffer {
				t.Errorf("buffer = (%v, %v), want (%v, %v)", st.BufferSeconds, st.HasBuffer, tt.wantBuffer, tt.wantHasBuf)
			}
			if st.Raw != tt.payload {
				t.Errorf("Raw = %q, want %q", st.Raw, tt.payload)
			}
		})
	}
}

func TestParse_ExtraFields(t *testing.T) {
	st, err := Parse([]byte("STATE=IN;BUFFER_SECONDS=1.0;LATENCY_MS=40;"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := st.Fields["LATENCY_MS"]; got != "40" {
		t.Errorf("Fields[LATENCY_MS] = %q, want 40", got)
	}
	if _, ok := st.Fields["STATE"]; ok {
		t.Error("STATE should not be kept in Fields")
	}
}

func TestParse_DashInValue(t *testing.T) {
	tests := []struct {
		payload   string
		wantClock string
	}{
		{"STATE=IN;NOTE=a - b;", ""},
		{"10:00:00 - STATE=IN;NOTE=a - b;", "10:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			st, err := Parse([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if st.Clock != tt.wantClock || st.State != StateIn || st.Fields["NOTE"] != "a - b" {
				t.Errorf("Parse() = %+v", st)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"empty", "", ErrMalformedStatus},
		{"whitespace", "   ", ErrMalformedStatus},
		{"plain text", "ok", ErrMalformedStatus},
		{"bad clock", "25:99 - STATE=IN;", ErrMalformedStatus},
		{"bad buffer", "STATE=IN;BUFFER_SECONDS=lots;", ErrMalformedStatus},
		{"NaN buffer", "STATE=IN;BUFFER_SECONDS=NaN;", ErrMalformedStatus},
		{"infinite buffer", "STATE=IN;BUFFER_SECONDS=+Inf;", ErrMalformedStatus},
		{"bad clock before dash value", "9 o'clock - STATE=IN;NOTE=a - b;", ErrMalformedStatus},
		{"empty key", "=IN;", ErrMalformedStatus},
		{"no state", "12:00:00 - BUFFER_SECONDS=1.0;", ErrMissingState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.payload, err, tt.wantErr)
			}
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	line := "14:02:07 - STATE=IN;BUFFER_SECONDS=12.400000;"
	st, err := Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := Format(st); got != line {
		t.Errorf("Format() = %q, want %q", got, line)
	}
}

func TestParseRunState(t *testing.T) {
	tests := map[string]RunState{
		"OUT":      StateOut,
		"in":       StateIn,
		" Exiting": StateExiting,
		"":         StateUnknown,
		"SLEEPING": StateUnknown,
	}
	for in, want := range tests {
		if got := ParseRunState(in); got != want {
			t.Errorf("ParseRunState(%q) = %q, want %q", in, got, want)
		}
	}
	if RunState("").String() != "UNKNOWN" {
		t.Errorf("zero RunState String() = %q", RunState("").String())
	}
}
