package status

import (
	"testing"
	"time"
)

func TestTracker_Observe(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	if _, _, ok := tr.Last(); ok {
		t.Fatal("Last() reported a status before any Observe")
	}

	tr1, changed := tr.Observe(Status{State: StateOut, Raw: "STATE=OUT;"})
	if !changed {
		t.Fatal("first observation should be a transition")
	}
	if tr1.From != StateUnknown || tr1.To != StateOut || !tr1.ObservedAt.Equal(now) {
		t.Errorf("transition = %+v", tr1)
	}

	if _, changed := tr.Observe(Status{State: StateOut}); changed {
		t.Error("repeated state reported as transition")
	}

	tr2, changed := tr.Observe(Status{State: StateEntering, BufferSeconds: 2.5})
	if !changed {
		t.Fatal("OUT -> ENTERING not reported")
	}
	if tr2.From != StateOut || tr2.To != StateEntering || tr2.BufferSeconds != 2.5 {
		t.Errorf("transition = %+v", tr2)
	}

	last, at, ok := tr.Last()
	if !ok || last.State != StateEntering || !at.Equal(now) {
		t.Errorf("Last() = (%+v, %v, %v)", last, at, ok)
	}
}

func TestTracker_PendingDoesNotAdvance(t *testing.T) {
	tr := NewTracker()

	for i := 0; i < 2; i++ {
		p, changed := tr.Pending(Status{State: StateIn})
		if !changed || p.From != StateUnknown || p.To != StateIn {
			t.Fatalf("Pending() = (%+v, %v), want UNKNOWN -> IN", p, changed)
		}
	}
	if _, _, ok := tr.Last(); ok {
		t.Fatal("Pending() recorded an observation")
	}

	tr.Commit(Status{State: StateIn})
	if _, changed := tr.Pending(Status{State: StateIn}); changed {
		t.Error("IN after Commit(IN) reported as transition")
	}
	if last, _, ok := tr.Last(); !ok || last.State != StateIn {
		t.Errorf("Last() = (%+v, %v)", last, ok)
	}
}
